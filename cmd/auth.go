package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/dossier/internal/config"
	"github.com/teemow/dossier/internal/google"
)

func newAuthCmd() *cobra.Command {
	var (
		force   bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize Gmail access and cache the token",
		Long: `Run the Google OAuth consent flow in your browser and cache the resulting
token on disk. Subsequent digest runs reuse the cached token and refresh it
silently; re-run with --force to discard the cache and authorize again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			store := google.NewStore(cfg.CredentialsFile, cfg.TokenFile, newLogger(verbose))
			if store.HasToken() && !force {
				fmt.Printf("Already authorized; token cached at %s\n", cfg.TokenFile)
				fmt.Println("Use --force to authorize again.")
				return nil
			}

			if err := store.Authorize(cmd.Context()); err != nil {
				return err
			}

			fmt.Printf("Authorization complete; token cached at %s\n", cfg.TokenFile)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Discard any cached token and authorize again")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}
