package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the dossier application
var rootCmd = &cobra.Command{
	Use:   "dossier",
	Short: "Compiles labeled Gmail newsletters into a morning PDF digest",
	Long: `dossier collects the messages under a Gmail label, cleans each one into
readable article content, optionally reformats it with a language model,
and renders everything into a single magazine-style PDF.

Authorize once with "dossier auth"; after that a plain "dossier" run
builds today's digest.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "dossier version %s\n" .Version}}`)

	// If no subcommand is provided, build the digest by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "run")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newAuthCmd())
	rootCmd.AddCommand(newVersionCmd())
}
