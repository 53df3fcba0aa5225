package cmd

import (
	"fmt"
	"os/exec"
	"runtime"
)

// openViewer asks the desktop environment to display the file with the
// default application for its type.
func openViewer(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	// Detach: the viewer outlives the process
	return cmd.Process.Release()
}
