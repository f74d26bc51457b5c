package auth

import (
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// NoBrowserEnv disables opening the verification URL when set to "true".
const NoBrowserEnv = "GWCTL_NO_BROWSER"

// BrowserOpener opens url for the user.
type BrowserOpener func(url string) error

// BrowserDisabled reports whether NoBrowserEnv asks for manual URL handling.
func BrowserDisabled() bool {
	return strings.EqualFold(os.Getenv(NoBrowserEnv), "true")
}

// OpenBrowser starts the platform URL handler without waiting for it.
func OpenBrowser(url string) error {
	if url == "" {
		return errors.New("url is empty")
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	// keep the handler's chatter off the terminal
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
