package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"filedrop/internal/auth"
)

// Exit codes for CLI commands. These follow common conventions so scripts
// can distinguish "not logged in" from general failure.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication is required but not available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the OAuth flow failed.
	ExitCodeAuthFailed = 3
)

// rootCmd represents the base command for the filedrop application.
var rootCmd = &cobra.Command{
	Use:   "filedrop",
	Short: "Share files through your filedrop account",
	Long: `filedrop is the command-line client for the filedrop file-sharing
service. It logs you in with a browser-based OAuth flow, keeps your session
fresh in the background, and gives you authenticated access to your files.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
}

var configPath string

// SetVersion sets the version for the root command. Called from the main
// package to inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "filedrop version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps error types onto semantic exit codes.
func getExitCode(err error) int {
	if errors.Is(err, auth.ErrSessionExpired) || errors.Is(err, auth.ErrRefreshFailed) {
		return ExitCodeAuthRequired
	}

	if errors.Is(err, auth.ErrExchangeFailed) ||
		errors.Is(err, auth.ErrStateMismatch) ||
		errors.Is(err, auth.ErrMissingCode) ||
		errors.Is(err, auth.ErrMissingVerifier) ||
		errors.Is(err, auth.ErrUserInfoFailed) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is $HOME/.config/filedrop/config.yaml)")
}
