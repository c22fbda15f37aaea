package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// authCmd represents the auth command group
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication for filedrop",
	Long: `Manage authentication for filedrop CLI commands.

The auth command group provides subcommands to login, logout, and check
the status of your filedrop session.

Examples:
  filedrop auth login                  # Browser-based login
  filedrop auth login --manual         # Print the URL instead of opening a browser
  filedrop auth status                 # Show session status
  filedrop auth whoami                 # Show current identity
  filedrop auth logout                 # Revoke tokens and clear the session`,
}

// authLogoutCmd represents the auth logout command
var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke tokens and clear the stored session",
	Long: `Revoke the current tokens and clear the stored session.

Revocation is best-effort: the local session is cleared even if the
authorization server cannot be reached.`,
	RunE: runAuthLogout,
}

// authWhoamiCmd represents the auth whoami command
var authWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show current authenticated identity",
	RunE:  runAuthWhoami,
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mgr, err := newManager(cfg)
	if err != nil {
		return err
	}
	defer mgr.Close()

	session, err := mgr.CurrentSession()
	if err != nil {
		return err
	}
	if session == nil {
		fmt.Println("Not logged in.")
		return nil
	}

	if err := mgr.Logout(cmd.Context()); err != nil {
		return err
	}

	fmt.Println("Logged out.")
	return nil
}

func runAuthWhoami(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mgr, err := newManager(cfg)
	if err != nil {
		return err
	}
	defer mgr.Close()

	session, err := mgr.CurrentSession()
	if err != nil {
		return err
	}
	if session == nil {
		fmt.Println("Not logged in. Run 'filedrop auth login' to sign in.")
		return nil
	}

	fmt.Printf("Name:   %s\n", session.User.Name)
	fmt.Printf("Email:  %s\n", session.User.Email)
	fmt.Printf("Sub:    %s\n", session.User.Sub)
	if session.User.Role != "" {
		fmt.Printf("Role:   %s\n", session.User.Role)
	}

	return nil
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authWhoamiCmd)
}
