package cmd

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"filedrop/internal/auth"
)

// Login-specific flags
var loginManual bool

// authLoginCmd represents the auth login command
var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate to filedrop",
	Long: `Authenticate to filedrop using a browser-based OAuth flow.

By default the system browser is opened on the authorization page and the
CLI waits for the redirect back to a local callback. With --manual the URL
is printed instead and you complete the flow by navigating to it yourself.

Examples:
  filedrop auth login                  # Open the browser automatically
  filedrop auth login --manual         # Print the URL, navigate manually`,
	RunE: runAuthLogin,
}

func init() {
	authLoginCmd.Flags().BoolVar(&loginManual, "manual", false, "Print the authorization URL instead of opening a browser")
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mgr, err := newManager(cfg)
	if err != nil {
		return err
	}
	defer mgr.Close()

	mode := auth.ModePopup
	if loginManual {
		mode = auth.ModeRedirect
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Waiting for authorization in your browser..."

	session, err := mgr.Login(cmd.Context(), mode, func(authURL string) {
		if loginManual {
			fmt.Println("Open this URL in your browser to sign in:")
			fmt.Println()
			fmt.Printf("  %s\n", authURL)
			fmt.Println()
		} else {
			fmt.Println("Opening your browser to complete sign-in.")
			fmt.Printf("If it does not open, navigate to:\n\n  %s\n\n", authURL)
		}
		s.Start()
	})
	s.Stop()
	if err != nil {
		return err
	}

	fmt.Printf("Logged in as %s (%s).\n", session.User.Name, session.User.Email)
	return nil
}
