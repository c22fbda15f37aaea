package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"filedrop/internal/auth"
	"filedrop/internal/config"
)

// Status-specific flags
var statusWatch bool

// authStatusCmd represents the auth status command
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	Long: `Show the current authentication status.

This command displays whether you are logged in, who you are logged in as,
and when the access token expires. With --watch it keeps running and
reprints whenever another filedrop process changes the session.`,
	RunE: runAuthStatus,
}

func init() {
	authStatusCmd.Flags().BoolVar(&statusWatch, "watch", false, "Keep running and reprint on session changes")
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mgr, err := newManager(cfg)
	if err != nil {
		return err
	}
	defer mgr.Close()

	if err := printStatus(cfg, mgr); err != nil {
		return err
	}

	if statusWatch || cfg.WatchSession {
		return watchStatus(cfg, mgr)
	}
	return nil
}

// watchStatus reprints the status whenever another process rewrites the
// session file, until interrupted.
func watchStatus(cfg *config.Config, mgr *auth.Manager) error {
	stop, err := mgr.Store().Watch(func() {
		fmt.Println()
		_ = printStatus(cfg, mgr)
	})
	if err != nil {
		return err
	}
	defer stop()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	<-ctx.Done()
	return nil
}

func printStatus(cfg *config.Config, mgr *auth.Manager) error {
	session, err := mgr.CurrentSession()
	if err != nil {
		return err
	}

	fmt.Println("Filedrop")
	fmt.Printf("  Issuer:    %s\n", cfg.IssuerURL)

	if session == nil {
		fmt.Printf("  Status:    %s\n", text.FgYellow.Sprint("Not logged in"))
		fmt.Println()
		fmt.Println("Run 'filedrop auth login' to sign in.")
		return nil
	}

	fmt.Printf("  Status:    %s\n", text.FgGreen.Sprint("Authenticated"))
	fmt.Printf("  User:      %s (%s)\n", session.User.Name, session.User.Email)

	if !session.ExpiresAt.IsZero() {
		remaining := time.Until(session.ExpiresAt)
		switch {
		case remaining <= 0:
			fmt.Printf("  Token:     %s\n", text.FgRed.Sprintf("Expired %s ago", (-remaining).Round(time.Second)))
		case remaining < 5*time.Minute:
			fmt.Printf("  Token:     %s\n", text.FgYellow.Sprintf("Expires in %s", remaining.Round(time.Second)))
		default:
			fmt.Printf("  Token:     %s\n", text.FgGreen.Sprintf("Expires in %s", remaining.Round(time.Second)))
		}
	}

	if session.RefreshToken != "" {
		fmt.Printf("  Refresh:   %s\n", text.FgGreen.Sprint("Available"))
	} else {
		fmt.Printf("  Refresh:   %s\n", text.FgYellow.Sprint("Not available"))
	}

	return nil
}
