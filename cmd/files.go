package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// filesCmd represents the files command group
var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "Manage your shared files",
	Long: `Manage the files shared through your filedrop account.

Examples:
  filedrop files list                  # List your files
  filedrop files upload report.pdf     # Upload a file
  filedrop files delete <id>           # Delete a file`,
}

// filesListCmd represents the files list command
var filesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your shared files",
	RunE:  runFilesList,
}

// filesUploadCmd represents the files upload command
var filesUploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Upload a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runFilesUpload,
}

// filesDeleteCmd represents the files delete command
var filesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a shared file",
	Args:  cobra.ExactArgs(1),
	RunE:  runFilesDelete,
}

func runFilesList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, mgr, err := newAPIClient(cfg)
	if err != nil {
		return err
	}
	defer mgr.Close()

	files, err := client.List(cmd.Context())
	if err != nil {
		return err
	}

	if len(files) == 0 {
		fmt.Println("No files shared yet.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "NAME", "SIZE", "DOWNLOADS LEFT", "EXPIRES"})

	for _, f := range files {
		expires := "never"
		if !f.ExpiresAt.IsZero() {
			remaining := time.Until(f.ExpiresAt)
			if remaining <= 0 {
				expires = text.FgRed.Sprint("expired")
			} else {
				expires = remaining.Round(time.Minute).String()
			}
		}
		t.AppendRow(table.Row{f.ID, f.Name, formatSize(f.Size), f.DownloadsLeft, expires})
	}

	t.Render()
	return nil
}

func runFilesUpload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, mgr, err := newAPIClient(cfg)
	if err != nil {
		return err
	}
	defer mgr.Close()

	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	file, err := client.Upload(cmd.Context(), filepath.Base(path), f)
	if err != nil {
		return err
	}

	fmt.Printf("Uploaded %s (%s)\n", file.Name, text.FgGreen.Sprint(file.ID))
	return nil
}

func runFilesDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, mgr, err := newAPIClient(cfg)
	if err != nil {
		return err
	}
	defer mgr.Close()

	if err := client.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}

	fmt.Println("Deleted.")
	return nil
}

// formatSize renders a byte count for humans.
func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func init() {
	rootCmd.AddCommand(filesCmd)
	filesCmd.AddCommand(filesListCmd)
	filesCmd.AddCommand(filesUploadCmd)
	filesCmd.AddCommand(filesDeleteCmd)
}
