package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yourusername/ytfetch-go/internal/domain"
)

var addCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Add a download on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		format, _ := cmd.Flags().GetString("format")
		follow, _ := cmd.Flags().GetBool("follow")

		client := newAPIClient(serverURL)
		download, err := client.addDownload(args[0], format)
		if err != nil {
			return err
		}

		printSuccess("Download added successfully!")
		fmt.Printf("ID:     %s\n", download.ID)
		fmt.Printf("Status: %s\n", download.Status)

		if !follow {
			return nil
		}
		last, err := client.follow(download.ID, printEvent)
		if err != nil {
			return err
		}
		if last.State != domain.StateSucceeded {
			return fmt.Errorf("download did not complete: %s", last.Message)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List downloads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		downloads, err := newAPIClient(serverURL).listDownloads(status, limit)
		if err != nil {
			return err
		}
		if len(downloads) == 0 {
			printInfo("No downloads")
			return nil
		}
		fmt.Println(downloadsTable(downloads))
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show download statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		stats, err := newAPIClient(serverURL).stats()
		if err != nil {
			return err
		}

		printHeader("Download Statistics:")
		fmt.Printf("  Total:      %d\n", stats.Total)
		fmt.Printf("  Queued:     %d\n", stats.Queued)
		fmt.Printf("  Processing: %d\n", stats.Processing)
		fmt.Printf("  Completed:  %d\n", stats.Completed)
		fmt.Printf("  Failed:     %d\n", stats.Failed)
		fmt.Printf("  Cancelled:  %d\n", stats.Cancelled)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get download details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		download, err := newAPIClient(serverURL).getDownload(args[0])
		if err != nil {
			return err
		}

		printHeader("Download Details:")
		for _, line := range downloadDetails(download) {
			fmt.Println("  " + line)
		}
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a download",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		if err := newAPIClient(serverURL).cancel(args[0]); err != nil {
			return err
		}
		printSuccess("Download cancelled successfully")
		return nil
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry [id]",
	Short: "Retry a failed or cancelled download",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		download, err := newAPIClient(serverURL).retry(args[0])
		if err != nil {
			return err
		}
		printSuccess("Download %s queued for retry", download.ID)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a finished download from history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		if err := newAPIClient(serverURL).remove(args[0]); err != nil {
			return err
		}
		printSuccess("Download deleted")
		return nil
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs [id]",
	Short: "View the downloader output of a download",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ensureServer()

		lines, err := newAPIClient(serverURL).downloadLog(args[0])
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			printInfo("No log entry found")
			return nil
		}
		for _, line := range lines {
			fmt.Println(streamStyle.Render(line))
		}
		return nil
	},
}

func init() {
	addCmd.Flags().StringP("format", "f", "mp4", "Output format (mp4, mp3)")
	addCmd.Flags().Bool("follow", false, "Stream status until the download finishes")
	listCmd.Flags().StringP("status", "s", "", "Filter by status")
	listCmd.Flags().IntP("limit", "n", 0, "Maximum number of downloads")
}
