package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/ytfetch-go/internal/app"
	"github.com/yourusername/ytfetch-go/internal/domain"
	"github.com/yourusername/ytfetch-go/pkg/logger"
)

// openServices loads the config and wires a local download stack
func openServices() (*app.Services, error) {
	config, err := app.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return app.NewServices(config, logger.NewCLI(verbose))
}

// parseFetchRequest rejects a bad format or url before anything is
// recorded in the history
func parseFetchRequest(rawURL, formatName string) (domain.Format, error) {
	format, err := domain.ParseFormat(formatName)
	if err != nil {
		return "", err
	}
	if !domain.ValidateURL(domain.NormalizeURL(rawURL)) {
		return "", domain.NewDownloadError(domain.KindValidation, "Please enter a valid YouTube URL", nil)
	}
	return format, nil
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [url]",
	Short: "Download a video in this process",
	Long:  "Download a video or its audio track without a server. Ctrl-C cancels the download.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatName, _ := cmd.Flags().GetString("format")
		format, err := parseFetchRequest(args[0], formatName)
		if err != nil {
			return err
		}

		services, err := openServices()
		if err != nil {
			return err
		}
		defer services.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// provisioning errors surface through the download events
		_ = services.Manager.Start(ctx)

		job, err := services.Manager.RequestDownload(ctx, args[0], format)
		if err != nil {
			return err
		}

		go func() {
			select {
			case <-ctx.Done():
				_ = services.Manager.CancelDownload(job.ID)
			case <-job.Done():
			}
		}()

		for ev := range job.Events() {
			printEvent(ev)
		}

		_, err = job.Result()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = services.Manager.Shutdown(shutdownCtx)
		return err
	},
}

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Install the bundled downloader and transcoder",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := openServices()
		if err != nil {
			return err
		}
		defer services.Close()

		tools := services.Config.Tools
		binaries, err := services.Provisioner.EnsureAll(cmd.Context(), tools.Downloader, tools.Transcoder)
		if err != nil {
			return err
		}

		for _, bin := range binaries {
			fmt.Printf("%s  %s\n", bin.LogicalName, streamStyle.Render(bin.InstalledPath))
		}
		printSuccess(app.ReadyMessage)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show local download history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		services, err := openServices()
		if err != nil {
			return err
		}
		defer services.Close()

		downloads, err := services.Manager.RecentDownloads(limit)
		if err != nil {
			return err
		}
		if len(downloads) == 0 {
			printInfo("No downloads yet")
			return nil
		}
		fmt.Println(downloadsTable(downloads))
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with default values",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		path, err := defaultConfigPath()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			path = args[0]
		}

		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		}

		if err := app.SaveConfig(domain.DefaultConfig(), path); err != nil {
			return err
		}
		printSuccess("Wrote %s", path)
		return nil
	},
}

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".ytfetch", "config.yaml"), nil
}

func init() {
	fetchCmd.Flags().StringP("format", "f", "mp4", "Output format (mp4, mp3)")
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of downloads")
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
}
