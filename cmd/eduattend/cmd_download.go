package main

import (
	"fmt"

	"eduattend/internal/api"
	"eduattend/internal/artifact"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	downloadDir string
	noBrowser   bool
)

// runDownload saves one artifact, opening it in the browser if the fetch fails.
func runDownload(cmd *cobra.Command, args []string) error {
	dir := downloadDir
	if dir == "" {
		dir = expandDir(appCfg.Artifacts.DownloadDir)
	}

	var opener artifact.Opener
	if !noBrowser {
		opener = artifact.BrowserOpener{}
	}

	ctx, cancel := signalContext(timeout)
	defer cancel()

	client := api.NewClient(appCfg)
	res, err := artifact.NewDownloader(client, dir, opener).Download(ctx, args[0])
	if err != nil {
		return fmt.Errorf("download of %s failed: %w", args[0], err)
	}

	out := cmd.OutOrStdout()
	if res.Fallback {
		fmt.Fprintf(out, "Opened %s in the browser\n", res.URL)
		return nil
	}
	logger.Info("Downloaded artifact",
		zap.String("file", res.Filename),
		zap.String("path", res.Path),
		zap.Int64("bytes", res.Bytes))
	fmt.Fprintf(out, "Saved %s (%d bytes)\n", res.Path, res.Bytes)
	return nil
}
