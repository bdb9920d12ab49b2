package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"eduattend/cmd/eduattend/chat"
	"eduattend/internal/api"
	"eduattend/internal/artifact"
	"eduattend/internal/config"
	"eduattend/internal/dispatch"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// runInteractiveChat launches the interactive chat interface
func runInteractiveChat(cmd *cobra.Command) error {
	client := api.NewClient(appCfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	factory, closeWS := transportFactory(ctx, client, appCfg.Server.Transport)
	defer closeWS()

	// Only watch a config file that exists; Load falls back to defaults.
	watchPath := configPath
	if watchPath == "" {
		watchPath = config.DefaultConfigPath()
	}
	if _, err := os.Stat(watchPath); err != nil {
		watchPath = ""
	}

	m, err := chat.New(chat.Config{
		App:        appCfg,
		ConfigPath: watchPath,
		Transports: factory,
		Prober:     client,
		Options:    dispatch.RosterSource(client),
		Downloader: artifact.NewDownloader(client, expandDir(appCfg.Artifacts.DownloadDir), artifact.BrowserOpener{}),
		SessionKey: sessionKey,
		Theme:      theme,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize chat: %w", err)
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if fm, ok := final.(chat.Model); ok {
		fm.Shutdown()
	}
	if err != nil {
		return fmt.Errorf("error running interactive chat: %w", err)
	}
	return nil
}

// expandDir resolves a leading ~ against the home directory.
func expandDir(dir string) string {
	if dir == "~" || (len(dir) > 1 && dir[:2] == "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, dir[1:])
		}
	}
	return dir
}
