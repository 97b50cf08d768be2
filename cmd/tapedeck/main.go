package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tapedeck-player/tapedeck/internal/catalog"
	"github.com/tapedeck-player/tapedeck/internal/persist"
	"github.com/tapedeck-player/tapedeck/internal/session"
	"github.com/tapedeck-player/tapedeck/internal/tapedeck"
)

type appKey struct{}

type app struct {
	cfg   tapedeck.Config
	log   *zap.Logger
	store *persist.Store
}

func fromContext(cmd *cobra.Command) *app {
	return cmd.Context().Value(appKey{}).(*app)
}

func main() {
	root := &cobra.Command{
		Use:           "tapedeck",
		Short:         "Terminal player for Internet Archive audio items",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var (
		configPath string
		catalogID  string
		logLevel   string
	)

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	root.PersistentFlags().StringVar(&catalogID, "catalog", "", "archive catalog identifier")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			path, err := tapedeck.DefaultConfigPath()
			if err != nil {
				return err
			}
			configPath = path
		}

		cfg, err := tapedeck.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if catalogID != "" {
			cfg.Catalog.ID = catalogID
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if cfg.Player.StatePath == "" {
			path, err := tapedeck.DefaultStatePath()
			if err != nil {
				return err
			}
			cfg.Player.StatePath = path
		}

		log := tapedeck.NewLogger(cfg.Log)
		store, err := persist.Open(cfg.Player.StatePath, log)
		if err != nil {
			return err
		}

		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &app{
			cfg:   cfg,
			log:   log,
			store: store,
		}))
		return nil
	}

	root.AddCommand(playCommand())
	root.AddCommand(fetchCommand())
	root.AddCommand(lsCommand())
	root.AddCommand(statusCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newFetch builds the playlist source from the config: an RSS feed when
// configured, else the archive catalog.
func newFetch(a *app) (session.FetchFunc, error) {
	log := a.log.With(zap.String("component", "catalog"))
	if a.cfg.Catalog.FeedURL != "" {
		source, err := catalog.NewFeedSource(log, a.cfg.Catalog.FeedURL, timeout(a))
		if err != nil {
			return nil, err
		}
		return source.Fetch, nil
	}

	if a.cfg.Catalog.ID == "" {
		return nil, errors.New("catalog id required (set --catalog or config)")
	}
	client := catalog.NewClient(log, catalog.ClientConfig{
		BaseURL:  a.cfg.Catalog.BaseURL,
		Format:   a.cfg.Catalog.Format,
		URLStyle: a.cfg.Catalog.URLStyle,
		Timeout:  timeout(a),
	})
	catalogID := a.cfg.Catalog.ID
	return func(ctx context.Context) ([]catalog.AudioItem, error) {
		return client.Fetch(ctx, catalogID)
	}, nil
}

func timeout(a *app) time.Duration {
	return time.Duration(a.cfg.Catalog.TimeoutMS) * time.Millisecond
}
