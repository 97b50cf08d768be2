package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tapedeck-player/tapedeck/internal/broadcast"
	"github.com/tapedeck-player/tapedeck/internal/renderer"
	"github.com/tapedeck-player/tapedeck/internal/session"
	"github.com/tapedeck-player/tapedeck/internal/sleeptimer"
	"github.com/tapedeck-player/tapedeck/internal/tui"
)

func playCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Open the player",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd)
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			fetch, err := newFetch(a)
			if err != nil {
				return err
			}

			// The driver is built before the session it feeds, so the
			// sink is bound once the session exists.
			sink := &renderer.LateSink{}
			driver, err := newDriver(a, sink.Emit)
			if err != nil {
				return err
			}
			defer driver.Stop()

			sess := session.New(a.log.With(zap.String("component", "session")), driver, a.store)
			sink.Bind(sess.Apply)

			timer := sleeptimer.New(a.log.With(zap.String("component", "sleeptimer")), sess.ForcePause)
			defer timer.Cancel()

			if err := wireBroadcast(ctx, a, sess); err != nil {
				a.log.Warn("broadcast disabled", zap.Error(err))
			}

			sess.Restore()
			if sess.Snapshot().Loading {
				go func() {
					if err := sess.Reload(ctx, fetch); err != nil {
						a.log.Warn("initial fetch failed", zap.Error(err))
					}
				}()
			}

			reload := func() error {
				return sess.Reload(ctx, fetch)
			}
			return tui.Run(tui.New(a.log.With(zap.String("component", "tui")), sess, timer, reload))
		},
	}
}

func newDriver(a *app, sink renderer.EventSink) (renderer.Driver, error) {
	log := a.log.With(zap.String("component", "renderer"))
	switch a.cfg.Player.Driver {
	case "", "beep":
		return renderer.NewBeepDriver(log, sink), nil
	case "gstreamer":
		return renderer.NewGstDriver(log, sink, a.cfg.Player.Pipeline, a.cfg.Player.Device)
	default:
		return nil, fmt.Errorf("unknown driver %q", a.cfg.Player.Driver)
	}
}

// wireBroadcast publishes every session change as a retained now-playing
// message, optionally serving it from an embedded broker.
func wireBroadcast(ctx context.Context, a *app, sess *session.Session) error {
	cfg := a.cfg.Broadcast
	if !cfg.Enabled {
		return nil
	}

	brokerURL := cfg.Broker
	if cfg.Embedded {
		broker, err := broadcast.NewBroker(a.log, broadcast.BrokerConfig{
			Listen:         cfg.Listen,
			AllowAnonymous: cfg.Username == "",
			Username:       cfg.Username,
			Password:       cfg.Password,
		})
		if err != nil {
			return err
		}
		go func() {
			if err := broker.Run(ctx); err != nil {
				a.log.Warn("embedded broker stopped", zap.Error(err))
			}
		}()
		brokerURL = broker.URL()
		// Give the listener a moment to bind before connecting.
		time.Sleep(200 * time.Millisecond)
	}

	client, err := broadcast.NewClient(broadcast.Options{
		BrokerURL: brokerURL,
		ClientID:  "tapedeck-" + uuid.NewString(),
		Username:  cfg.Username,
		Password:  cfg.Password,
		Logger:    a.log,
	})
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		client.Close()
	}()

	publisher := broadcast.NewPublisher(a.log.With(zap.String("component", "broadcast")), client, cfg.Topic)
	publisher.Artist = a.cfg.Catalog.ID
	sess.OnChange(publisher.Publish)
	return nil
}
