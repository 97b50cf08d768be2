package broadcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"go.uber.org/zap"
)

// BrokerConfig configures the embedded MQTT broker.
type BrokerConfig struct {
	Listen         string
	AllowAnonymous bool
	Username       string
	Password       string
}

// Broker runs an embedded MQTT broker so local subscribers can follow the
// now-playing feed without an external server.
type Broker struct {
	log    *zap.Logger
	server *mqtt.Server
	config BrokerConfig
}

// NewBroker creates the embedded broker.
func NewBroker(log *zap.Logger, cfg BrokerConfig) (*Broker, error) {
	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = "127.0.0.1:1883"
	}

	// The broker's own chatter is not interesting; player events are
	// logged at the publisher.
	options := &mqtt.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	server := mqtt.New(options)

	if cfg.AllowAnonymous {
		if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
			return nil, err
		}
	} else if cfg.Username != "" {
		ledger := &auth.Ledger{
			Auth: auth.AuthRules{{Username: auth.RString(cfg.Username), Password: auth.RString(cfg.Password), Allow: true}},
			ACL:  auth.ACLRules{{Username: auth.RString(cfg.Username), Filters: auth.Filters{auth.RString("#"): auth.ReadWrite}}},
		}
		if err := server.AddHook(new(auth.Hook), &auth.Options{Ledger: ledger}); err != nil {
			return nil, err
		}
	} else {
		return nil, errors.New("embedded broker requires allow_anonymous or username")
	}

	return &Broker{log: log, server: server, config: cfg}, nil
}

// URL returns the broker address in a form the paho client accepts.
func (b *Broker) URL() string {
	return fmt.Sprintf("tcp://%s", b.config.Listen)
}

// Run serves the broker until ctx is cancelled.
func (b *Broker) Run(ctx context.Context) error {
	listener := listeners.NewTCP(listeners.Config{ID: "tcp-embedded", Address: b.config.Listen})
	if err := b.server.AddListener(listener); err != nil {
		return err
	}

	b.log.Info("embedded broker listening", zap.String("addr", b.config.Listen))
	go func() {
		_ = b.server.Serve()
	}()

	<-ctx.Done()
	return b.server.Close()
}
