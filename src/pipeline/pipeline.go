// Package pipeline runs the bot: one scan, install and test cycle per
// invocation, with run history and run events on the side.
package pipeline

import (
	"context"
	"fmt"

	"sikuli-bot/src/broker"
	"sikuli-bot/src/config"
	"sikuli-bot/src/contracts"
	"sikuli-bot/src/logger"
	"sikuli-bot/src/store"
)

// Mode says where run history and run events live.
type Mode int

const (
	// LocalMode keeps history in a file (or memory) and events in process.
	LocalMode Mode = iota
	// DistributedMode uses Postgres and Redpanda.
	DistributedMode
)

func (m Mode) String() string {
	if m == DistributedMode {
		return "distributed"
	}
	return "local"
}

// DetectMode picks DistributedMode when Redpanda brokers are configured.
func DetectMode(cfg *config.Config) Mode {
	if len(cfg.Broker.Brokers) > 0 {
		return DistributedMode
	}
	return LocalMode
}

// Backends holds the history store and event broker of a process.
type Backends struct {
	Mode   Mode
	Store  store.Store
	Broker broker.Broker
}

// OpenBackends connects to the configured store and broker. Postgres is
// used whenever a DSN is set, independent of the broker.
func OpenBackends(ctx context.Context, cfg *config.Config, log logger.Logger) (*Backends, error) {
	b := &Backends{Mode: DetectMode(cfg)}

	switch {
	case cfg.Store.PostgresDSN != "":
		pg, err := store.NewPostgresStore(cfg.Store.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		b.Store = pg
		log.Debug("Run history in Postgres")
	case cfg.Store.File != "":
		fs, err := store.NewFileStore(cfg.Store.File)
		if err != nil {
			return nil, err
		}
		b.Store = fs
		log.Debug("Run history in %s", cfg.Store.File)
	default:
		b.Store = store.NewMemoryStore()
	}

	if b.Mode == DistributedMode {
		rp, err := broker.NewRedpandaBroker(cfg.Broker.Brokers, log)
		if err != nil {
			b.Store.Close()
			return nil, err
		}
		b.Broker = rp
		log.Debug("Publishing run events to %v", cfg.Broker.Brokers)
	} else {
		b.Broker = broker.NewInMemoryBroker(100)
	}
	return b, nil
}

// Close closes the broker and the store, whichever are set.
func (b *Backends) Close() error {
	var berr, serr error
	if b.Broker != nil {
		berr = b.Broker.Close()
	}
	if b.Store != nil {
		serr = b.Store.Close()
	}
	if berr != nil {
		return berr
	}
	return serr
}

// StreamEvents subscribes to run events and decodes them. Undecodable
// messages are logged and skipped.
func StreamEvents(ctx context.Context, b broker.Broker, groupID string, log logger.Logger) (<-chan contracts.RunEvent, error) {
	msgChan, err := b.Subscribe(ctx, contracts.TopicRuns, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to run events: %w", err)
	}

	events := make(chan contracts.RunEvent, 100)
	go func() {
		defer close(events)
		for {
			select {
			case msg, ok := <-msgChan:
				if !ok {
					return
				}
				ev, err := broker.DecodeRunEvent(msg)
				if err != nil {
					log.Warn("[pipeline] %v", err)
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}
