// Package ledger parses ledger command flags and starts one domain's quest
// ledger process: the JSON API, the sqlite-backed store, and optionally the
// HTTP bridge toward a counterpart domain.
package ledger

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/questbridge/internal/ledger/api/httpapi"
	"github.com/louisbranch/questbridge/internal/ledger/authz"
	"github.com/louisbranch/questbridge/internal/ledger/domain"
	"github.com/louisbranch/questbridge/internal/ledger/service"
	"github.com/louisbranch/questbridge/internal/ledger/storage/sqlite"
	entrypoint "github.com/louisbranch/questbridge/internal/platform/cmd"
	"github.com/louisbranch/questbridge/internal/relay"
	"github.com/louisbranch/questbridge/internal/relay/history"
	"github.com/louisbranch/questbridge/internal/transport/httpbridge"
)

const shutdownTimeout = 10 * time.Second

// Config holds ledger command configuration.
type Config struct {
	Port int    `env:"QUESTBRIDGE_LEDGER_PORT" envDefault:"8090"`
	Addr string `env:"QUESTBRIDGE_LEDGER_ADDR"`

	DBPath      string `env:"QUESTBRIDGE_LEDGER_DB_PATH"`
	HistoryPath string `env:"QUESTBRIDGE_RELAY_HISTORY_PATH"`

	DomainID            uint64 `env:"QUESTBRIDGE_DOMAIN_ID" envDefault:"1"`
	CounterpartDomainID uint64 `env:"QUESTBRIDGE_COUNTERPART_DOMAIN_ID" envDefault:"2"`
	// CounterpartURL points at the peer ledger's bridge endpoint. When
	// empty the process runs standalone and completions stay local.
	CounterpartURL string `env:"QUESTBRIDGE_COUNTERPART_URL"`

	LedgerAddress           string `env:"QUESTBRIDGE_LEDGER_ADDRESS" envDefault:"0x0000000000000000000000000000000000000001"`
	RelayAddress            string `env:"QUESTBRIDGE_RELAY_ADDRESS" envDefault:"0x0000000000000000000000000000000000000002"`
	CounterpartRelayAddress string `env:"QUESTBRIDGE_COUNTERPART_RELAY_ADDRESS" envDefault:"0x0000000000000000000000000000000000000003"`
	TransportAddress        string `env:"QUESTBRIDGE_TRANSPORT_ADDRESS" envDefault:"0x0000000000000000000000000000000000000004"`
	// CompleterAddresses is a comma-separated list of quest-module
	// addresses granted the complete_quest capability at startup.
	CompleterAddresses string `env:"QUESTBRIDGE_COMPLETER_ADDRESSES"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The ledger HTTP port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The ledger listen address (overrides -port)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the ledger sqlite database")
	fs.StringVar(&cfg.HistoryPath, "history", cfg.HistoryPath, "Path to the relay history database")
	fs.StringVar(&cfg.CounterpartURL, "counterpart-url", cfg.CounterpartURL, "Base URL of the counterpart ledger's bridge endpoint")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "ledger.db")
	}
	if cfg.HistoryPath == "" {
		cfg.HistoryPath = filepath.Join("data", "relay-history.db")
	}
	return cfg, nil
}

// addresses is the set of parsed actor identities from Config.
type addresses struct {
	ledger           domain.Address
	relay            domain.Address
	counterpartRelay domain.Address
	transport        domain.Address
	completers       []domain.Address
}

func parseAddresses(cfg Config) (addresses, error) {
	var out addresses
	var err error
	if out.ledger, err = domain.ParseAddress(cfg.LedgerAddress); err != nil {
		return addresses{}, fmt.Errorf("ledger address: %w", err)
	}
	if out.relay, err = domain.ParseAddress(cfg.RelayAddress); err != nil {
		return addresses{}, fmt.Errorf("relay address: %w", err)
	}
	if out.counterpartRelay, err = domain.ParseAddress(cfg.CounterpartRelayAddress); err != nil {
		return addresses{}, fmt.Errorf("counterpart relay address: %w", err)
	}
	if out.transport, err = domain.ParseAddress(cfg.TransportAddress); err != nil {
		return addresses{}, fmt.Errorf("transport address: %w", err)
	}
	for _, raw := range strings.Split(cfg.CompleterAddresses, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		addr, err := domain.ParseAddress(raw)
		if err != nil {
			return addresses{}, fmt.Errorf("completer address %q: %w", raw, err)
		}
		out.completers = append(out.completers, addr)
	}
	return out, nil
}

// Run starts the ledger process and blocks until ctx is canceled or the
// server fails.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceLedger, func(ctx context.Context) error {
		return run(ctx, cfg)
	})
}

func run(ctx context.Context, cfg Config) error {
	addrs, err := parseAddresses(cfg)
	if err != nil {
		return err
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open ledger store: %w", err)
	}
	defer store.Close()

	caps := authz.NewRegistry()
	for _, completer := range addrs.completers {
		caps.Grant(authz.CapabilityCompleteQuest, completer)
	}
	caps.Grant(authz.CapabilityRelayUpdate, addrs.relay)

	authority := service.NewAuthority(store, caps, addrs.ledger)
	registry := service.NewRegistry(store)

	mux := http.NewServeMux()
	mux.Handle("/", httpapi.New(authority, registry, store))

	if cfg.CounterpartURL != "" {
		hist, err := history.Open(cfg.HistoryPath)
		if err != nil {
			return fmt.Errorf("open relay history: %w", err)
		}
		defer hist.Close()

		client, err := httpbridge.NewClient(httpbridge.ClientConfig{
			BaseURL:        cfg.CounterpartURL,
			LocalDomainID:  cfg.DomainID,
			TargetDomainID: cfg.CounterpartDomainID,
		})
		if err != nil {
			return fmt.Errorf("build bridge client: %w", err)
		}

		bridgeRelay := relay.New(relay.Config{
			Address:             addrs.relay,
			Ledger:              addrs.ledger,
			Counterpart:         addrs.counterpartRelay,
			LocalDomainID:       cfg.DomainID,
			CounterpartDomainID: cfg.CounterpartDomainID,
			Transport:           client,
			TransportID:         addrs.transport,
			Journal:             store,
			History:             hist,
		}, authority)
		authority.AttachForwarder(bridgeRelay)
		mux.Handle(httpbridge.DeliverPath, httpbridge.Handler(addrs.transport, bridgeRelay))

		log.Printf("ledger domain %d bridging to domain %d at %s", cfg.DomainID, cfg.CounterpartDomainID, cfg.CounterpartURL)
	} else {
		log.Printf("ledger domain %d running standalone, no counterpart configured", cfg.DomainID)
	}

	addr := cfg.Addr
	if addr == "" {
		addr = fmt.Sprintf(":%d", cfg.Port)
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("ledger listening on %s", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown ledger server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
