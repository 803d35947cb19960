// Package bridgedemo runs two in-process domains connected by a loopback
// transport and walks a scripted completion through the bridge, printing
// each side's ledger as it converges.
package bridgedemo

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/louisbranch/questbridge/internal/ledger/authz"
	"github.com/louisbranch/questbridge/internal/ledger/domain"
	"github.com/louisbranch/questbridge/internal/ledger/service"
	"github.com/louisbranch/questbridge/internal/ledger/storage/sqlite"
	entrypoint "github.com/louisbranch/questbridge/internal/platform/cmd"
	"github.com/louisbranch/questbridge/internal/relay"
	"github.com/louisbranch/questbridge/internal/transport/loopback"
)

// Config holds bridge-demo command configuration.
type Config struct {
	// DataDir holds the two demo databases. A temporary directory is used
	// when empty.
	DataDir string `env:"QUESTBRIDGE_DEMO_DATA_DIR"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DataDir, "data", cfg.DataDir, "Directory for the demo databases (temporary when empty)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// bridgeDomain is one fully wired side of the demo.
type bridgeDomain struct {
	id        uint64
	name      string
	authority *service.Authority
	registry  *service.Registry
	relayAddr domain.Address
	relay     *relay.Relay
	store     *sqlite.Store
}

var (
	transportID = mustAddr(0xf0)
	moduleAddr  = mustAddr(0xf1)
	userAddr    = mustAddr(0xf2)
)

func mustAddr(suffix byte) domain.Address {
	var a domain.Address
	a[0] = 0xde
	a[domain.AddressLength-1] = suffix
	return a
}

// Run wires both domains and plays the demo script.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceBridgeDemo, func(ctx context.Context) error {
		return run(ctx, cfg)
	})
}

func run(ctx context.Context, cfg Config) error {
	dataDir := cfg.DataDir
	if dataDir == "" {
		tmp, err := os.MkdirTemp("", "questbridge-demo-")
		if err != nil {
			return fmt.Errorf("create demo dir: %w", err)
		}
		defer os.RemoveAll(tmp)
		dataDir = tmp
	}

	lb := loopback.New(transportID)

	alpha, err := newBridgeDomain(dataDir, 1, "alpha", mustAddr(0x11), mustAddr(0x12))
	if err != nil {
		return err
	}
	defer alpha.store.Close()
	beta, err := newBridgeDomain(dataDir, 2, "beta", mustAddr(0x21), mustAddr(0x22))
	if err != nil {
		return err
	}
	defer beta.store.Close()

	connect(lb, alpha, beta)
	connect(lb, beta, alpha)

	// Mirror the quest catalog and the user on both domains.
	quests := []domain.CreateQuestInput{
		{Name: "Stake 100 tokens", XPReward: 250, Type: domain.QuestTypeDeFi, Creator: moduleAddr},
		{Name: "Hold a genesis badge", XPReward: 120, Type: domain.QuestTypeNFT, Creator: moduleAddr},
	}
	var questIDs []uint64
	for _, input := range quests {
		questA, err := alpha.registry.CreateQuest(ctx, input)
		if err != nil {
			return fmt.Errorf("create quest on alpha: %w", err)
		}
		if _, err := beta.registry.CreateQuest(ctx, input); err != nil {
			return fmt.Errorf("create quest on beta: %w", err)
		}
		questIDs = append(questIDs, questA.ID)
	}
	for _, d := range []*bridgeDomain{alpha, beta} {
		if _, err := d.authority.RegisterUser(ctx, userAddr); err != nil {
			return fmt.Errorf("register user on %s: %w", d.name, err)
		}
	}

	log.Printf("completing quest %d on alpha as module %s", questIDs[0], moduleAddr)
	if err := alpha.authority.CompleteQuest(ctx, moduleAddr, questIDs[0], userAddr); err != nil {
		return fmt.Errorf("complete on alpha: %w", err)
	}
	report(ctx, alpha, beta)

	log.Printf("completing quest %d on beta as module %s", questIDs[1], moduleAddr)
	if err := beta.authority.CompleteQuest(ctx, moduleAddr, questIDs[1], userAddr); err != nil {
		return fmt.Errorf("complete on beta: %w", err)
	}
	report(ctx, alpha, beta)

	log.Print("both domains converged")
	return nil
}

func newBridgeDomain(dataDir string, id uint64, name string, ledgerAddr, relayAddr domain.Address) (*bridgeDomain, error) {
	store, err := sqlite.Open(filepath.Join(dataDir, name+".db"))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", name, err)
	}

	caps := authz.NewRegistry()
	caps.Grant(authz.CapabilityCompleteQuest, moduleAddr)
	caps.Grant(authz.CapabilityRelayUpdate, relayAddr)

	return &bridgeDomain{
		id:        id,
		name:      name,
		authority: service.NewAuthority(store, caps, ledgerAddr),
		registry:  service.NewRegistry(store),
		relayAddr: relayAddr,
		store:     store,
	}, nil
}

// connect builds d's relay toward peer and attaches it to the transport.
func connect(lb *loopback.Loopback, d, peer *bridgeDomain) {
	d.relay = relay.New(relay.Config{
		Address:             d.relayAddr,
		Ledger:              d.authority.Address(),
		Counterpart:         peer.relayAddr,
		LocalDomainID:       d.id,
		CounterpartDomainID: peer.id,
		Transport:           lb,
		TransportID:         transportID,
		Journal:             d.store,
	}, d.authority)
	d.authority.AttachForwarder(d.relay)
	lb.Attach(d.id, d.relayAddr, d.relay)
}

func report(ctx context.Context, domains ...*bridgeDomain) {
	for _, d := range domains {
		progress, err := d.authority.Progress(ctx, userAddr)
		if err != nil {
			log.Printf("%s: progress unavailable: %v", d.name, err)
			continue
		}
		log.Printf("%s: user %s has %d xp, level %d, completed %v", d.name, progress.User, progress.XP, progress.Level, progress.Completed)
	}
}
