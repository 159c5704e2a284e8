package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/rozo-hq/intent-relayer/pkg/chainclient"
	"github.com/rozo-hq/intent-relayer/pkg/config"
	"github.com/rozo-hq/intent-relayer/pkg/fees"
	"github.com/rozo-hq/intent-relayer/pkg/gate"
	"github.com/rozo-hq/intent-relayer/pkg/health"
	"github.com/rozo-hq/intent-relayer/pkg/ledger"
	"github.com/rozo-hq/intent-relayer/pkg/logger"
	"github.com/rozo-hq/intent-relayer/pkg/messenger"
	"github.com/rozo-hq/intent-relayer/pkg/policy"
	"github.com/rozo-hq/intent-relayer/pkg/relayer"
	"github.com/rozo-hq/intent-relayer/pkg/types"
	"github.com/rozo-hq/intent-relayer/pkg/vault"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	stdLogger := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	signerKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.SignerKey, "0x"))
	if err != nil {
		log.Fatalf("Failed to parse SIGNER_KEY: %v", err)
	}
	trusted := crypto.PubkeyToAddress(signerKey.PublicKey)

	engine, err := fees.NewEngine(cfg.FeeBps)
	if err != nil {
		log.Fatalf("Failed to create fee engine: %v", err)
	}

	pol := policy.FallbackPolicy{
		FallbackRelayer:   cfg.FallbackRelayer,
		FallbackThreshold: cfg.FallbackThreshold,
	}

	// In-process chain backends: one vault, ledger and gate per chain, with
	// messenger adapters routing proofs from each gate into the ledgers of
	// the other chains.
	ledgers := make(map[uint64]*ledger.Ledger)
	clients := make(map[uint64]chainclient.Client)

	deliver := func(originChainID uint64, adapterID uint8) messenger.DeliverFunc {
		return func(ctx context.Context, targetChainID uint64, env messenger.Envelope) error {
			target, ok := ledgers[targetChainID]
			if !ok {
				return errors.Errorf("no ledger for chain %d", targetChainID)
			}
			return target.Notify(ctx, adapterID, originChainID, env)
		}
	}

	for _, chainCfg := range cfg.Chains {
		chainID := chainCfg.ChainID

		v := vault.NewMemoryVault()
		registry := messenger.NewRegistry()
		registry.Register(0, messenger.NewSignerAdapter(chainID, signerKey, trusted, deliver(chainID, 0), stdLogger))

		quorum, err := messenger.NewQuorumAdapter(
			chainID,
			[]common.Address{trusted},
			1,
			[]*ecdsa.PrivateKey{signerKey},
			deliver(chainID, 1),
			stdLogger,
		)
		if err != nil {
			log.Fatalf("Failed to create quorum adapter for chain %d: %v", chainID, err)
		}
		registry.Register(1, quorum)

		l := ledger.New(chainID, escrowAddress(chainID), engine, v, registry, stdLogger)
		g := gate.New(chainID, v, registry, pol, stdLogger)

		ledgers[chainID] = l
		clients[chainID] = chainclient.NewLocal(chainID, l, g)
	}

	service, err := relayer.NewService(cfg, clients, stdLogger)
	if err != nil {
		log.Fatalf("Failed to create relayer service: %v", err)
	}

	healthServer := health.NewServer(cfg.MetricsPort, clients, service.CircuitBreakers(), cfg.MetricsAPIKey, stdLogger)
	go healthServer.Start()

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		stdLogger.Notice("Received termination signal, shutting down gracefully...")
		cancel()
	}()

	stdLogger.Notice("Starting the relayer service...")
	service.Start(ctx)
}

// escrowAddress derives the per-chain address that holds locked intent funds.
func escrowAddress(chainID uint64) types.Address {
	var raw [32]byte
	copy(raw[:6], "escrow")
	binary.BigEndian.PutUint64(raw[24:], chainID)
	return types.AddressFromBytes32(raw)
}
