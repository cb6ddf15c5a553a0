package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crossbank/ledgerd/internal/config"
	"github.com/crossbank/ledgerd/internal/crypto"
	"github.com/crossbank/ledgerd/internal/crypto/providers/ecdsasecp256k1"
	"github.com/crossbank/ledgerd/internal/crypto/providers/pkcs11hsm"
	"github.com/crossbank/ledgerd/internal/crypto/providers/softkey"
	"github.com/crossbank/ledgerd/internal/ledger"
	"github.com/crossbank/ledgerd/internal/netting"
	"github.com/crossbank/ledgerd/internal/settlement"
	"github.com/crossbank/ledgerd/internal/storage/kv"
	"github.com/crossbank/ledgerd/internal/storage/kv/boltkv"
	"github.com/crossbank/ledgerd/internal/storage/kv/pebblekv"
)

// Exit codes per spec §6: 0 clean shutdown, 1 config error, 2 storage
// open failure, 3 recovery integrity failure, 4 HSM init failure.
const (
	exitOK              = 0
	exitConfigError     = 1
	exitStorageFailure  = 2
	exitRecoveryFailure = 3
	exitHSMFailure      = 4
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "run the ledger writer and settlement manager",
	Run:   runServer,
}

func runServer(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(exitConfigError)
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(exitConfigError)
	}
	defer log.Sync()

	signer, err := openSigner(cfg.HSM)
	if err != nil {
		log.Error("hsm init failed", zap.Error(err))
		os.Exit(exitHSMFailure)
	}

	db, err := openStorage(cfg.Storage)
	if err != nil {
		log.Error("storage open failed", zap.Error(err))
		os.Exit(exitStorageFailure)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledgerCfg := ledger.Config{
		BlockSize:        cfg.Ledger.BlockSize,
		BlockTimeout:     cfg.Ledger.BlockTimeout(),
		BatchMaxEvents:   cfg.Ledger.BatchMaxEvents,
		BatchMaxDelay:    cfg.Ledger.BatchMaxDelay(),
		MailboxCapacity:  cfg.Ledger.MailboxCapacity,
		AppendTimeout:    cfg.Ledger.AppendTimeout(),
		SignatureRetries: ledger.DefaultConfig().SignatureRetries,
		SignatureBackoff: ledger.DefaultConfig().SignatureBackoff,
	}

	led, err := ledger.Open(ctx, db, signer, ledgerCfg, log)
	if err != nil {
		log.Error("ledger recovery failed", zap.Error(err))
		os.Exit(exitRecoveryFailure)
	}
	defer led.Close()

	mgr := settlement.New(
		settlement.Config{
			WindowInterval:       cfg.Settlement.WindowInterval(),
			MaxWindowsBeforeFail: cfg.Settlement.MaxWindowsBeforeFail,
		},
		led,
		noopConnector{},
		allowAllScreen{},
		netting.Liquidity{},
		log,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- mgr.Run(ctx, 1) }()

	log.Info("ledgerd started", zap.String("storage_backend", cfg.Storage.Backend), zap.String("hsm_type", cfg.HSM.Type))

	select {
	case <-ctx.Done():
		mgr.Stop()
	case err := <-errCh:
		if err != nil {
			log.Error("settlement manager exited", zap.Error(err))
		}
	}

	log.Info("ledgerd shutting down")
	os.Exit(exitOK)
}

// openStorage opens the ledger's KV store through each backend's
// Manager rather than a bare Open, so a future additional namespace
// (e.g. a dedicated settlement snapshot store) can be opened from the
// same root directory without changing this wiring.
func openStorage(sc config.StorageConfig) (kv.DB, error) {
	switch sc.Backend {
	case "bbolt":
		return boltkv.NewManager(sc.Path).Open("ledger")
	default:
		return pebblekv.NewManager(sc.Path).Open("ledger")
	}
}

// openSigner selects and constructs the signing capability per
// hsm.type. softkey/ecdsa-secp256k1 derive their key material from
// hsm.seed (hex-encoded); an empty seed generates a fresh one, which is
// only appropriate for development (a freshly generated key cannot
// verify any previously-signed block).
func openSigner(hc config.HSMConfig) (crypto.Signer, error) {
	switch hc.Type {
	case "ecdsa-secp256k1":
		if hc.Seed == "" {
			return ecdsasecp256k1.Generate(hc.KeyID, hc.Epoch)
		}
		secret, err := hex.DecodeString(hc.Seed)
		if err != nil {
			return nil, fmt.Errorf("hsm.seed: %w", err)
		}
		return ecdsasecp256k1.New(secret, hc.KeyID, hc.Epoch)
	case "pkcs11":
		return pkcs11hsm.New(pkcs11hsm.Config{
			Module: hc.ModulePath,
			Slot:   hc.SlotID,
			KeyID:  hc.KeyID,
			Epoch:  hc.Epoch,
		}), nil
	default:
		if hc.Seed == "" {
			return softkey.Generate(hc.KeyID, hc.Epoch)
		}
		seed, err := hex.DecodeString(hc.Seed)
		if err != nil {
			return nil, fmt.Errorf("hsm.seed: %w", err)
		}
		return softkey.New(seed, hc.KeyID, hc.Epoch)
	}
}

func newLogger(lc config.LogConfig) (*zap.Logger, error) {
	if lc.Development {
		return zap.NewDevelopment()
	}
	zcfg := zap.NewProductionConfig()
	if lc.Level != "" {
		level, err := zap.ParseAtomicLevel(lc.Level)
		if err != nil {
			return nil, err
		}
		zcfg.Level = level
	}
	return zcfg.Build()
}
