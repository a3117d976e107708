package app

import (
	"log/slog"

	"tradecore/internal/domain"
	"tradecore/internal/infra"
	"tradecore/internal/infra/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config   *infra.Config
	Journal  *storage.Journal
	Doctrine domain.Doctrine
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, journal).
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping tradecore...")

	// 1. Load Config
	cfg, err := infra.LoadConfig("configs/config.yaml")
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Lock the doctrine. Constants are fixed in code; this only verifies
	// the build carries a coherent set.
	b.Doctrine = domain.LockedDoctrine()
	slog.Info("✅ Doctrine locked", slog.String("version", b.Doctrine.Version))

	// 4. Open the decision journal (SQLite, append-only)
	journal, err := storage.NewJournal(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Journal = journal
	slog.Info("✅ Decision journal ready", slog.String("path", cfg.Storage.Path))

	return nil
}
