package app

import (
	"log/slog"

	"betfair_go/internal/infra"
	"betfair_go/internal/infra/storage"
)

// Bootstrap orchestrates the application startup sequence.
type Bootstrap struct {
	Config  *infra.Config
	Storage *storage.Storage
	Logger  *slog.Logger
}

// NewBootstrap creates a new Bootstrap instance.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads config, wires logging and opens the database.
func (b *Bootstrap) Initialize(configPath string) error {
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	b.Logger = infra.NewLogger(cfg)
	slog.SetDefault(b.Logger)

	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	b.Logger.Info("database initialized", slog.String("path", cfg.Storage.Path))

	return nil
}
