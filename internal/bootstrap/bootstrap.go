// Package bootstrap assembles the database, attachment store and reconciler
// from a Config. The server and the uploadsctl CLI share it.
package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/tbourn/go-recruit-uploads/internal/config"
	"github.com/tbourn/go-recruit-uploads/internal/repo"
	"github.com/tbourn/go-recruit-uploads/internal/services"
	"github.com/tbourn/go-recruit-uploads/internal/store"
)

// App is the wired application core.
type App struct {
	// DB always exists: it holds the idempotency ledger, and the
	// attachments table when the sql backend is selected.
	DB      *gorm.DB
	Store   services.AttachmentStore
	Uploads *services.UploadService
}

// Build opens and migrates the database, selects the store and constructs
// the reconciler.
func Build(cfg config.Config) (*App, error) {
	db, err := repo.Open(repo.Options{
		Driver:  cfg.Store.DB.Driver,
		Path:    cfg.Store.DB.Path,
		DSN:     cfg.Store.DB.DSN,
		Tracing: cfg.OTEL.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("migrate: %w", err)
	}

	st, err := store.New(cfg.Store, db)
	if err != nil {
		closeDB(db)
		return nil, err
	}

	return &App{
		DB:      db,
		Store:   st,
		Uploads: services.NewUploadService(st, cfg.MaxUploads),
	}, nil
}

// Close releases the database pool.
func (a *App) Close() error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
