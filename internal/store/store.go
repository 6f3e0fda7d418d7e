// Package store selects the AttachmentStore implementation named by the
// configuration.
package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tbourn/go-recruit-uploads/internal/config"
	"github.com/tbourn/go-recruit-uploads/internal/services"
	"github.com/tbourn/go-recruit-uploads/internal/store/reststore"
	"github.com/tbourn/go-recruit-uploads/internal/store/sqlstore"
)

// ErrNoDB is returned when the sql backend is selected without a database.
var ErrNoDB = errors.New("store: sql backend requires a database handle")

// New returns the backend for cfg.Backend. db is only used by the sql
// backend and may be nil otherwise.
func New(cfg config.StoreConfig, db *gorm.DB) (services.AttachmentStore, error) {
	switch cfg.Backend {
	case config.BackendSQL, "":
		if db == nil {
			return nil, ErrNoDB
		}
		return sqlstore.New(db, cfg.TxTimeout), nil
	case config.BackendREST:
		if cfg.REST.URL == "" {
			return nil, errors.New("store: rest backend requires a URL")
		}
		return reststore.New(cfg.REST.URL, cfg.REST.APIKey, cfg.REST.Table, cfg.REST.Timeout), nil
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
}

// Transactional reports whether the configured backend applies a reconcile
// atomically.
func Transactional(cfg config.StoreConfig) bool {
	return cfg.Backend != config.BackendREST
}
