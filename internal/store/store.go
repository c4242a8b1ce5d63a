// Package store holds the document persistence backends the collaboration
// core loads from and writes back to.
package store

import (
	"context"
	"fmt"

	"doccollab/internal/config"
	"doccollab/internal/models"
)

// DocumentStore persists document content and the comment stream.
// Load returns models.ErrDocumentNotFound for unknown documents.
type DocumentStore interface {
	Load(ctx context.Context, documentID string) (string, error)
	SaveContent(ctx context.Context, documentID, content string) error
	AppendComment(ctx context.Context, c models.Comment) error
	ListComments(ctx context.Context, documentID string) ([]models.Comment, error)
	Close() error
}

// New opens the backend selected by cfg.StoreBackend.
func New(ctx context.Context, cfg *config.Config) (DocumentStore, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendPostgres:
		db, err := OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(ctx, db)
	case config.BackendSQLite:
		db, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return NewSQLStore(ctx, db)
	case config.BackendRedis:
		return NewRedisStore(ctx, cfg.RedisAddr)
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}
