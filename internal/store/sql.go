package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"doccollab/internal/models"
)

type DocumentRecord struct {
	ID        string `gorm:"primaryKey"`
	Content   string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (DocumentRecord) TableName() string { return "documents" }

type CommentRecord struct {
	ID             string `gorm:"primaryKey"`
	DocumentID     string `gorm:"index;not null"`
	Text           string `gorm:"type:text"`
	SelectionStart int
	SelectionEnd   int
	UserID         string
	Username       string
	CreatedAt      time.Time `gorm:"index"`
}

func (CommentRecord) TableName() string { return "document_comments" }

// SQLStore persists documents through gorm (Postgres in production,
// SQLite for local runs and tests).
type SQLStore struct {
	DB *gorm.DB
}

var gormConfig = &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(20)
	return db, nil
}

func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return db, nil
}

// NewSQLStore migrates the schema and returns a ready store.
func NewSQLStore(ctx context.Context, db *gorm.DB) (*SQLStore, error) {
	if err := db.WithContext(ctx).AutoMigrate(&DocumentRecord{}, &CommentRecord{}); err != nil {
		return nil, fmt.Errorf("migrate document tables: %w", err)
	}
	return &SQLStore{DB: db}, nil
}

func (s *SQLStore) Load(ctx context.Context, documentID string) (string, error) {
	var rec DocumentRecord
	err := s.DB.WithContext(ctx).Where("id = ?", documentID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", models.ErrDocumentNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load document %s: %w", documentID, err)
	}
	return rec.Content, nil
}

func (s *SQLStore) SaveContent(ctx context.Context, documentID, content string) error {
	rec := DocumentRecord{ID: documentID, Content: content, UpdatedAt: time.Now().UTC()}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save document %s: %w", documentID, err)
	}
	return nil
}

func (s *SQLStore) AppendComment(ctx context.Context, c models.Comment) error {
	rec := CommentRecord{
		ID:             c.ID,
		DocumentID:     c.DocumentID,
		Text:           c.Text,
		SelectionStart: c.SelectionStart,
		SelectionEnd:   c.SelectionEnd,
		UserID:         c.UserID,
		Username:       c.Username,
		CreatedAt:      c.CreatedAt,
	}
	if err := s.DB.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("append comment %s: %w", c.ID, err)
	}
	return nil
}

func (s *SQLStore) ListComments(ctx context.Context, documentID string) ([]models.Comment, error) {
	var recs []CommentRecord
	err := s.DB.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list comments %s: %w", documentID, err)
	}
	out := make([]models.Comment, 0, len(recs))
	for _, r := range recs {
		out = append(out, models.Comment{
			ID:             r.ID,
			DocumentID:     r.DocumentID,
			Text:           r.Text,
			SelectionStart: r.SelectionStart,
			SelectionEnd:   r.SelectionEnd,
			UserID:         r.UserID,
			Username:       r.Username,
			CreatedAt:      r.CreatedAt,
		})
	}
	return out, nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
