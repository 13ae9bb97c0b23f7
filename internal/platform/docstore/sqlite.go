package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type documentRow struct {
	Collection string `gorm:"primaryKey;size:64"`
	ID         string `gorm:"primaryKey;size:128"`
	Body       string `gorm:"type:text;not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (documentRow) TableName() string { return "documents" }

func (r documentRow) document() Document {
	return Document{ID: r.ID, Body: json.RawMessage(r.Body), CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

// SQLite is a single-file Store for one-user installations.
type SQLite struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) the database file at path and migrates it.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("docstore: open sqlite: %w", err)
	}
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return nil, fmt.Errorf("docstore: automigrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the underlying connection.
func (s *SQLite) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLite) Create(ctx context.Context, collection string, doc Document) (string, error) {
	if err := validBody(doc.Body); err != nil {
		return "", err
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&documentRow{}).Where("collection = ? AND id = ?", collection, doc.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrConflict
		}
		return tx.Create(&documentRow{Collection: collection, ID: doc.ID, Body: string(doc.Body)}).Error
	})
	switch {
	case errors.Is(err, ErrConflict), errors.Is(err, gorm.ErrDuplicatedKey):
		return "", ErrConflict
	case err != nil:
		return "", fmt.Errorf("docstore: insert %s/%s: %w", collection, doc.ID, err)
	}
	return doc.ID, nil
}

func (s *SQLite) Update(ctx context.Context, collection, id string, patch json.RawMessage) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row documentRow
		err := tx.Where("collection = ? AND id = ?", collection, id).First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("docstore: load %s/%s: %w", collection, id, err)
		}
		merged, err := mergeJSON([]byte(row.Body), patch)
		if err != nil {
			return err
		}
		row.Body = string(merged)
		if err := tx.Save(&row).Error; err != nil {
			return fmt.Errorf("docstore: update %s/%s: %w", collection, id, err)
		}
		return nil
	})
}

func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	res := s.db.WithContext(ctx).Where("collection = ? AND id = ?", collection, id).Delete(&documentRow{})
	if res.Error != nil {
		return fmt.Errorf("docstore: delete %s/%s: %w", collection, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, collection, id string) (Document, error) {
	var row documentRow
	err := s.db.WithContext(ctx).Where("collection = ? AND id = ?", collection, id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("docstore: get %s/%s: %w", collection, id, err)
	}
	return row.document(), nil
}

func (s *SQLite) List(ctx context.Context, collection string, opts ListOptions) ([]Document, error) {
	var rows []documentRow
	err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("docstore: list %s: %w", collection, err)
	}
	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, row.document())
	}
	return sortDocuments(docs, opts), nil
}
