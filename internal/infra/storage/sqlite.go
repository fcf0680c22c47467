package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"betfair_go/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage persists parsed capture files in SQLite.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the database at path and migrates the
// schema.
func NewStorage(path string) (*Storage, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Pure Go SQLite driver
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&domain.ParsedFile{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// SaveFile creates or updates one parsed file record.
func (s *Storage) SaveFile(f *domain.ParsedFile) error {
	return s.db.Save(f).Error
}

// GetFile retrieves a parsed file by id, payload included. Not found is
// not an error; it returns nil.
func (s *Storage) GetFile(fileID string) (*domain.ParsedFile, error) {
	var f domain.ParsedFile
	err := s.db.First(&f, "file_id = ?", fileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFiles returns metadata for every stored file, newest first. The
// payload column is deliberately left unloaded.
func (s *Storage) ListFiles() ([]domain.ParsedFile, error) {
	var files []domain.ParsedFile
	err := s.db.
		Omit("payload").
		Order("upload_time DESC").
		Find(&files).Error
	return files, err
}

// DeleteFile removes a parsed file. Deleting an unknown id is a no-op.
func (s *Storage) DeleteFile(fileID string) error {
	return s.db.Where("file_id = ?", fileID).Delete(&domain.ParsedFile{}).Error
}

// CountFiles returns the number of stored files.
func (s *Storage) CountFiles() (int64, error) {
	var n int64
	err := s.db.Model(&domain.ParsedFile{}).Count(&n).Error
	return n, err
}

// Ping verifies the underlying connection, for health checks.
func (s *Storage) Ping() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Ping()
}
