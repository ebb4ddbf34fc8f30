package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lessonforge/lessonforge/internal/document"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// SQLiteStoreConfig describes the dependencies of a SQLiteStore.
type SQLiteStoreConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// SQLiteStore persists blocks and lesson structures through GORM.
type SQLiteStore struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewSQLiteStore builds a SQLiteStore.
func NewSQLiteStore(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &SQLiteStore{db: cfg.Database, clock: clock, logger: logger}, nil
}

// SaveBlock upserts one block row.
func (s *SQLiteStore) SaveBlock(ctx context.Context, scopeID, blockID string, content document.Node) error {
	if !validIdentifier(scopeID) {
		return fmt.Errorf("%w: %q", ErrInvalidScopeID, scopeID)
	}
	if !validIdentifier(blockID) {
		return fmt.Errorf("%w: %q", ErrInvalidBlockID, blockID)
	}

	payload, err := document.Encode(content)
	if err != nil {
		return fmt.Errorf("storage: encode block %s: %w", blockID, err)
	}

	record := BlockRecord{
		ScopeID:          scopeID,
		BlockID:          blockID,
		ContentJSON:      string(payload),
		UpdatedAtSeconds: s.clock().UTC().Unix(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope_id"}, {Name: "block_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"content_json", "updated_at_s"}),
	}).Create(&record).Error
}

// SaveLessonStructure upserts the ordered block identifier list for a
// lesson.
func (s *SQLiteStore) SaveLessonStructure(ctx context.Context, scopeID, lessonID, title string, blockIDs []string) error {
	if !validIdentifier(scopeID) {
		return fmt.Errorf("%w: %q", ErrInvalidScopeID, scopeID)
	}
	if !validIdentifier(lessonID) {
		return fmt.Errorf("%w: %q", ErrInvalidLessonID, lessonID)
	}

	if blockIDs == nil {
		blockIDs = []string{}
	}
	payload, err := json.Marshal(blockIDs)
	if err != nil {
		return fmt.Errorf("storage: encode structure %s: %w", lessonID, err)
	}

	record := LessonStructureRecord{
		ScopeID:          scopeID,
		LessonID:         lessonID,
		Title:            title,
		BlockIDsJSON:     string(payload),
		UpdatedAtSeconds: s.clock().UTC().Unix(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scope_id"}, {Name: "lesson_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "block_ids_json", "updated_at_s"}),
	}).Create(&record).Error
}

// GetLessonStructure loads the structure row for a lesson.
func (s *SQLiteStore) GetLessonStructure(ctx context.Context, scopeID, lessonID string) (LessonStructure, error) {
	var record LessonStructureRecord
	err := s.db.WithContext(ctx).
		Where("scope_id = ? AND lesson_id = ?", scopeID, lessonID).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return LessonStructure{}, fmt.Errorf("%w: %s/%s", ErrLessonNotFound, scopeID, lessonID)
	}
	if err != nil {
		return LessonStructure{}, err
	}

	var blockIDs []string
	if err := json.Unmarshal([]byte(record.BlockIDsJSON), &blockIDs); err != nil {
		return LessonStructure{}, fmt.Errorf("storage: decode structure %s: %w", lessonID, err)
	}
	return LessonStructure{Title: record.Title, BlockIDs: blockIDs}, nil
}

// GetBlocks loads the requested blocks for a scope. Rows that are
// missing or undecodable are skipped rather than failing the load, so a
// partially corrupted lesson still renders what it can.
func (s *SQLiteStore) GetBlocks(ctx context.Context, scopeID string, blockIDs []string) (map[string]document.Node, error) {
	blocksByID := make(map[string]document.Node, len(blockIDs))
	if len(blockIDs) == 0 {
		return blocksByID, nil
	}

	var records []BlockRecord
	err := s.db.WithContext(ctx).
		Where("scope_id = ? AND block_id IN ?", scopeID, blockIDs).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	for _, record := range records {
		node, parseErr := document.Parse([]byte(record.ContentJSON))
		if parseErr != nil {
			s.logger.Warn("skipping undecodable block",
				zap.String("scope_id", scopeID),
				zap.String("block_id", record.BlockID),
				zap.Error(parseErr))
			continue
		}
		blocksByID[record.BlockID] = node
	}
	return blocksByID, nil
}
