// Package storage persists lesson blocks and lesson structure rows
// behind the driver's store interface, with interchangeable SQLite and
// Redis backends.
package storage

import (
	"errors"
	"strings"
)

const maxIdentifierLength = 190

var (
	// ErrInvalidScopeID indicates that a scope identifier is empty or exceeds storage bounds.
	ErrInvalidScopeID = errors.New("storage: invalid scope id")
	// ErrInvalidLessonID indicates that a lesson identifier is empty or exceeds storage bounds.
	ErrInvalidLessonID = errors.New("storage: invalid lesson id")
	// ErrInvalidBlockID indicates that a block identifier is empty or exceeds storage bounds.
	ErrInvalidBlockID = errors.New("storage: invalid block id")
	// ErrLessonNotFound indicates that no structure row exists for the lesson.
	ErrLessonNotFound = errors.New("storage: lesson not found")
)

func validIdentifier(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	return trimmed != "" && len(trimmed) <= maxIdentifierLength && trimmed == raw
}

// BlockRecord models one persisted content block, keyed by scope and
// block identity so blocks from different courses never collide.
type BlockRecord struct {
	ScopeID          string `gorm:"column:scope_id;primaryKey;size:190;not null"`
	BlockID          string `gorm:"column:block_id;primaryKey;size:190;not null"`
	ContentJSON      string `gorm:"column:content_json;type:text;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (BlockRecord) TableName() string {
	return "lesson_blocks"
}

// LessonStructureRecord models the ordered block identifier list and
// title for one lesson.
type LessonStructureRecord struct {
	ScopeID          string `gorm:"column:scope_id;primaryKey;size:190;not null"`
	LessonID         string `gorm:"column:lesson_id;primaryKey;size:190;not null"`
	Title            string `gorm:"column:title;size:500;not null;default:''"`
	BlockIDsJSON     string `gorm:"column:block_ids_json;type:text;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (LessonStructureRecord) TableName() string {
	return "lesson_structures"
}

// LessonStructure is the loaded form of a structure row.
type LessonStructure struct {
	Title    string
	BlockIDs []string
}
