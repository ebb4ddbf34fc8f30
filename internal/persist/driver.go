// Package persist debounces document changes and writes only the blocks
// that actually changed since the last committed save.
package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lessonforge/lessonforge/internal/blocks"
	"github.com/lessonforge/lessonforge/internal/document"
)

var (
	errMissingStore        = errors.New("block store is required")
	errMissingSynchronizer = errors.New("synchronizer is required")
	errDriverClosed        = errors.New("driver is closed")
	noOpLogger             = zap.NewNop()
)

// DefaultDebounce is the save delay applied when the configuration does
// not name one.
const DefaultDebounce = 500 * time.Millisecond

type DriverError struct {
	code string
	err  error
}

func (e *DriverError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *DriverError) Unwrap() error {
	return e.err
}

func (e *DriverError) Code() string {
	return e.code
}

const (
	opDriverNew = "persist.driver.new"
	opNotify    = "persist.notify_change"
	opFlush     = "persist.flush"

	reasonMissingStore        = "missing_store"
	reasonMissingSynchronizer = "missing_synchronizer"
	reasonDriverClosed        = "driver_closed"
	reasonSyncFailed          = "sync_failed"
	reasonBlockSaveFailed     = "block_save_failed"
	reasonStructureSaveFailed = "structure_save_failed"

	fieldScopeID  = "scope_id"
	fieldLessonID = "lesson_id"
	fieldBlockID  = "block_id"
)

func newDriverError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &DriverError{code: code, err: cause}
}

// BlockStore is the persistence surface the driver writes through.
type BlockStore interface {
	SaveBlock(ctx context.Context, scopeID, blockID string, content document.Node) error
	SaveLessonStructure(ctx context.Context, scopeID, lessonID, title string, blockIDs []string) error
}

type DriverConfig struct {
	Store        BlockStore
	Synchronizer *blocks.Synchronizer
	Logger       *zap.Logger
	Debounce     time.Duration

	// OnSave, when set, is invoked on its own goroutine after every
	// fully successful flush. It must not call back into the driver.
	OnSave func(scopeID, lessonID, title string, blockIDs []string)
}

// Driver coalesces rapid edits into one deferred save per lesson. Every
// change supersedes the previous pending one and restarts the debounce
// window; Flush commits immediately.
type Driver struct {
	store        BlockStore
	synchronizer *blocks.Synchronizer
	logger       *zap.Logger
	debounce     time.Duration
	onSave       func(scopeID, lessonID, title string, blockIDs []string)

	mutex   sync.Mutex
	lessons map[lessonKey]*lessonState
	closed  bool
}

type lessonKey struct {
	scopeID  string
	lessonID string
}

type lessonState struct {
	pending *pendingSave
	timer   *time.Timer

	committedTitle  string
	committedIDs    []string
	committedBlocks map[string]document.Node
}

type pendingSave struct {
	title string
	root  document.Node
}

func NewDriver(cfg DriverConfig) (*Driver, error) {
	if cfg.Store == nil {
		return nil, newDriverError(opDriverNew, reasonMissingStore, errMissingStore)
	}
	if cfg.Synchronizer == nil {
		return nil, newDriverError(opDriverNew, reasonMissingSynchronizer, errMissingSynchronizer)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Driver{
		store:        cfg.Store,
		synchronizer: cfg.Synchronizer,
		logger:       logger,
		debounce:     debounce,
		onSave:       cfg.OnSave,
		lessons:      make(map[lessonKey]*lessonState),
	}, nil
}

// Seed primes the committed snapshot for a lesson, typically from rows
// loaded at startup, so the first save after a restart does not rewrite
// every block.
func (d *Driver) Seed(scopeID, lessonID, title string, blockIDs []string, blockContent map[string]document.Node) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	state := d.lessonLocked(lessonKey{scopeID: scopeID, lessonID: lessonID})
	state.committedTitle = title
	state.committedIDs = append([]string(nil), blockIDs...)
	state.committedBlocks = make(map[string]document.Node, len(blockContent))
	for blockID, node := range blockContent {
		state.committedBlocks[blockID] = node
	}
}

// NotifyChange records the latest document for the lesson and restarts
// its debounce timer. The newest document always wins.
func (d *Driver) NotifyChange(scopeID, lessonID, title string, root document.Node) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.closed {
		return newDriverError(opNotify, reasonDriverClosed, errDriverClosed)
	}

	key := lessonKey{scopeID: scopeID, lessonID: lessonID}
	state := d.lessonLocked(key)
	state.pending = &pendingSave{title: title, root: root}

	if state.timer != nil {
		state.timer.Stop()
	}
	state.timer = time.AfterFunc(d.debounce, func() {
		// The flush path logs its own failures and keeps the snapshot
		// for retry, so the timer callback has nothing left to report.
		_ = d.FlushLesson(context.Background(), scopeID, lessonID)
	})
	return nil
}

// FlushLesson commits the pending document for one lesson immediately,
// cancelling its debounce timer. Lessons with nothing pending are a
// no-op.
func (d *Driver) FlushLesson(ctx context.Context, scopeID, lessonID string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.flushLessonLocked(ctx, lessonKey{scopeID: scopeID, lessonID: lessonID})
}

// Flush commits every pending document immediately. The first error is
// returned after all lessons have been attempted.
func (d *Driver) Flush(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	var firstErr error
	for key := range d.lessons {
		if err := d.flushLessonLocked(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close flushes everything still pending and stops accepting changes.
func (d *Driver) Close(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	var firstErr error
	for key, state := range d.lessons {
		if state.timer != nil {
			state.timer.Stop()
			state.timer = nil
		}
		if err := d.flushLessonLocked(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (d *Driver) lessonLocked(key lessonKey) *lessonState {
	state, exists := d.lessons[key]
	if !exists {
		state = &lessonState{committedBlocks: make(map[string]document.Node)}
		d.lessons[key] = state
	}
	return state
}

func (d *Driver) flushLessonLocked(ctx context.Context, key lessonKey) error {
	state, exists := d.lessons[key]
	if !exists || state.pending == nil {
		return nil
	}
	if state.timer != nil {
		state.timer.Stop()
		state.timer = nil
	}
	pending := state.pending

	result, err := d.synchronizer.Synchronize(pending.root, state.committedIDs, state.committedBlocks)
	if err != nil {
		d.logError(opFlush, reasonSyncFailed, err,
			zap.String(fieldScopeID, key.scopeID),
			zap.String(fieldLessonID, key.lessonID))
		return newDriverError(opFlush, reasonSyncFailed, err)
	}

	// A failed block write keeps its old committed snapshot so the next
	// flush retries it. Sibling blocks still save.
	var firstErr error
	for _, block := range result.Blocks {
		previous, committed := state.committedBlocks[block.ID]
		if committed && !blocks.BlocksDiffer(previous, block.Content) {
			continue
		}
		if saveErr := d.store.SaveBlock(ctx, key.scopeID, block.ID, block.Content); saveErr != nil {
			d.logError(opFlush, reasonBlockSaveFailed, saveErr,
				zap.String(fieldScopeID, key.scopeID),
				zap.String(fieldLessonID, key.lessonID),
				zap.String(fieldBlockID, block.ID))
			if firstErr == nil {
				firstErr = newDriverError(opFlush, reasonBlockSaveFailed, saveErr)
			}
			continue
		}
		state.committedBlocks[block.ID] = block.Content
	}

	if !sameIDSequence(state.committedIDs, result.BlockIDs) || state.committedTitle != pending.title {
		if saveErr := d.store.SaveLessonStructure(ctx, key.scopeID, key.lessonID, pending.title, result.BlockIDs); saveErr != nil {
			d.logError(opFlush, reasonStructureSaveFailed, saveErr,
				zap.String(fieldScopeID, key.scopeID),
				zap.String(fieldLessonID, key.lessonID))
			if firstErr == nil {
				firstErr = newDriverError(opFlush, reasonStructureSaveFailed, saveErr)
			}
		} else {
			state.committedIDs = append([]string(nil), result.BlockIDs...)
			state.committedTitle = pending.title
			d.dropOrphanedBlocksLocked(state)
		}
	}

	if firstErr != nil {
		return firstErr
	}
	state.pending = nil

	if d.onSave != nil {
		savedIDs := append([]string(nil), result.BlockIDs...)
		go d.onSave(key.scopeID, key.lessonID, pending.title, savedIDs)
	}
	return nil
}

func (d *Driver) dropOrphanedBlocksLocked(state *lessonState) {
	live := make(map[string]struct{}, len(state.committedIDs))
	for _, blockID := range state.committedIDs {
		live[blockID] = struct{}{}
	}
	for blockID := range state.committedBlocks {
		if _, ok := live[blockID]; !ok {
			delete(state.committedBlocks, blockID)
		}
	}
}

func sameIDSequence(previous, current []string) bool {
	if len(previous) != len(current) {
		return false
	}
	for index := range previous {
		if previous[index] != current[index] {
			return false
		}
	}
	return true
}

func (d *Driver) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	d.logger.Error("persist driver error", attrs...)
}
