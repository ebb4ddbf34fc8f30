package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lessonforge/lessonforge/internal/content"
	"github.com/lessonforge/lessonforge/internal/document"
	"github.com/lessonforge/lessonforge/internal/persist"
	"github.com/lessonforge/lessonforge/internal/render"
	"github.com/lessonforge/lessonforge/internal/storage"
)

const defaultScopeID = "default"

var (
	errMissingRegistry = errors.New("unit registry dependency required")
	errMissingDriver   = errors.New("persistence driver dependency required")
	errMissingLoader   = errors.New("lesson loader dependency required")
	errMissingReader   = errors.New("reader renderer dependency required")
	errMissingEditor   = errors.New("editor renderer dependency required")
)

// LessonLoader reads persisted lessons back out of whichever storage
// backend is configured.
type LessonLoader interface {
	GetLessonStructure(ctx context.Context, scopeID, lessonID string) (storage.LessonStructure, error)
	GetBlocks(ctx context.Context, scopeID string, blockIDs []string) (map[string]document.Node, error)
}

type Dependencies struct {
	Registry *content.Registry
	Driver   *persist.Driver
	Loader   LessonLoader
	Reader   *render.Reader
	Editor   *render.Editor
	Realtime *RealtimeDispatcher
	Logger   *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Registry == nil {
		return nil, errMissingRegistry
	}
	if deps.Driver == nil {
		return nil, errMissingDriver
	}
	if deps.Loader == nil {
		return nil, errMissingLoader
	}
	if deps.Reader == nil {
		return nil, errMissingReader
	}
	if deps.Editor == nil {
		return nil, errMissingEditor
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		registry: deps.Registry,
		driver:   deps.Driver,
		loader:   deps.Loader,
		reader:   deps.Reader,
		editor:   deps.Editor,
		realtime: realtime,
		logger:   logger,
	}

	router.GET("/units/catalog", handler.handleUnitCatalog)
	router.POST("/units", handler.handleCreateUnit)
	router.POST("/units/:unitID/edit", handler.handleEditUnit)

	router.PUT("/lessons/:lessonID/document", handler.handleSaveDocument)
	router.GET("/lessons/:lessonID", handler.handleGetLesson)
	router.GET("/lessons/:lessonID/render", handler.handleRenderLesson)
	router.GET("/lessons/:lessonID/events", handler.handleLessonEvents)

	return router, nil
}

type httpHandler struct {
	registry *content.Registry
	driver   *persist.Driver
	loader   LessonLoader
	reader   *render.Reader
	editor   *render.Editor
	realtime *RealtimeDispatcher
	logger   *zap.Logger
}

func scopeFrom(c *gin.Context) string {
	scopeID := strings.TrimSpace(c.Query("scope_id"))
	if scopeID == "" {
		return defaultScopeID
	}
	return scopeID
}

type catalogEntryPayload struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IconKey     string `json:"icon_key"`
}

func (h *httpHandler) handleUnitCatalog(c *gin.Context) {
	entries := h.registry.Catalog()
	payload := make([]catalogEntryPayload, 0, len(entries))
	for _, entry := range entries {
		payload = append(payload, catalogEntryPayload{
			Type:        string(entry.Type),
			Name:        entry.Metadata.Name,
			Description: entry.Metadata.Description,
			IconKey:     entry.Metadata.IconKey,
		})
	}
	c.JSON(http.StatusOK, gin.H{"units": payload})
}

type createUnitPayload struct {
	Type string `json:"type"`
}

func (h *httpHandler) handleCreateUnit(c *gin.Context) {
	var request createUnitPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Type) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	unitType, err := content.ParseUnitType(request.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_unit_type"})
		return
	}

	unit, err := h.registry.NewUnit(unitType)
	if err != nil {
		h.logger.Error("failed to construct unit", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unit_create_failed"})
		return
	}

	h.respondWithUnit(c, http.StatusCreated, unit)
}

type editUnitPayload struct {
	Unit  json.RawMessage `json:"unit"`
	Patch map[string]any  `json:"patch"`
}

func (h *httpHandler) handleEditUnit(c *gin.Context) {
	unitID := c.Param("unitID")

	var request editUnitPayload
	if err := c.ShouldBindJSON(&request); err != nil || len(request.Unit) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	unit, err := content.DecodeUnit(request.Unit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_unit"})
		return
	}
	if unit.UnitID() != unitID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unit_id_mismatch"})
		return
	}

	updated, err := render.ApplyEdit(unit, request.Patch)
	if err != nil {
		if errors.Is(err, render.ErrImmutableField) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "immutable_field"})
			return
		}
		h.logger.Error("failed to apply unit edit", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "edit_failed"})
		return
	}

	h.respondWithUnit(c, http.StatusOK, updated)
}

func (h *httpHandler) respondWithUnit(c *gin.Context, status int, unit content.Unit) {
	encoded, err := content.EncodeUnit(unit)
	if err != nil {
		h.logger.Error("failed to encode unit", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unit_encode_failed"})
		return
	}
	markup, err := h.editor.RenderUnit(unit)
	if err != nil {
		h.logger.Error("failed to render unit", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unit_render_failed"})
		return
	}
	c.JSON(status, gin.H{"unit": json.RawMessage(encoded), "html": markup})
}

type saveDocumentPayload struct {
	Title    string          `json:"title"`
	Document json.RawMessage `json:"document"`
}

func (h *httpHandler) handleSaveDocument(c *gin.Context) {
	lessonID := c.Param("lessonID")
	scopeID := scopeFrom(c)

	var request saveDocumentPayload
	if err := c.ShouldBindJSON(&request); err != nil || len(request.Document) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	root, err := document.Parse(request.Document)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_document"})
		return
	}

	if err := h.driver.NotifyChange(scopeID, lessonID, request.Title, root); err != nil {
		h.logger.Error("failed to record document change", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "save_unavailable"})
		return
	}

	if c.Query("flush") != "1" {
		c.JSON(http.StatusAccepted, gin.H{"status": "scheduled"})
		return
	}

	if err := h.driver.FlushLesson(c.Request.Context(), scopeID, lessonID); err != nil {
		h.logger.Error("failed to flush lesson", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save_failed"})
		return
	}

	structure, err := h.loader.GetLessonStructure(c.Request.Context(), scopeID, lessonID)
	if err != nil {
		h.logger.Error("failed to reload lesson structure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved", "block_ids": structure.BlockIDs})
}

func (h *httpHandler) handleGetLesson(c *gin.Context) {
	lessonID := c.Param("lessonID")
	scopeID := scopeFrom(c)

	structure, err := h.loader.GetLessonStructure(c.Request.Context(), scopeID, lessonID)
	if errors.Is(err, storage.ErrLessonNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "lesson_not_found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load lesson structure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lesson_load_failed"})
		return
	}

	blocksByID, err := h.loader.GetBlocks(c.Request.Context(), scopeID, structure.BlockIDs)
	if err != nil {
		h.logger.Error("failed to load lesson blocks", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lesson_load_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"title":     structure.Title,
		"block_ids": structure.BlockIDs,
		"blocks":    blocksByID,
	})
}

type segmentPayload struct {
	Kind string          `json:"kind"`
	HTML string          `json:"html,omitempty"`
	Quiz *render.QuizRef `json:"quiz,omitempty"`
}

func (h *httpHandler) handleRenderLesson(c *gin.Context) {
	lessonID := c.Param("lessonID")
	scopeID := scopeFrom(c)

	structure, err := h.loader.GetLessonStructure(c.Request.Context(), scopeID, lessonID)
	if errors.Is(err, storage.ErrLessonNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "lesson_not_found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load lesson structure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lesson_render_failed"})
		return
	}

	blocksByID, err := h.loader.GetBlocks(c.Request.Context(), scopeID, structure.BlockIDs)
	if err != nil {
		h.logger.Error("failed to load lesson blocks", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lesson_render_failed"})
		return
	}

	// Blocks missing from storage are skipped so a partially saved
	// lesson still renders.
	nodes := make([]document.Node, 0, len(structure.BlockIDs))
	for _, blockID := range structure.BlockIDs {
		node, exists := blocksByID[blockID]
		if !exists {
			continue
		}
		nodes = append(nodes, node)
	}

	segments := h.reader.SegmentContent(nodes)
	payload := make([]segmentPayload, 0, len(segments))
	for _, segment := range segments {
		payload = append(payload, segmentPayload{
			Kind: string(segment.Kind),
			HTML: segment.HTML,
			Quiz: segment.Quiz,
		})
	}
	c.JSON(http.StatusOK, gin.H{"title": structure.Title, "segments": payload})
}

type realtimeEventPayload struct {
	Event     string   `json:"event"`
	Source    string   `json:"source"`
	ScopeID   string   `json:"scope_id"`
	LessonID  string   `json:"lesson_id"`
	BlockIDs  []string `json:"block_ids,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

func (h *httpHandler) handleLessonEvents(c *gin.Context) {
	lessonID := c.Param("lessonID")
	scopeID := scopeFrom(c)

	stream, cleanup := h.realtime.Subscribe(c.Request.Context(), scopeID, lessonID)
	defer cleanup()

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case message, open := <-stream:
			if !open {
				return false
			}
			c.SSEvent("message", realtimeEventPayload{
				Event:     message.EventType,
				Source:    realtimeSourceBackend,
				ScopeID:   message.ScopeID,
				LessonID:  message.LessonID,
				BlockIDs:  message.BlockIDs,
				Timestamp: message.Timestamp.UTC().Unix(),
			})
			return true
		case <-heartbeat.C:
			c.SSEvent("heartbeat", gin.H{"source": realtimeSourceBackend})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
