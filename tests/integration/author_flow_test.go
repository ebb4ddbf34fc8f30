package integration_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lessonforge/lessonforge/internal/blocks"
	"github.com/lessonforge/lessonforge/internal/content"
	"github.com/lessonforge/lessonforge/internal/persist"
	"github.com/lessonforge/lessonforge/internal/render"
	"github.com/lessonforge/lessonforge/internal/server"
	"github.com/lessonforge/lessonforge/internal/storage"
)

const jsonContentType = "application/json"

func TestAuthorFlow(testContext *testing.T) {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:author_flow?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		testContext.Fatalf("failed to access database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&storage.BlockRecord{}, &storage.LessonStructureRecord{}); err != nil {
		testContext.Fatalf("failed to migrate: %v", err)
	}

	store, err := storage.NewSQLiteStore(storage.SQLiteStoreConfig{Database: db, Logger: zap.NewNop()})
	if err != nil {
		testContext.Fatalf("failed to build store: %v", err)
	}

	driver, err := persist.NewDriver(persist.DriverConfig{
		Store:        store,
		Synchronizer: blocks.NewSynchronizer(blocks.SynchronizerConfig{}),
		Logger:       zap.NewNop(),
		Debounce:     time.Hour,
	})
	if err != nil {
		testContext.Fatalf("failed to build driver: %v", err)
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Registry: content.NewRegistry(content.RegistryConfig{}),
		Driver:   driver,
		Loader:   store,
		Reader:   render.NewReader(render.ReaderConfig{}),
		Editor:   render.NewEditor(render.EditorConfig{}),
		Logger:   zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}

	testServer := httptest.NewServer(handler)
	defer testServer.Close()

	// First save: two paragraphs and a quiz.
	firstDocument := map[string]any{
		"type": "doc",
		"content": []any{
			map[string]any{"type": "paragraph", "content": []any{map[string]any{"type": "text", "text": "Welcome"}}},
			map[string]any{"type": "customQuiz", "attrs": map[string]any{"quizId": "quiz-1", "passingScore": 80}},
			map[string]any{"type": "paragraph", "content": []any{map[string]any{"type": "text", "text": "Goodbye"}}},
		},
	}
	firstIDs := saveLesson(testContext, testServer.URL, "lesson-1", "Basics", firstDocument)
	if len(firstIDs) != 3 {
		testContext.Fatalf("expected 3 block ids, got %v", firstIDs)
	}

	// Second save edits the last paragraph in place. Every block keeps
	// its identity.
	secondDocument := map[string]any{
		"type": "doc",
		"content": []any{
			map[string]any{"type": "paragraph", "content": []any{map[string]any{"type": "text", "text": "Welcome"}}},
			map[string]any{"type": "customQuiz", "attrs": map[string]any{"quizId": "quiz-1", "passingScore": 80}},
			map[string]any{"type": "paragraph", "content": []any{map[string]any{"type": "text", "text": "Farewell"}}},
		},
	}
	secondIDs := saveLesson(testContext, testServer.URL, "lesson-1", "Basics", secondDocument)
	if len(secondIDs) != 3 {
		testContext.Fatalf("expected 3 block ids, got %v", secondIDs)
	}
	for index := range firstIDs {
		if firstIDs[index] != secondIDs[index] {
			testContext.Fatalf("block ids must stay stable across edits: %v vs %v", firstIDs, secondIDs)
		}
	}

	// The reader rendition splits the lesson around the quiz.
	renderResp, err := http.Get(testServer.URL + "/lessons/lesson-1/render")
	if err != nil {
		testContext.Fatalf("render request failed: %v", err)
	}
	defer renderResp.Body.Close()
	if renderResp.StatusCode != http.StatusOK {
		testContext.Fatalf("unexpected render status: %d", renderResp.StatusCode)
	}

	var renderPayload struct {
		Title    string `json:"title"`
		Segments []struct {
			Kind string `json:"kind"`
			HTML string `json:"html"`
			Quiz *struct {
				QuizID       string `json:"quizId"`
				PassingScore *int   `json:"passingScore"`
			} `json:"quiz"`
		} `json:"segments"`
	}
	if err := json.NewDecoder(renderResp.Body).Decode(&renderPayload); err != nil {
		testContext.Fatalf("failed to decode render response: %v", err)
	}
	if renderPayload.Title != "Basics" {
		testContext.Fatalf("unexpected title %q", renderPayload.Title)
	}
	if len(renderPayload.Segments) != 3 {
		testContext.Fatalf("expected 3 segments, got %#v", renderPayload.Segments)
	}
	if renderPayload.Segments[0].Kind != "html" || !bytes.Contains([]byte(renderPayload.Segments[0].HTML), []byte("Welcome")) {
		testContext.Fatalf("unexpected first segment: %#v", renderPayload.Segments[0])
	}
	quiz := renderPayload.Segments[1]
	if quiz.Kind != "quiz" || quiz.Quiz == nil || quiz.Quiz.QuizID != "quiz-1" {
		testContext.Fatalf("unexpected quiz segment: %#v", quiz)
	}
	if quiz.Quiz.PassingScore == nil || *quiz.Quiz.PassingScore != 80 {
		testContext.Fatalf("quiz configuration lost: %#v", quiz.Quiz)
	}
	if renderPayload.Segments[2].Kind != "html" || !bytes.Contains([]byte(renderPayload.Segments[2].HTML), []byte("Farewell")) {
		testContext.Fatalf("unexpected last segment: %#v", renderPayload.Segments[2])
	}

	// A freshly minted unit can be edited and re-rendered for the
	// authoring surface.
	createBody, _ := json.Marshal(map[string]any{"type": "header"})
	createResp, err := http.Post(testServer.URL+"/units", jsonContentType, bytes.NewReader(createBody))
	if err != nil {
		testContext.Fatalf("unit create request failed: %v", err)
	}
	defer createResp.Body.Close()
	if createResp.StatusCode != http.StatusCreated {
		testContext.Fatalf("unexpected unit create status: %d", createResp.StatusCode)
	}
	var createPayload struct {
		Unit json.RawMessage `json:"unit"`
		HTML string          `json:"html"`
	}
	if err := json.NewDecoder(createResp.Body).Decode(&createPayload); err != nil {
		testContext.Fatalf("failed to decode unit create response: %v", err)
	}
	var createdUnit struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(createPayload.Unit, &createdUnit); err != nil {
		testContext.Fatalf("failed to decode created unit: %v", err)
	}
	if createdUnit.ID == "" {
		testContext.Fatalf("created unit missing id: %s", createPayload.Unit)
	}

	editBody, _ := json.Marshal(map[string]any{
		"unit":  json.RawMessage(createPayload.Unit),
		"patch": map[string]any{"text": "Course overview"},
	})
	editResp, err := http.Post(testServer.URL+"/units/"+createdUnit.ID+"/edit", jsonContentType, bytes.NewReader(editBody))
	if err != nil {
		testContext.Fatalf("unit edit request failed: %v", err)
	}
	defer editResp.Body.Close()
	if editResp.StatusCode != http.StatusOK {
		testContext.Fatalf("unexpected unit edit status: %d", editResp.StatusCode)
	}
	var editPayload struct {
		HTML string `json:"html"`
	}
	if err := json.NewDecoder(editResp.Body).Decode(&editPayload); err != nil {
		testContext.Fatalf("failed to decode unit edit response: %v", err)
	}
	if !bytes.Contains([]byte(editPayload.HTML), []byte("Course overview")) {
		testContext.Fatalf("edited markup missing new text: %s", editPayload.HTML)
	}
}

func saveLesson(testContext *testing.T, baseURL, lessonID, title string, documentPayload map[string]any) []string {
	testContext.Helper()

	body, _ := json.Marshal(map[string]any{"title": title, "document": documentPayload})
	request, _ := http.NewRequest(http.MethodPut, baseURL+"/lessons/"+lessonID+"/document?flush=1", bytes.NewReader(body))
	request.Header.Set("Content-Type", jsonContentType)

	response, err := http.DefaultClient.Do(request)
	if err != nil {
		testContext.Fatalf("save request failed: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		testContext.Fatalf("unexpected save status: %d", response.StatusCode)
	}

	var savePayload struct {
		Status   string   `json:"status"`
		BlockIDs []string `json:"block_ids"`
	}
	if err := json.NewDecoder(response.Body).Decode(&savePayload); err != nil {
		testContext.Fatalf("failed to decode save response: %v", err)
	}
	if savePayload.Status != "saved" {
		testContext.Fatalf("unexpected save status %q", savePayload.Status)
	}
	return savePayload.BlockIDs
}
