package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/lessonforge/lessonforge/internal/blocks"
	"github.com/lessonforge/lessonforge/internal/content"
	"github.com/lessonforge/lessonforge/internal/persist"
	"github.com/lessonforge/lessonforge/internal/render"
	"github.com/lessonforge/lessonforge/internal/storage"
)

type handlerFixture struct {
	handler  http.Handler
	realtime *RealtimeDispatcher
}

func newHandlerFixture(testContext *testing.T) handlerFixture {
	testContext.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", testContext.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		testContext.Fatalf("failed to access database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&storage.BlockRecord{}, &storage.LessonStructureRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	store, err := storage.NewSQLiteStore(storage.SQLiteStoreConfig{Database: db})
	if err != nil {
		testContext.Fatalf("failed to build store: %v", err)
	}

	synchronizer := blocks.NewSynchronizer(blocks.SynchronizerConfig{})
	driver, err := persist.NewDriver(persist.DriverConfig{
		Store:        store,
		Synchronizer: synchronizer,
		Debounce:     time.Hour,
	})
	if err != nil {
		testContext.Fatalf("failed to build driver: %v", err)
	}
	testContext.Cleanup(func() {
		_ = driver.Close(context.Background())
	})

	realtime := NewRealtimeDispatcher()
	handler, err := NewHTTPHandler(Dependencies{
		Registry: content.NewRegistry(content.RegistryConfig{}),
		Driver:   driver,
		Loader:   store,
		Reader:   render.NewReader(render.ReaderConfig{}),
		Editor:   render.NewEditor(render.EditorConfig{}),
		Realtime: realtime,
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}
	return handlerFixture{handler: handler, realtime: realtime}
}

func performJSON(handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var request *http.Request
	if body == "" {
		request = httptest.NewRequest(method, target, http.NoBody)
	} else {
		request = httptest.NewRequest(method, target, strings.NewReader(body))
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

const twoParagraphDocument = `{"type":"doc","content":[
	{"type":"paragraph","content":[{"type":"text","text":"first"}]},
	{"type":"paragraph","content":[{"type":"text","text":"second"}]}
]}`

func TestSaveDocumentWithFlushPersistsLesson(testContext *testing.T) {
	fixture := newHandlerFixture(testContext)

	body := `{"title":"Intro","document":` + twoParagraphDocument + `}`
	recorder := performJSON(fixture.handler, http.MethodPut, "/lessons/lesson-1/document?flush=1", body)
	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected status %d, got %d: %s", http.StatusOK, recorder.Code, recorder.Body.String())
	}

	var saveResponse struct {
		Status   string   `json:"status"`
		BlockIDs []string `json:"block_ids"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &saveResponse); err != nil {
		testContext.Fatalf("failed to decode response: %v", err)
	}
	if saveResponse.Status != "saved" || len(saveResponse.BlockIDs) != 2 {
		testContext.Fatalf("unexpected save response: %+v", saveResponse)
	}

	recorder = performJSON(fixture.handler, http.MethodGet, "/lessons/lesson-1", "")
	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}
	var lessonResponse struct {
		Title    string                     `json:"title"`
		BlockIDs []string                   `json:"block_ids"`
		Blocks   map[string]json.RawMessage `json:"blocks"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &lessonResponse); err != nil {
		testContext.Fatalf("failed to decode lesson: %v", err)
	}
	if lessonResponse.Title != "Intro" || len(lessonResponse.BlockIDs) != 2 || len(lessonResponse.Blocks) != 2 {
		testContext.Fatalf("unexpected lesson response: %+v", lessonResponse)
	}
}

func TestSaveDocumentWithoutFlushIsDeferred(testContext *testing.T) {
	fixture := newHandlerFixture(testContext)

	body := `{"title":"Draft","document":` + twoParagraphDocument + `}`
	recorder := performJSON(fixture.handler, http.MethodPut, "/lessons/lesson-1/document", body)
	if recorder.Code != http.StatusAccepted {
		testContext.Fatalf("expected status %d, got %d", http.StatusAccepted, recorder.Code)
	}

	recorder = performJSON(fixture.handler, http.MethodGet, "/lessons/lesson-1", "")
	if recorder.Code != http.StatusNotFound {
		testContext.Fatalf("deferred save must not be visible yet, got %d", recorder.Code)
	}
}

func TestSaveDocumentRejectsMalformedBody(testContext *testing.T) {
	fixture := newHandlerFixture(testContext)

	recorder := performJSON(fixture.handler, http.MethodPut, "/lessons/lesson-1/document", `{"title":"x"}`)
	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected status %d, got %d", http.StatusBadRequest, recorder.Code)
	}

	recorder = performJSON(fixture.handler, http.MethodPut, "/lessons/lesson-1/document", `{"title":"x","document":{"content":[]}}`)
	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("document without a type must be rejected, got %d", recorder.Code)
	}
}

func TestGetLessonNotFound(testContext *testing.T) {
	fixture := newHandlerFixture(testContext)

	recorder := performJSON(fixture.handler, http.MethodGet, "/lessons/missing", "")
	if recorder.Code != http.StatusNotFound {
		testContext.Fatalf("expected status %d, got %d", http.StatusNotFound, recorder.Code)
	}
	expected := `{"error":"lesson_not_found"}`
	if recorder.Body.String() != expected {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestRenderLessonSegmentsQuizzes(testContext *testing.T) {
	fixture := newHandlerFixture(testContext)

	documentJSON := `{"type":"doc","content":[
		{"type":"paragraph","content":[{"type":"text","text":"before"}]},
		{"type":"customQuiz","attrs":{"quizId":"q-1","passingScore":70}},
		{"type":"paragraph","content":[{"type":"text","text":"after"}]}
	]}`
	body := `{"title":"Quizzed","document":` + documentJSON + `}`
	recorder := performJSON(fixture.handler, http.MethodPut, "/lessons/lesson-1/document?flush=1", body)
	if recorder.Code != http.StatusOK {
		testContext.Fatalf("save failed with %d: %s", recorder.Code, recorder.Body.String())
	}

	recorder = performJSON(fixture.handler, http.MethodGet, "/lessons/lesson-1/render", "")
	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}
	var renderResponse struct {
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
	if err := json.Unmarshal(recorder.Body.Bytes(), &renderResponse); err != nil {
		testContext.Fatalf("failed to decode render response: %v", err)
	}
	if len(renderResponse.Segments) != 3 {
		testContext.Fatalf("expected 3 segments, got %+v", renderResponse.Segments)
	}
	if renderResponse.Segments[0].Kind != "html" || !strings.Contains(renderResponse.Segments[0].HTML, "before") {
		testContext.Fatalf("unexpected first segment: %+v", renderResponse.Segments[0])
	}
	middle := renderResponse.Segments[1]
	if middle.Kind != "quiz" || middle.Quiz == nil || middle.Quiz.QuizID != "q-1" {
		testContext.Fatalf("unexpected quiz segment: %+v", middle)
	}
	if middle.Quiz.PassingScore == nil || *middle.Quiz.PassingScore != 70 {
		testContext.Fatalf("quiz configuration lost: %+v", middle.Quiz)
	}
}

func TestUnitCatalogListsAllVariants(testContext *testing.T) {
	fixture := newHandlerFixture(testContext)

	recorder := performJSON(fixture.handler, http.MethodGet, "/units/catalog", "")
	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}
	var catalogResponse struct {
		Units []catalogEntryPayload `json:"units"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &catalogResponse); err != nil {
		testContext.Fatalf("failed to decode catalog: %v", err)
	}
	if len(catalogResponse.Units) != 10 {
		testContext.Fatalf("expected 10 catalog entries, got %d", len(catalogResponse.Units))
	}
	for _, entry := range catalogResponse.Units {
		if entry.Type == "" || entry.Name == "" {
			testContext.Fatalf("incomplete catalog entry: %+v", entry)
		}
	}
}

func TestCreateUnitReturnsUnitAndMarkup(testContext *testing.T) {
	fixture := newHandlerFixture(testContext)

	recorder := performJSON(fixture.handler, http.MethodPost, "/units", `{"type":"header"}`)
	if recorder.Code != http.StatusCreated {
		testContext.Fatalf("expected status %d, got %d: %s", http.StatusCreated, recorder.Code, recorder.Body.String())
	}
	var createResponse struct {
		Unit struct {
			ID    string `json:"id"`
			Type  string `json:"type"`
			Level int    `json:"level"`
		} `json:"unit"`
		HTML string `json:"html"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &createResponse); err != nil {
		testContext.Fatalf("failed to decode response: %v", err)
	}
	if createResponse.Unit.ID == "" || createResponse.Unit.Type != "header" || createResponse.Unit.Level != content.DefaultHeaderLevel {
		testContext.Fatalf("unexpected unit: %+v", createResponse.Unit)
	}
	if !strings.Contains(createResponse.HTML, `data-unit-type="header"`) {
		testContext.Fatalf("markup missing unit type: %s", createResponse.HTML)
	}
}

func TestCreateUnitRejectsUnknownType(testContext *testing.T) {
	fixture := newHandlerFixture(testContext)

	recorder := performJSON(fixture.handler, http.MethodPost, "/units", `{"type":"carousel"}`)
	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected status %d, got %d", http.StatusBadRequest, recorder.Code)
	}
	expected := `{"error":"unknown_unit_type"}`
	if recorder.Body.String() != expected {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestEditUnitAppliesPatch(testContext *testing.T) {
	fixture := newHandlerFixture(testContext)

	body := `{"unit":{"id":"u-1","type":"header","text":"Old","level":2},"patch":{"text":"New"}}`
	recorder := performJSON(fixture.handler, http.MethodPost, "/units/u-1/edit", body)
	if recorder.Code != http.StatusOK {
		testContext.Fatalf("expected status %d, got %d: %s", http.StatusOK, recorder.Code, recorder.Body.String())
	}
	var editResponse struct {
		Unit struct {
			ID   string `json:"id"`
			Text string `json:"text"`
		} `json:"unit"`
		HTML string `json:"html"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &editResponse); err != nil {
		testContext.Fatalf("failed to decode response: %v", err)
	}
	if editResponse.Unit.ID != "u-1" || editResponse.Unit.Text != "New" {
		testContext.Fatalf("unexpected edited unit: %+v", editResponse.Unit)
	}
	if !strings.Contains(editResponse.HTML, "New") {
		testContext.Fatalf("markup missing edited text: %s", editResponse.HTML)
	}
}

func TestEditUnitRejectsIdentityMutation(testContext *testing.T) {
	fixture := newHandlerFixture(testContext)

	body := `{"unit":{"id":"u-1","type":"header","text":"Old","level":2},"patch":{"id":"u-2"}}`
	recorder := performJSON(fixture.handler, http.MethodPost, "/units/u-1/edit", body)
	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected status %d, got %d", http.StatusBadRequest, recorder.Code)
	}
	expected := `{"error":"immutable_field"}`
	if recorder.Body.String() != expected {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestEditUnitRejectsMismatchedPath(testContext *testing.T) {
	fixture := newHandlerFixture(testContext)

	body := `{"unit":{"id":"u-1","type":"header","text":"Old","level":2},"patch":{"text":"New"}}`
	recorder := performJSON(fixture.handler, http.MethodPost, "/units/u-other/edit", body)
	if recorder.Code != http.StatusBadRequest {
		testContext.Fatalf("expected status %d, got %d", http.StatusBadRequest, recorder.Code)
	}
	expected := `{"error":"unit_id_mismatch"}`
	if recorder.Body.String() != expected {
		testContext.Fatalf("unexpected response body: %s", recorder.Body.String())
	}
}

func TestCORSPreflightAllowsPut(testContext *testing.T) {
	fixture := newHandlerFixture(testContext)

	request := httptest.NewRequest(http.MethodOptions, "/lessons/lesson-1/document", http.NoBody)
	request.Header.Set("Origin", "https://studio.example.com")
	request.Header.Set("Access-Control-Request-Method", http.MethodPut)

	recorder := httptest.NewRecorder()
	fixture.handler.ServeHTTP(recorder, request)

	allowMethods := recorder.Header().Get("Access-Control-Allow-Methods")
	if !strings.Contains(allowMethods, http.MethodPut) {
		testContext.Fatalf("expected Access-Control-Allow-Methods to include PUT, got %q", allowMethods)
	}
}

func TestLessonEventsStreamDeliversSaveNotifications(testContext *testing.T) {
	fixture := newHandlerFixture(testContext)

	testServer := httptest.NewServer(fixture.handler)
	defer testServer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, testServer.URL+"/lessons/lesson-1/events?scope_id=scope-1", http.NoBody)
	if err != nil {
		testContext.Fatalf("failed to build request: %v", err)
	}
	response, err := testServer.Client().Do(request)
	if err != nil {
		testContext.Fatalf("failed to open event stream: %v", err)
	}
	defer response.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		fixture.realtime.mu.RLock()
		subscribed := len(fixture.realtime.subscribers) > 0
		fixture.realtime.mu.RUnlock()
		if subscribed {
			break
		}
		if time.Now().After(deadline) {
			testContext.Fatalf("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	fixture.realtime.Publish(RealtimeMessage{
		ScopeID:   "scope-1",
		LessonID:  "lesson-1",
		EventType: RealtimeEventLessonSaved,
		BlockIDs:  []string{"blk-1"},
		Timestamp: time.Now().UTC(),
	})

	scanner := bufio.NewScanner(response.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		var event realtimeEventPayload
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			testContext.Fatalf("failed to decode event %q: %v", payload, err)
		}
		if event.Event != RealtimeEventLessonSaved || event.LessonID != "lesson-1" {
			testContext.Fatalf("unexpected event: %+v", event)
		}
		return
	}
	testContext.Fatalf("event stream closed without a message: %v", scanner.Err())
}
