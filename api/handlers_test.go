package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/angelluvianoolivares/SmartTaskManager/domain"
	"github.com/angelluvianoolivares/SmartTaskManager/engine"
	"github.com/angelluvianoolivares/SmartTaskManager/storage"
)

type nopTimers struct{}

func (nopTimers) Arm(string, time.Time) {}
func (nopTimers) Cancel(string)         {}

type nopNotifier struct{}

func (nopNotifier) Notify(string, string) {}

type stubExtractor struct {
	text string
}

func (s stubExtractor) ExtractTask(ctx context.Context, image []byte, hint, folder string) domain.TaskDraft {
	return domain.ExtractDraft(s.text, folder)
}

func newTestServer(t *testing.T, auth Authenticator, deduper Deduper) *echo.Echo {
	t.Helper()
	sched := engine.NewReminderScheduler(nopTimers{}, nopNotifier{}, nil)
	store := engine.NewTaskStore(storage.NewMemoryKV(), storage.DefaultKeys(), sched, nil)
	sched.Bind(store)

	e := echo.New()
	Register(e, store, stubExtractor{text: "Buy milk\n25/12/2024\n14:00\nblue\nMedium\nrecurring"}, auth, deduper, nil)
	return e
}

func doJSON(e *echo.Echo, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func taskBody(name string) string {
	due := time.Now().Add(time.Hour).Format(time.RFC3339)
	b, _ := json.Marshal(domain.TaskFields{
		Name: name, DueAt: due, Color: "blue", Folder: domain.DefaultFolder, Priority: "Medium",
	})
	return string(b)
}

func TestPostTaskThenList(t *testing.T) {
	e := newTestServer(t, AllowAll{}, nil)

	rec := doJSON(e, http.MethodPost, "/api/tasks", taskBody("Buy milk"), nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status %d: %s", rec.Code, rec.Body.String())
	}
	var created domain.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.ID == "" || created.Name != "Buy milk" {
		t.Fatalf("unexpected task %+v", created)
	}

	rec = doJSON(e, http.MethodGet, "/api/tasks?folder=Default", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status %d", rec.Code)
	}
	var listed tasksResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Tasks) != 1 || listed.Tasks[0].ID != created.ID {
		t.Fatalf("unexpected listing %+v", listed.Tasks)
	}
}

func TestPostTaskValidationIsBadRequest(t *testing.T) {
	e := newTestServer(t, AllowAll{}, nil)

	body := `{"name":"","dueAt":"nope","color":"","folder":"Default","priority":"High"}`
	rec := doJSON(e, http.MethodPost, "/api/tasks", body, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestPatchMissingTaskIsNotFound(t *testing.T) {
	e := newTestServer(t, AllowAll{}, nil)

	rec := doJSON(e, http.MethodPatch, "/api/tasks/no-such-id", `{"name":"X"}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestToggleAndDeleteLifecycle(t *testing.T) {
	e := newTestServer(t, AllowAll{}, nil)

	rec := doJSON(e, http.MethodPost, "/api/tasks", taskBody("Laundry"), nil)
	var created domain.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = doJSON(e, http.MethodPost, "/api/tasks/"+created.ID+"/toggle", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle status %d", rec.Code)
	}
	var toggled domain.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &toggled); err != nil {
		t.Fatalf("decode toggled: %v", err)
	}
	if !toggled.Completed {
		t.Fatal("expected completed after toggle")
	}

	rec = doJSON(e, http.MethodDelete, "/api/tasks/"+created.ID, "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status %d", rec.Code)
	}

	// Toggling a deleted task is an idempotent no-op.
	rec = doJSON(e, http.MethodPost, "/api/tasks/"+created.ID+"/toggle", "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("toggle after delete status %d", rec.Code)
	}
}

func TestFolderEndpoints(t *testing.T) {
	e := newTestServer(t, AllowAll{}, nil)

	rec := doJSON(e, http.MethodPost, "/api/folders", `{"name":"Home"}`, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create folder status %d", rec.Code)
	}

	rec = doJSON(e, http.MethodDelete, "/api/folders/Default", "", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("deleting Default must be 400, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodDelete, "/api/folders/Home", "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete folder status %d", rec.Code)
	}

	rec = doJSON(e, http.MethodGet, "/api/folders", "", nil)
	var folders foldersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &folders); err != nil {
		t.Fatalf("decode folders: %v", err)
	}
	if len(folders.Folders) != 1 || folders.Folders[0] != domain.DefaultFolder {
		t.Fatalf("unexpected folders %v", folders.Folders)
	}
}

func TestPostDraftReturnsProvisionalTask(t *testing.T) {
	e := newTestServer(t, AllowAll{}, nil)

	image := base64.StdEncoding.EncodeToString([]byte("fake-image"))
	body, _ := json.Marshal(draftRequest{Image: image, Language: "en", Folder: "Home"})
	rec := doJSON(e, http.MethodPost, "/api/drafts", string(body), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("draft status %d: %s", rec.Code, rec.Body.String())
	}
	var draft domain.TaskDraft
	if err := json.Unmarshal(rec.Body.Bytes(), &draft); err != nil {
		t.Fatalf("decode draft: %v", err)
	}
	if draft.Name != "Buy milk" || draft.Folder != "Home" || !draft.Recurring {
		t.Fatalf("unexpected draft %+v", draft)
	}

	// Drafts are never committed.
	rec = doJSON(e, http.MethodGet, "/api/tasks?folder=Home", "", nil)
	var listed tasksResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &listed)
	if len(listed.Tasks) != 0 {
		t.Fatal("draft was committed as a task")
	}
}

func TestBearerAuthGuardsRoutes(t *testing.T) {
	secret := []byte("test-secret")
	e := newTestServer(t, NewTestAuth(secret), nil)

	rec := doJSON(e, http.MethodGet, "/api/tasks", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	rec = doJSON(e, http.MethodGet, "/api/tasks", "", map[string]string{"Authorization": "Bearer " + signed})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateTaskIdempotencyKey(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	e := newTestServer(t, AllowAll{}, NewRedisDeduper(client, time.Minute))
	header := map[string]string{"Idempotency-Key": "req-1"}

	rec := doJSON(e, http.MethodPost, "/api/tasks", taskBody("Once"), header)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first create status %d", rec.Code)
	}
	rec = doJSON(e, http.MethodPost, "/api/tasks", taskBody("Once"), header)
	if rec.Code != http.StatusConflict {
		t.Fatalf("replay must be 409, got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodGet, "/api/tasks", "", nil)
	var listed tasksResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Tasks) != 1 {
		t.Fatalf("expected a single task, got %d", len(listed.Tasks))
	}
}
