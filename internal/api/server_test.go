package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/brokerchat/internal/chat"
	"github.com/MikeSquared-Agency/brokerchat/internal/profile"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixedResponder struct {
	reply string
	gate  chan struct{}

	once    sync.Once
	started chan struct{}
}

func (f *fixedResponder) Kind() string { return "fixed" }

func (f *fixedResponder) Respond(ctx context.Context, _ chat.Prompt) (string, error) {
	if f.gate != nil {
		f.once.Do(func() { close(f.started) })
		<-f.gate
	}
	return f.reply, nil
}

func newTestServer(t *testing.T, r chat.Responder, rateLimit string) *Server {
	t.Helper()
	reg := chat.NewRegistry(chat.SessionConfig{
		Profile:        profile.Default(),
		Responder:      r,
		Policy:         chat.DefaultFormPolicy(),
		Logger:         discardLogger(),
		MaxUploadBytes: 1 << 20,
		Now:            func() time.Time { return time.Date(2024, 1, 1, 9, 15, 0, 0, time.UTC) },
	}, time.Hour)

	srv, err := NewServer(Options{
		Port:           8760,
		AllowedOrigins: []string{"https://www.aipbestrate.com"},
		RateLimit:      rateLimit,
		MaxUploadBytes: 1 << 20,
		Logger:         discardLogger(),
	}, reg, profile.Default())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, srv *Server, mode string) chat.View {
	t.Helper()
	var body any
	if mode != "" {
		body = map[string]string{"mode": mode}
	}
	w := do(t, srv, "POST", "/api/v1/sessions", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var v chat.View
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return v
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &fixedResponder{reply: "ok"}, "")

	w := do(t, srv, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t, &fixedResponder{reply: "ok"}, "")
	createSession(t, srv, "")

	w := do(t, srv, "GET", "/api/v1/brokerchat/status", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["agent"] != "brokerchat" {
		t.Errorf("expected agent brokerchat, got %v", body["agent"])
	}
	if body["responder"] != "fixed" {
		t.Errorf("expected responder fixed, got %v", body["responder"])
	}
	if body["sessions"] != float64(1) {
		t.Errorf("expected 1 session, got %v", body["sessions"])
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv := newTestServer(t, &fixedResponder{reply: "ok"}, "")

	w := do(t, srv, "GET", "/nonexistent", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &fixedResponder{reply: "ok"}, "")

	w := do(t, srv, "GET", "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "brokerchat_active_sessions") {
		t.Error("expected brokerchat metrics in exposition")
	}
}

func TestProfileEndpoint(t *testing.T) {
	srv := newTestServer(t, &fixedResponder{reply: "ok"}, "")

	w := do(t, srv, "GET", "/api/v1/profile", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var p profile.Profile
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.CompanyName != "AIP Best Rate" || len(p.QuickActions) != 6 {
		t.Errorf("unexpected profile: %+v", p)
	}
}

func TestCreateSession(t *testing.T) {
	srv := newTestServer(t, &fixedResponder{reply: "ok"}, "")

	v := createSession(t, srv, "")
	if v.Mode != chat.ModeCustomer || len(v.Messages) != 1 || v.Pending {
		t.Errorf("unexpected default session: %+v", v)
	}

	v = createSession(t, srv, "internal")
	if v.Mode != chat.ModeInternal {
		t.Errorf("expected internal session, got %s", v.Mode)
	}

	w := do(t, srv, "POST", "/api/v1/sessions", map[string]string{"mode": "admin"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown mode, got %d", w.Code)
	}
}

func TestSubmitMessage(t *testing.T) {
	srv := newTestServer(t, &fixedResponder{reply: "Happy to help with your quote."}, "")
	v := createSession(t, srv, "customer")

	w := do(t, srv, "POST", "/api/v1/sessions/"+v.ID.String()+"/messages", map[string]string{"text": "Get an auto insurance quote"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var reply chat.Reply
	if err := json.NewDecoder(w.Body).Decode(&reply); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reply.Message.Role != chat.RoleAssistant || reply.Message.Content != "Happy to help with your quote." {
		t.Errorf("unexpected reply: %+v", reply)
	}
	if reply.Form != nil {
		t.Error("customer session must not generate forms")
	}

	w = do(t, srv, "GET", "/api/v1/sessions/"+v.ID.String(), nil)
	var got chat.View
	json.NewDecoder(w.Body).Decode(&got)
	if len(got.Messages) != 3 {
		t.Errorf("expected 3 messages, got %d", len(got.Messages))
	}
}

func TestSubmitMessage_Rejections(t *testing.T) {
	srv := newTestServer(t, &fixedResponder{reply: "ok"}, "")
	v := createSession(t, srv, "")
	path := "/api/v1/sessions/" + v.ID.String() + "/messages"

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"blank text", path, map[string]string{"text": "   "}, http.StatusUnprocessableEntity},
		{"missing text", path, map[string]string{}, http.StatusUnprocessableEntity},
		{"unknown session", "/api/v1/sessions/" + uuid.New().String() + "/messages", map[string]string{"text": "hi"}, http.StatusNotFound},
		{"malformed id", "/api/v1/sessions/not-a-uuid/messages", map[string]string{"text": "hi"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, "POST", tt.path, tt.body)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}

	w := do(t, srv, "GET", "/api/v1/sessions/"+v.ID.String(), nil)
	var got chat.View
	json.NewDecoder(w.Body).Decode(&got)
	if len(got.Messages) != 1 {
		t.Errorf("rejected submissions must not change the transcript, got %d messages", len(got.Messages))
	}
}

func TestSubmitMessage_ConflictWhilePending(t *testing.T) {
	r := &fixedResponder{reply: "done", gate: make(chan struct{}), started: make(chan struct{})}
	srv := newTestServer(t, r, "")
	v := createSession(t, srv, "")
	path := "/api/v1/sessions/" + v.ID.String() + "/messages"

	first := make(chan int, 1)
	go func() {
		first <- do(t, srv, "POST", path, map[string]string{"text": "first"}).Code
	}()
	<-r.started

	w := do(t, srv, "POST", path, map[string]string{"text": "second"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 while pending, got %d", w.Code)
	}

	close(r.gate)
	if code := <-first; code != http.StatusOK {
		t.Errorf("expected first submission to settle with 200, got %d", code)
	}
}

func TestFormGenerationAndDownload(t *testing.T) {
	srv := newTestServer(t, &fixedResponder{reply: "COMPLETED_FORM:\nDriver: Jane Doe"}, "")
	v := createSession(t, srv, "internal")
	base := "/api/v1/sessions/" + v.ID.String()

	w := do(t, srv, "POST", base+"/messages", map[string]string{"text": "please fill out an auto form"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var reply chat.Reply
	json.NewDecoder(w.Body).Decode(&reply)
	if reply.Form == nil || reply.Form.Kind != "auto" {
		t.Fatalf("expected auto form in reply, got %+v", reply.Form)
	}

	w = do(t, srv, "GET", base+"/forms", nil)
	var list struct {
		Forms []chat.FormRecord `json:"forms"`
	}
	json.NewDecoder(w.Body).Decode(&list)
	if len(list.Forms) != 1 || list.Forms[0].Name != "Auto Application - 1/1/2024" {
		t.Fatalf("unexpected forms: %+v", list.Forms)
	}

	w = do(t, srv, "GET", base+"/forms/"+list.Forms[0].ID.String()+"/download", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="Auto_Application___1_1_2024.txt"` {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected Content-Type %q", ct)
	}
	body := w.Body.String()
	if !strings.HasPrefix(body, "AIP Best Rate - Auto Application - 1/1/2024\n") || !strings.Contains(body, "Driver: Jane Doe") {
		t.Errorf("unexpected export body:\n%s", body)
	}

	w = do(t, srv, "GET", base+"/forms/"+uuid.New().String()+"/download", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown form, got %d", w.Code)
	}
}

func TestSetMode(t *testing.T) {
	srv := newTestServer(t, &fixedResponder{reply: "ok"}, "")
	v := createSession(t, srv, "")
	path := "/api/v1/sessions/" + v.ID.String() + "/mode"

	w := do(t, srv, "PUT", path, map[string]string{"mode": "internal"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	w = do(t, srv, "GET", "/api/v1/sessions/"+v.ID.String(), nil)
	var got chat.View
	json.NewDecoder(w.Body).Decode(&got)
	if got.Mode != chat.ModeInternal {
		t.Errorf("expected internal mode, got %s", got.Mode)
	}

	for _, mode := range []string{"", "owner"} {
		w = do(t, srv, "PUT", path, map[string]string{"mode": mode})
		if w.Code != http.StatusBadRequest {
			t.Errorf("mode %q: expected 400, got %d", mode, w.Code)
		}
	}
}

func TestCloseSession(t *testing.T) {
	srv := newTestServer(t, &fixedResponder{reply: "ok"}, "")
	v := createSession(t, srv, "")
	path := "/api/v1/sessions/" + v.ID.String()

	if w := do(t, srv, "DELETE", path, nil); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w := do(t, srv, "GET", path, nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after close, got %d", w.Code)
	}
	if w := do(t, srv, "DELETE", path, nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second close, got %d", w.Code)
	}
}

func multipartUpload(t *testing.T, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := mw.CreateFormFile("file", name)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		part.Write([]byte(content))
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestTrainingFiles(t *testing.T) {
	srv := newTestServer(t, &fixedResponder{reply: "ok"}, "")
	internal := createSession(t, srv, "internal")
	path := "/api/v1/sessions/" + internal.ID.String() + "/training-files"

	body, ct := multipartUpload(t, map[string]string{"underwriting-notes.txt": "Min credit tier: B\n"})
	req := httptest.NewRequest("POST", path, body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, srv, "GET", path, nil)
	var list struct {
		Files []map[string]any `json:"files"`
	}
	json.NewDecoder(w.Body).Decode(&list)
	if len(list.Files) != 1 || list.Files[0]["name"] != "underwriting-notes.txt" {
		t.Fatalf("unexpected files: %+v", list.Files)
	}
	if _, ok := list.Files[0]["content"]; ok {
		t.Error("file content must not be listed")
	}

	body, ct = multipartUpload(t, map[string]string{"payload.exe": "MZ"})
	req = httptest.NewRequest("POST", path, body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("expected 415 for .exe, got %d", w.Code)
	}

	customer := createSession(t, srv, "customer")
	body, ct = multipartUpload(t, map[string]string{"notes.txt": "x"})
	req = httptest.NewRequest("POST", "/api/v1/sessions/"+customer.ID.String()+"/training-files", body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 in customer mode, got %d", w.Code)
	}
}

func TestSubmitRateLimited(t *testing.T) {
	srv := newTestServer(t, &fixedResponder{reply: "ok"}, "1-M")
	v := createSession(t, srv, "")
	path := "/api/v1/sessions/" + v.ID.String() + "/messages"

	if w := do(t, srv, "POST", path, map[string]string{"text": "one"}); w.Code != http.StatusOK {
		t.Fatalf("expected first submit 200, got %d", w.Code)
	}
	w := do(t, srv, "POST", path, map[string]string{"text": "two"})
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON error body, got Content-Type %q", ct)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode 429 body: %v", err)
	}
	if body["error"] != "rate limit exceeded" {
		t.Errorf("unexpected error message %q", body["error"])
	}
	// Reads are not limited.
	if w := do(t, srv, "GET", "/api/v1/sessions/"+v.ID.String(), nil); w.Code != http.StatusOK {
		t.Errorf("expected 200 for read, got %d", w.Code)
	}
}

func TestInvalidRateLimit(t *testing.T) {
	reg := chat.NewRegistry(chat.SessionConfig{Profile: profile.Default(), Responder: &fixedResponder{}}, time.Hour)

	if _, err := NewServer(Options{RateLimit: "lots"}, reg, profile.Default()); err == nil {
		t.Error("expected error for malformed rate limit")
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &fixedResponder{reply: "ok"}, "")

	req := httptest.NewRequest("OPTIONS", "/api/v1/sessions", nil)
	req.Header.Set("Origin", "https://www.aipbestrate.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://www.aipbestrate.com" {
		t.Errorf("expected allowed origin echoed, got %q", got)
	}

	req = httptest.NewRequest("OPTIONS", "/api/v1/sessions", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no allow-origin for foreign site, got %q", got)
	}
}

func TestTrainingFiles_RejectsWholeBatch(t *testing.T) {
	srv := newTestServer(t, &fixedResponder{reply: "ok"}, "")
	v := createSession(t, srv, "internal")
	path := "/api/v1/sessions/" + v.ID.String() + "/training-files"

	body, ct := multipartUpload(t, map[string]string{
		"notes.txt": "Bundle discount: 12%\n",
		"virus.exe": "MZ",
	})
	req := httptest.NewRequest("POST", path, body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", w.Code)
	}

	w = do(t, srv, "GET", path, nil)
	var list struct {
		Files []map[string]any `json:"files"`
	}
	json.NewDecoder(w.Body).Decode(&list)
	if len(list.Files) != 0 {
		t.Errorf("expected no files stored after a rejected batch, got %+v", list.Files)
	}

	body, ct = multipartUpload(t, map[string]string{
		"notes.txt":     "Bundle discount: 12%\n",
		"carriers.json": `{"carriers":["Progressive"]}`,
	})
	req = httptest.NewRequest("POST", path, body)
	req.Header.Set("Content-Type", ct)
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	w = do(t, srv, "GET", path, nil)
	json.NewDecoder(w.Body).Decode(&list)
	if len(list.Files) != 2 {
		t.Errorf("expected 2 files stored, got %d", len(list.Files))
	}
}

func TestJSONBodyLimit(t *testing.T) {
	srv := newTestServer(t, &fixedResponder{reply: "ok"}, "")
	v := createSession(t, srv, "")

	huge := strings.Repeat("a", maxJSONBody+1)
	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"submit", "POST", "/api/v1/sessions/" + v.ID.String() + "/messages", map[string]string{"text": huge}},
		{"mode", "PUT", "/api/v1/sessions/" + v.ID.String() + "/mode", map[string]string{"mode": huge}},
		{"create", "POST", "/api/v1/sessions", map[string]string{"mode": huge}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, tt.method, tt.path, tt.body)
			if w.Code != http.StatusRequestEntityTooLarge {
				t.Errorf("expected 413, got %d: %s", w.Code, w.Body.String())
			}
		})
	}

	w := do(t, srv, "GET", "/api/v1/sessions/"+v.ID.String(), nil)
	var got chat.View
	json.NewDecoder(w.Body).Decode(&got)
	if len(got.Messages) != 1 {
		t.Errorf("oversized submit must not reach the transcript, got %d messages", len(got.Messages))
	}
}
