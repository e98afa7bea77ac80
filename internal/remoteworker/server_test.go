package remoteworker

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Token = "secret-token"
	cfg.WorkDir = dir
	cfg.Version = "test"
	return New(cfg, nil), dir
}

func TestHealthDoesNotRequireToken(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("expected status ok, got %s", resp.Status)
	}
}

func TestExecRequiresBearerToken(t *testing.T) {
	s, _ := newTestServer(t)
	body, _ := json.Marshal(execRequest{Command: "echo hi"})
	req := httptest.NewRequest(http.MethodPost, "/exec", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestExecRunsCommandWithValidToken(t *testing.T) {
	s, _ := newTestServer(t)
	body, _ := json.Marshal(execRequest{Command: "echo hello"})
	req := httptest.NewRequest(http.MethodPost, "/exec", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer secret-token")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp execResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ExitCode != 0 {
		t.Fatalf("expected exit 0, got %d (stderr=%s)", resp.ExitCode, resp.Stderr)
	}
}

func TestFileWriteThenReadRoundTrips(t *testing.T) {
	s, dir := newTestServer(t)

	writeBody, _ := json.Marshal(fileWriteRequest{Path: "note.txt", Content: "hello world"})
	writeReq := httptest.NewRequest(http.MethodPost, "/file/write", bytes.NewReader(writeBody))
	writeReq.Header.Set("Authorization", "Bearer secret-token")
	writeRec := httptest.NewRecorder()
	s.Router().ServeHTTP(writeRec, writeReq)
	if writeRec.Code != http.StatusOK {
		t.Fatalf("write: expected 200, got %d: %s", writeRec.Code, writeRec.Body.String())
	}

	readBody, _ := json.Marshal(fileReadRequest{Path: filepath.Join(dir, "note.txt")})
	readReq := httptest.NewRequest(http.MethodPost, "/file/read", bytes.NewReader(readBody))
	readReq.Header.Set("Authorization", "Bearer secret-token")
	readRec := httptest.NewRecorder()
	s.Router().ServeHTTP(readRec, readReq)
	if readRec.Code != http.StatusOK {
		t.Fatalf("read: expected 200, got %d", readRec.Code)
	}
	var resp fileReadResponse
	if err := json.Unmarshal(readRec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Content != "hello world" {
		t.Fatalf("expected roundtrip content, got %q", resp.Content)
	}
}

func TestShutdownInvokesCallback(t *testing.T) {
	called := make(chan struct{}, 1)
	cfg := DefaultConfig()
	cfg.Token = "secret-token"
	cfg.WorkDir = t.TempDir()
	s := New(cfg, func() { called <- struct{}{} })

	req := httptest.NewRequest(http.MethodPost, "/shutdown", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("expected shutdown callback to have run")
	}
}
