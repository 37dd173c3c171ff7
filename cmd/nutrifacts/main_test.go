package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nutrifacts/internal/adapter/api/apitest"
	"nutrifacts/internal/adapter/sqlite"
	"nutrifacts/internal/domain"
	"nutrifacts/internal/secure"
)

type harness struct {
	t       *testing.T
	dir     string
	backend *apitest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	backend := apitest.New()
	t.Cleanup(backend.Close)
	backend.AddUser("ana@example.com", "pw")

	t.Setenv("HOME", dir)
	t.Setenv("NUTRIFACTS_API_URL", backend.BaseURL())
	t.Setenv("NUTRIFACTS_STORE_DRIVER", "sqlite")
	t.Setenv("NUTRIFACTS_STORE_DSN", filepath.Join(dir, "store.db"))
	t.Setenv("NUTRIFACTS_KEY_FILE", filepath.Join(dir, "device.key"))
	t.Setenv("NUTRIFACTS_LANG", "en")
	t.Setenv("NUTRIFACTS_PASSWORD", "pw")
	return &harness{t: t, dir: dir, backend: backend}
}

func (h *harness) run(args ...string) (int, string, string) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--env-file", filepath.Join(h.dir, "absent.env")}, args...)
	code := run(context.Background(), full, strings.NewReader(""), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (h *harness) image() string {
	h.t.Helper()
	path := filepath.Join(h.dir, "label.jpg")
	if err := os.WriteFile(path, []byte("\xff\xd8\xff\xe0label"), 0o600); err != nil {
		h.t.Fatalf("write image: %v", err)
	}
	return path
}

func TestCLI_ScanAndHistory(t *testing.T) {
	h := newHarness(t)

	if code, out, errOut := h.run("login", "--email", "ana@example.com"); code != 0 || !strings.Contains(out, "Logged in.") {
		t.Fatalf("login: code=%d out=%q err=%q", code, out, errOut)
	}

	code, out, errOut := h.run("scan", "--image", h.image(), "--label", "Oat Bar", "--yes", "--json")
	if code != 0 {
		t.Fatalf("scan: code=%d err=%q", code, errOut)
	}
	var res scanOutput
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode scan output %q: %v", out, err)
	}
	if res.Derived.Calories != 415 || res.Derived.WaterGrams != 11 || res.Record == nil || res.SaveError != "" {
		t.Fatalf("unexpected scan result %+v", res)
	}

	code, out, _ = h.run("history", "--json")
	if code != 0 {
		t.Fatalf("history: code=%d", code)
	}
	var records []domain.HistoryRecord
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(records) != 1 || records[0].ProductName != "Oat Bar" {
		t.Fatalf("unexpected history %+v", records)
	}

	_, out, _ = h.run("history", "--filter", "OAT")
	if !strings.Contains(out, "Oat Bar") || !strings.Contains(out, "415") {
		t.Errorf("history table missing the scan: %q", out)
	}
	_, out, _ = h.run("history", "--filter", "yogurt")
	if !strings.Contains(out, "No scans yet.") {
		t.Errorf("expected empty notice, got %q", out)
	}
	_, out, _ = h.run("history", "--show", records[0].ID)
	if !strings.Contains(out, "415 kcal") {
		t.Errorf("detail missing calories: %q", out)
	}
}

func TestCLI_LoggedOut(t *testing.T) {
	h := newHarness(t)
	h.run("login", "--email", "ana@example.com")
	if code, _, _ := h.run("logout"); code != 0 {
		t.Fatalf("logout failed")
	}
	before := h.backend.TotalCalls()

	code, _, errOut := h.run("history")
	if code != 1 || !strings.Contains(errOut, "not logged in") {
		t.Fatalf("expected unauthenticated failure, got code=%d err=%q", code, errOut)
	}
	if h.backend.TotalCalls() != before {
		t.Error("logged-out history made a request")
	}
}

func TestCLI_WrongPassword(t *testing.T) {
	h := newHarness(t)
	t.Setenv("NUTRIFACTS_PASSWORD", "not-the-password")

	code, _, errOut := h.run("login", "--email", "ana@example.com")
	if code != 1 || !strings.Contains(errOut, "Wrong email or password.") {
		t.Fatalf("expected rejected login, got code=%d err=%q", code, errOut)
	}
	if strings.Contains(errOut, "not logged in") {
		t.Errorf("rejected login reported as an expired session: %q", errOut)
	}
}

func TestCLI_TokensEncryptedAtRest(t *testing.T) {
	h := newHarness(t)
	if code, _, errOut := h.run("login", "--email", "ana@example.com"); code != 0 {
		t.Fatalf("login: %q", errOut)
	}

	db, err := sqlite.Open(filepath.Join(h.dir, "store.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	stored, ok, err := db.Get(ctx, "access")
	if err != nil || !ok {
		t.Fatalf("access token not stored: %v", err)
	}
	if strings.HasPrefix(stored, "eyJ") {
		t.Fatal("token stored in plain text")
	}

	key, err := secure.LoadOrCreateKey(filepath.Join(h.dir, "device.key"))
	if err != nil {
		t.Fatalf("load key: %v", err)
	}
	store, _ := secure.NewStore(db, key)
	plain, _, err := store.Get(ctx, "access")
	if err != nil || !strings.HasPrefix(plain, "eyJ") {
		t.Fatalf("decrypted token = %q, %v", plain, err)
	}
}

func TestCLI_Usage(t *testing.T) {
	h := newHarness(t)
	if code, _, _ := h.run(); code != 2 {
		t.Errorf("no command: code=%d", code)
	}
	if code, _, _ := h.run("frobnicate"); code != 2 {
		t.Errorf("unknown command: code=%d", code)
	}
	if code, _, _ := h.run("scan", "--label", "x"); code != 2 {
		t.Errorf("scan without source: code=%d", code)
	}
}

func TestCLI_ScanSaveFailure(t *testing.T) {
	h := newHarness(t)
	h.run("login", "--email", "ana@example.com")
	h.backend.FailSaves(&apitest.Response{Status: 500, Body: map[string]any{"error": "db down"}})

	code, out, errOut := h.run("scan", "--image", h.image(), "--label", "Oat Bar", "--yes")
	if code != 0 {
		t.Fatalf("save failure must not fail the scan: code=%d err=%q", code, errOut)
	}
	if !strings.Contains(out, "not saved") || !strings.Contains(out, "415 kcal") {
		t.Errorf("expected data and a save warning, got %q", out)
	}
}
