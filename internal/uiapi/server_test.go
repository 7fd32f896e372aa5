package uiapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"mt5copier/internal/account"
	"mt5copier/internal/core"
	"mt5copier/internal/queues"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword: %v", err)
	}
	s := New(queues.NewCommandQueue(), queues.NewAccountSnapshotQueue(), queues.NewLogQueue(), "test-secret", string(hash), Meta{Version: "test", Venue: "mt5"})
	return s, "test-secret"
}

func doRequest(s *Server, method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	return rec
}

func TestLoginRejectsWrongPasswordAndAcceptsCorrectOne(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, http.MethodPost, "/auth/login", map[string]string{"password": "wrong"}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status = %d, want 401", rec.Code)
	}

	rec = doRequest(s, http.MethodPost, "/auth/login", map[string]string{"password": "correct-horse"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("correct password: status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected a non-empty token")
	}
}

func TestProtectedRoutesRejectMissingOrInvalidToken(t *testing.T) {
	s, _ := newTestServer(t)

	if rec := doRequest(s, http.MethodGet, "/accounts", nil, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", rec.Code)
	}
	if rec := doRequest(s, http.MethodGet, "/accounts", nil, "garbage"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status = %d, want 401", rec.Code)
	}
}

func loginAndGetToken(t *testing.T, s *Server) string {
	t.Helper()
	rec := doRequest(s, http.MethodPost, "/auth/login", map[string]string{"password": "correct-horse"}, "")
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.Token
}

func TestPostCommandEnqueuesOntoTheCommandQueue(t *testing.T) {
	s, _ := newTestServer(t)
	token := loginAndGetToken(t, s)

	body := core.Command{Kind: core.CommandStopAndClose, AccountID: "slave1"}
	rec := doRequest(s, http.MethodPost, "/commands", body, token)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body=%s", rec.Code, rec.Body.String())
	}

	cmd, ok := s.Commands.Dequeue()
	if !ok {
		t.Fatal("expected a queued command")
	}
	if cmd.Kind != core.CommandStopAndClose || cmd.AccountID != "slave1" {
		t.Fatalf("dequeued command = %+v, want stopAndClose for slave1", cmd)
	}
}

func TestPostCommandRejectsMissingKind(t *testing.T) {
	s, _ := newTestServer(t)
	token := loginAndGetToken(t, s)

	rec := doRequest(s, http.MethodPost, "/commands", map[string]string{"accountId": "slave1"}, token)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetAccountsDrainsTheSnapshotQueue(t *testing.T) {
	s, _ := newTestServer(t)
	token := loginAndGetToken(t, s)
	s.Snapshots.Publish(account.Snapshot{ID: "master1", Role: account.RoleMaster, State: account.StateConnected})

	rec := doRequest(s, http.MethodGet, "/accounts", nil, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Accounts []account.Snapshot `json:"accounts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Accounts) != 1 || resp.Accounts[0].ID != "master1" {
		t.Fatalf("accounts = %+v, want one entry for master1", resp.Accounts)
	}

	rec = doRequest(s, http.MethodGet, "/accounts", nil, token)
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode second response: %v", err)
	}
	if len(resp.Accounts) != 0 {
		t.Fatalf("expected the queue to be drained on the first call, got %d more", len(resp.Accounts))
	}
}
