/*
handlers_test.go - HTTP-level tests for the API

Tests for:
- Request identity enforcement (401 without X-User-ID)
- Account and entry endpoints end to end over an in-memory store
- Error status mapping (400/404/409)
*/
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/ledger/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mem := store.NewMemory()
	engine := ledger.NewEngine(mem, mem, ledger.WithTxStores(mem))
	server := httptest.NewServer(NewRouter(NewHandler(engine), NewHeaderIdentity()))
	t.Cleanup(server.Close)
	return server
}

func doRequest(t *testing.T, server *httptest.Server, method, path string, body any, user string) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeData(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var envelope struct {
		StatusMessage string         `json:"statusMessage"`
		Data          map[string]any `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, "Success", envelope.StatusMessage)
	return envelope.Data
}

func createAccount(t *testing.T, server *httptest.Server, accountNo, category string) map[string]any {
	t.Helper()
	resp := doRequest(t, server, http.MethodPost, "/api/accounts",
		map[string]string{"account_no": accountNo, "category": category}, "user-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeData(t, resp)["account"].(map[string]any)
}

// =============================================================================
// IDENTITY
// =============================================================================

func TestAPIRejectsRequestsWithoutUser(t *testing.T) {
	server := newTestServer(t)

	for _, path := range []string{"/api/accounts", "/api/entries"} {
		resp := doRequest(t, server, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestHealthzNeedsNoUser(t *testing.T) {
	server := newTestServer(t)
	resp := doRequest(t, server, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestAccountEndpoints(t *testing.T) {
	server := newTestServer(t)

	// Create
	account := createAccount(t, server, "1001", "Assets")
	assert.Equal(t, "1001", account["account_no"])
	assert.Equal(t, "0", account["debits"])
	id := account["id"].(string)

	// Get
	resp := doRequest(t, server, http.MethodGet, "/api/accounts/"+id, nil, "user-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// List
	resp = doRequest(t, server, http.MethodGet, "/api/accounts", nil, "user-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	accounts := decodeData(t, resp)["accounts"].([]any)
	assert.Len(t, accounts, 1)

	// Update
	resp = doRequest(t, server, http.MethodPut, "/api/accounts/"+id,
		map[string]string{"category": "Fixed Assets"}, "user-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeData(t, resp)["account"].(map[string]any)
	assert.Equal(t, "Fixed Assets", updated["category"])
	assert.Equal(t, "1001", updated["account_no"])

	// Delete
	resp = doRequest(t, server, http.MethodDelete, "/api/accounts/"+id, nil, "user-1")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, server, http.MethodGet, "/api/accounts/"+id, nil, "user-1")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateAccount_MissingFieldsIs400(t *testing.T) {
	server := newTestServer(t)
	resp := doRequest(t, server, http.MethodPost, "/api/accounts",
		map[string]string{"account_no": "1001"}, "user-1")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateAccount_DuplicateNumberIs409(t *testing.T) {
	server := newTestServer(t)
	createAccount(t, server, "1001", "Assets")

	resp := doRequest(t, server, http.MethodPost, "/api/accounts",
		map[string]string{"account_no": "1001", "category": "Liabilities"}, "user-1")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// =============================================================================
// ENTRIES
// =============================================================================

func entryBody(debitNo, creditNo, amount string, date time.Time) map[string]any {
	return map[string]any{
		"debit":  map[string]any{"account_no": debitNo, "amount": amount},
		"credit": map[string]any{"account_no": creditNo, "amount": amount},
		"date":   date.Format(time.RFC3339),
	}
}

func TestEntryEndpoints(t *testing.T) {
	server := newTestServer(t)
	debitAcct := createAccount(t, server, "1001", "Assets")
	createAccount(t, server, "2001", "Revenue")
	date := time.Now().Add(-time.Hour)

	// Create
	resp := doRequest(t, server, http.MethodPost, "/api/entries", entryBody("1001", "2001", "50", date), "user-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entry := decodeData(t, resp)["entry"].(map[string]any)
	assert.Equal(t, "user-1", entry["user_id"])
	entryID := entry["id"].(string)

	// Balances moved
	resp = doRequest(t, server, http.MethodGet, fmt.Sprintf("/api/accounts/%s", debitAcct["id"]), nil, "user-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeData(t, resp)["account"].(map[string]any)
	assert.Equal(t, "50", got["debits"])

	// Get + List
	resp = doRequest(t, server, http.MethodGet, "/api/entries/"+entryID, nil, "user-1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = doRequest(t, server, http.MethodGet, "/api/entries", nil, "user-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := decodeData(t, resp)["entries"].([]any)
	assert.Len(t, entries, 1)

	// Update re-attributes to the caller
	resp = doRequest(t, server, http.MethodPut, "/api/entries/"+entryID,
		map[string]any{"date": date.Add(-time.Hour).Format(time.RFC3339)}, "user-2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeData(t, resp)["entry"].(map[string]any)
	assert.Equal(t, "user-2", updated["user_id"])

	// Delete leaves balances in place
	resp = doRequest(t, server, http.MethodDelete, "/api/entries/"+entryID, nil, "user-1")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, server, http.MethodGet, fmt.Sprintf("/api/accounts/%s", debitAcct["id"]), nil, "user-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = decodeData(t, resp)["account"].(map[string]any)
	assert.Equal(t, "50", got["debits"])
}

func TestCreateEntry_UnknownAccountIs404(t *testing.T) {
	server := newTestServer(t)
	createAccount(t, server, "1001", "Assets")

	resp := doRequest(t, server, http.MethodPost, "/api/entries",
		entryBody("1001", "9999", "50", time.Now().Add(-time.Hour)), "user-1")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateEntry_FutureDateIs400(t *testing.T) {
	server := newTestServer(t)
	createAccount(t, server, "1001", "Assets")
	createAccount(t, server, "2001", "Revenue")

	resp := doRequest(t, server, http.MethodPost, "/api/entries",
		entryBody("1001", "2001", "50", time.Now().Add(24*time.Hour)), "user-1")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateEntry_MissingSidesIs400(t *testing.T) {
	server := newTestServer(t)
	resp := doRequest(t, server, http.MethodPost, "/api/entries",
		map[string]any{"date": time.Now().Format(time.RFC3339)}, "user-1")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
