/*
handlers.go - HTTP API handlers for the bookkeeping service

PURPOSE:
  Exposes the ledger engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Accounts:
    GET    /api/accounts               List all accounts
    POST   /api/accounts               Open an account
    GET    /api/accounts/{accountID}   Get one account
    PUT    /api/accounts/{accountID}   Update whitelisted fields
    DELETE /api/accounts/{accountID}   Delete an account

  Entries:
    GET    /api/entries                List all entries
    POST   /api/entries                Record a double-entry transaction
    GET    /api/entries/{entryID}      Get one entry
    PUT    /api/entries/{entryID}      Update whitelisted fields
    DELETE /api/entries/{entryID}      Delete an entry (balances NOT reversed)

REQUEST FLOW:
  1. Parse HTTP request
  2. Resolve caller identity (RequireUser middleware)
  3. Call domain logic (ledger engine)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: No authenticated user
  - 404: Account/entry not found
  - 409: Duplicate account number
  - 500: Internal errors (generic message; details stay in server logs)

SEE ALSO:
  - dto.go: Request/response data structures
  - identity.go: Caller identity resolution
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *ledger.Engine
}

// NewHandler creates a new handler around the given engine.
func NewHandler(engine *ledger.Engine) *Handler {
	return &Handler{Engine: engine}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns all accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Engine.ListAccounts(r.Context(), userFrom(r))
	if err != nil {
		writeEngineError(w, "Failed to list accounts", err)
		return
	}

	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = toAccountDTO(a)
	}
	writeSuccess(w, http.StatusOK, map[string]any{"accounts": dtos})
}

// CreateAccount opens a new account.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.AccountNo == "" || req.Category == "" {
		writeError(w, http.StatusBadRequest,
			"Account number and category fields are required for creating a new account", nil)
		return
	}

	account, err := h.Engine.CreateAccount(r.Context(), userFrom(r), req.AccountNo, req.Category)
	if err != nil {
		writeEngineError(w, "Failed to create account", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"account": toAccountDTO(*account)})
}

// GetAccount returns a single account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "accountID"))

	account, err := h.Engine.GetAccount(r.Context(), userFrom(r), id)
	if err != nil {
		writeEngineError(w, "Failed to get account", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"account": toAccountDTO(*account)})
}

// UpdateAccount replaces whitelisted account fields.
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "accountID"))

	var req UpdateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	account, err := h.Engine.UpdateAccount(r.Context(), userFrom(r), id, ledger.AccountUpdate{
		AccountNo: req.AccountNo,
		Category:  req.Category,
		Debits:    req.Debits,
		Credits:   req.Credits,
	})
	if err != nil {
		writeEngineError(w, "Failed to update account", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"account": toAccountDTO(*account)})
}

// DeleteAccount removes an account.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "accountID"))

	if err := h.Engine.DeleteAccount(r.Context(), userFrom(r), id); err != nil {
		writeEngineError(w, "Failed to delete account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// ListEntries returns all entries.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Engine.ListEntries(r.Context(), userFrom(r))
	if err != nil {
		writeEngineError(w, "Failed to list entries", err)
		return
	}

	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	writeSuccess(w, http.StatusOK, map[string]any{"entries": dtos})
}

// CreateEntry records a double-entry transaction.
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Debit == nil || req.Credit == nil || req.Date == nil {
		writeError(w, http.StatusBadRequest,
			"Debit, credit, and date fields are required for creating a new entry", nil)
		return
	}

	entry, err := h.Engine.CreateEntry(r.Context(), userFrom(r), ledger.EntryDraft{
		Debit:  toEntrySide(*req.Debit),
		Credit: toEntrySide(*req.Credit),
		Date:   *req.Date,
	})
	if err != nil {
		writeEngineError(w, "Failed to create entry", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"entry": toEntryDTO(*entry)})
}

// GetEntry returns a single entry.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id := ledger.EntryID(chi.URLParam(r, "entryID"))

	entry, err := h.Engine.GetEntry(r.Context(), userFrom(r), id)
	if err != nil {
		writeEngineError(w, "Failed to get entry", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"entry": toEntryDTO(*entry)})
}

// UpdateEntry replaces whitelisted entry fields and re-attributes the entry
// to the caller. Balance effects are not reapplied.
func (h *Handler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id := ledger.EntryID(chi.URLParam(r, "entryID"))

	var req UpdateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	upd := ledger.EntryUpdate{Date: req.Date}
	if req.Debit != nil {
		side := toEntrySide(*req.Debit)
		upd.Debit = &side
	}
	if req.Credit != nil {
		side := toEntrySide(*req.Credit)
		upd.Credit = &side
	}

	entry, err := h.Engine.UpdateEntry(r.Context(), userFrom(r), id, upd)
	if err != nil {
		writeEngineError(w, "Failed to update entry", err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"entry": toEntryDTO(*entry)})
}

// DeleteEntry removes an entry. Account totals keep the balance effects
// applied at creation.
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := ledger.EntryID(chi.URLParam(r, "entryID"))

	if err := h.Engine.DeleteEntry(r.Context(), userFrom(r), id); err != nil {
		writeEngineError(w, "Failed to delete entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{StatusMessage: "Success", Data: data})
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{StatusMessage: "Error", Message: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps domain errors to HTTP statuses. Operational
// failures (partial application included) come back as a generic 500; the
// engine has already logged the reconciliation context.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, ledger.ErrNoAuthenticatedUser):
		writeError(w, http.StatusUnauthorized, "No authenticated user was found", nil)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, ledger.ErrDuplicateAccountNo):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, ledger.ErrValidation):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, nil)
	}
}
