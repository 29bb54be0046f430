/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

ENVELOPE:
  Responses are wrapped in {"statusMessage": "Success", "data": {...}};
  errors in {"statusMessage": "Error", "message": "..."}.

VALIDATION:
  Validation is done in handlers and the engine, not in DTOs. DTOs are
  pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// ENVELOPE
// =============================================================================

// Envelope wraps every successful response.
type Envelope struct {
	StatusMessage string `json:"statusMessage"`
	Data          any    `json:"data,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	StatusMessage string `json:"statusMessage"`
	Message       string `json:"message"`
	Details       any    `json:"details,omitempty"`
}

// =============================================================================
// ACCOUNT TYPES
// =============================================================================

// AccountDTO represents an account in API responses.
type AccountDTO struct {
	ID        string          `json:"id"`
	AccountNo string          `json:"account_no"`
	Category  string          `json:"category"`
	Debits    decimal.Decimal `json:"debits"`
	Credits   decimal.Decimal `json:"credits"`
	CreatedAt string          `json:"created_at,omitempty"`
	UpdatedAt string          `json:"updated_at,omitempty"`
}

// CreateAccountRequest is the request to open an account.
type CreateAccountRequest struct {
	AccountNo string `json:"account_no"`
	Category  string `json:"category"`
}

// UpdateAccountRequest carries the whitelisted account fields. Absent
// fields are kept; unknown fields in the body are ignored.
type UpdateAccountRequest struct {
	AccountNo *string          `json:"account_no"`
	Category  *string          `json:"category"`
	Debits    *decimal.Decimal `json:"debits"`
	Credits   *decimal.Decimal `json:"credits"`
}

func toAccountDTO(a ledger.Account) AccountDTO {
	return AccountDTO{
		ID:        string(a.ID),
		AccountNo: a.AccountNo,
		Category:  a.Category,
		Debits:    a.Debits,
		Credits:   a.Credits,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
		UpdatedAt: a.UpdatedAt.Format(time.RFC3339),
	}
}

// =============================================================================
// ENTRY TYPES
// =============================================================================

// EntrySideDTO is one half of an entry.
type EntrySideDTO struct {
	AccountNo string          `json:"account_no"`
	Amount    decimal.Decimal `json:"amount"`
}

// EntryDTO represents an entry in API responses.
type EntryDTO struct {
	ID        string       `json:"id"`
	Debit     EntrySideDTO `json:"debit"`
	Credit    EntrySideDTO `json:"credit"`
	Date      string       `json:"date"`
	UserID    string       `json:"user_id"`
	CreatedAt string       `json:"created_at,omitempty"`
}

// CreateEntryRequest is the request to record an entry. The attributed
// user is never taken from the body.
type CreateEntryRequest struct {
	Debit  *EntrySideDTO `json:"debit"`
	Credit *EntrySideDTO `json:"credit"`
	Date   *time.Time    `json:"date"`
}

// UpdateEntryRequest carries the whitelisted entry fields.
type UpdateEntryRequest struct {
	Debit  *EntrySideDTO `json:"debit"`
	Credit *EntrySideDTO `json:"credit"`
	Date   *time.Time    `json:"date"`
}

func toEntryDTO(e ledger.Entry) EntryDTO {
	return EntryDTO{
		ID:        string(e.ID),
		Debit:     EntrySideDTO{AccountNo: e.Debit.AccountNo, Amount: e.Debit.Amount},
		Credit:    EntrySideDTO{AccountNo: e.Credit.AccountNo, Amount: e.Credit.Amount},
		Date:      e.Date.Format(time.RFC3339),
		UserID:    string(e.UserID),
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
}

func toEntrySide(dto EntrySideDTO) ledger.EntrySide {
	return ledger.EntrySide{AccountNo: dto.AccountNo, Amount: dto.Amount}
}
