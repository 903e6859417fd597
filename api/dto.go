/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication that differ from the
  ledger entities. Entities that travel unchanged (Account, Category,
  Mandate, Snapshot, ...) are encoded directly.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done by the ledger, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: Entity model
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/money-ledger/ledger"
)

// =============================================================================
// ACCOUNTS
// =============================================================================

// AccountListResponse is returned by GET /api/accounts.
type AccountListResponse struct {
	Accounts []ledger.Account `json:"accounts"`
	// Total is net worth (loans subtract); ReportTotal only counts accounts included in reports.
	Total       decimal.Decimal `json:"total"`
	ReportTotal decimal.Decimal `json:"reportTotal"`
}

// DeleteAccountResponse reports the cascade.
type DeleteAccountResponse struct {
	ID                  string `json:"id"`
	RemovedTransactions int    `json:"removedTransactions"`
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionRequest is the body of POST /api/transactions and
// PUT /api/transactions/{id}. Date accepts RFC3339 or YYYY-MM-DD and may be
// omitted.
type TransactionRequest struct {
	AccountID          string                 `json:"accountId"`
	ToAccountID        string                 `json:"toAccountId,omitempty"`
	Amount             decimal.Decimal        `json:"amount"`
	Type               ledger.TransactionType `json:"type"`
	Category           string                 `json:"category"`
	Date               string                 `json:"date,omitempty"`
	Note               string                 `json:"note,omitempty"`
	EventID            string                 `json:"eventId,omitempty"`
	ExcludeFromBalance bool                   `json:"excludeFromBalance,omitempty"`
}

func (req TransactionRequest) toTransaction() (ledger.Transaction, error) {
	tx := ledger.Transaction{
		AccountID:          req.AccountID,
		ToAccountID:        req.ToAccountID,
		Amount:             req.Amount,
		Type:               req.Type,
		Category:           req.Category,
		Note:               req.Note,
		EventID:            req.EventID,
		ExcludeFromBalance: req.ExcludeFromBalance,
	}
	if req.Date == "" {
		return tx, nil
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return ledger.Transaction{}, err
	}
	tx.Date = date
	return tx, nil
}

// TransactionDTO is a transaction with its account references resolved.
type TransactionDTO struct {
	ledger.Transaction
	AccountName   string `json:"accountName"`
	ToAccountName string `json:"toAccountName,omitempty"`
}

// =============================================================================
// MANDATES
// =============================================================================

// MandateDTO adds the schedule view for a given day.
type MandateDTO struct {
	ledger.Mandate
	DueToday bool `json:"dueToday"`
	Settled  bool `json:"settled"`
}

// CheckMandatesResponse is returned by POST /api/mandates/check.
type CheckMandatesResponse struct {
	Date         string           `json:"date"`
	Transactions []TransactionDTO `json:"transactions"`
	Errors       []string         `json:"errors,omitempty"`
}

// =============================================================================
// MISC
// =============================================================================

// ReorderRequest lists ids in their new display order.
type ReorderRequest struct {
	IDs []string `json:"ids"`
}

// SettingRequest sets one key. Value must be a string, bool or number.
type SettingRequest struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return ledger.ParseISODate(s)
}
