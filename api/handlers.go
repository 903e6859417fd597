/*
handlers.go - HTTP API handlers for the money ledger

PURPOSE:
  Exposes the Ledger Store via REST API. Handles HTTP request/response,
  JSON serialization, and delegates every mutation to the ledger, which
  owns validation, balances and the audit trail.

ENDPOINTS:
  Accounts:
    GET    /api/accounts                 List accounts with totals
    POST   /api/accounts                 Create account
    GET    /api/accounts/{id}            Get account
    PATCH  /api/accounts/{id}            Merge fields (balance written as given)
    DELETE /api/accounts/{id}            Delete account and its transactions

  Transactions:
    GET    /api/transactions             List, newest first, names resolved
    POST   /api/transactions             Add (Balance Engine + audit)
    PUT    /api/transactions/{id}        Edit (revert + reapply)
    DELETE /api/transactions/{id}        Delete (revert)

  Mandates:
    POST   /api/mandates/{id}/run        Run now (?date= stamps the month)
    POST   /api/mandates/{id}/skip       Skip this month
    GET    /api/mandates/due             Due on ?date= (default today)
    POST   /api/mandates/check           Run everything due on ?date=

REQUEST FLOW:
  1. Parse HTTP request
  2. Call the ledger
  3. Serialize response
  4. Map errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Entity not found
  - 409: Mandate already settled this month
  - 500: Import partial failure, internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/money-ledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger *ledger.Ledger

	// Now supplies "today" for mandate endpoints without ?date=.
	Now func() time.Time
}

// NewHandler creates a new handler over l.
func NewHandler(l *ledger.Ledger) *Handler {
	return &Handler{Ledger: l, Now: time.Now}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns all accounts in display order with totals.
// GET /api/accounts
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts := h.Ledger.Accounts()

	var reported []ledger.Account
	for _, a := range accounts {
		if a.InReports() {
			reported = append(reported, a)
		}
	}

	writeJSON(w, http.StatusOK, AccountListResponse{
		Accounts:    accounts,
		Total:       ledger.NetWorth(accounts),
		ReportTotal: ledger.NetWorth(reported),
	})
}

// CreateAccount creates an account.
// POST /api/accounts
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req ledger.Account
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	acct, err := h.Ledger.AddAccount(req)
	if err != nil {
		writeLedgerError(w, "Failed to create account", err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

// GetAccount returns one account.
// GET /api/accounts/{id}
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	acct, ok := h.Ledger.Account(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Account not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// UpdateAccount merges the body into the account.
// PATCH /api/accounts/{id}
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var patch ledger.AccountPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	acct, err := h.Ledger.UpdateAccount(chi.URLParam(r, "id"), patch)
	if err != nil {
		writeLedgerError(w, "Failed to update account", err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

// DeleteAccount removes the account and every transaction touching it.
// DELETE /api/accounts/{id}
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	removed, err := h.Ledger.DeleteAccount(id)
	if err != nil {
		writeLedgerError(w, "Failed to delete account", err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteAccountResponse{ID: id, RemovedTransactions: removed})
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// ListTransactions returns transactions newest first. Optional filters:
// ?accountId= (either leg), ?eventId=.
// GET /api/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")
	eventID := r.URL.Query().Get("eventId")

	var txs []ledger.Transaction
	for _, tx := range h.Ledger.Transactions() {
		if accountID != "" && !tx.Touches(accountID) {
			continue
		}
		if eventID != "" && tx.EventID != eventID {
			continue
		}
		txs = append(txs, tx)
	}
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date.After(txs[j].Date) })

	writeJSON(w, http.StatusOK, h.toTransactionDTOs(txs))
}

// CreateTransaction adds a transaction.
// POST /api/transactions
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	tx, ok := decodeTransaction(w, r)
	if !ok {
		return
	}

	created, err := h.Ledger.AddTransaction(tx)
	if err != nil {
		writeLedgerError(w, "Failed to add transaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toTransactionDTO(created))
}

// GetTransaction returns one transaction.
// GET /api/transactions/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, ok := h.Ledger.Transaction(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Transaction not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, h.toTransactionDTO(tx))
}

// EditTransaction replaces a transaction. Omitting date keeps the original.
// PUT /api/transactions/{id}
func (h *Handler) EditTransaction(w http.ResponseWriter, r *http.Request) {
	tx, ok := decodeTransaction(w, r)
	if !ok {
		return
	}

	edited, err := h.Ledger.EditTransaction(chi.URLParam(r, "id"), tx)
	if err != nil {
		writeLedgerError(w, "Failed to edit transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, h.toTransactionDTO(edited))
}

// DeleteTransaction reverts and removes a transaction.
// DELETE /api/transactions/{id}
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.Ledger.DeleteTransaction(chi.URLParam(r, "id")); err != nil {
		writeLedgerError(w, "Failed to delete transaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeTransaction(w http.ResponseWriter, r *http.Request) (ledger.Transaction, bool) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return ledger.Transaction{}, false
	}
	tx, err := req.toTransaction()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use RFC3339 or YYYY-MM-DD)", err)
		return ledger.Transaction{}, false
	}
	return tx, true
}

// =============================================================================
// CATEGORY HANDLERS
// =============================================================================

// ListCategories returns categories in display order.
// GET /api/categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.Ledger.Categories()))
}

// CreateCategory creates a category.
// POST /api/categories
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req ledger.Category
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	c, err := h.Ledger.AddCategory(req)
	if err != nil {
		writeLedgerError(w, "Failed to create category", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// UpdateCategory merges the body into the category.
// PATCH /api/categories/{id}
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var patch ledger.CategoryPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	c, err := h.Ledger.UpdateCategory(chi.URLParam(r, "id"), patch)
	if err != nil {
		writeLedgerError(w, "Failed to update category", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteCategory removes a category. Transactions keep the name.
// DELETE /api/categories/{id}
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.Ledger.DeleteCategory(chi.URLParam(r, "id")); err != nil {
		writeLedgerError(w, "Failed to delete category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// EVENT HANDLERS
// =============================================================================

// GET /api/events
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.Ledger.Events()))
}

// POST /api/events
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req ledger.Event
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	ev, err := h.Ledger.AddEvent(req)
	if err != nil {
		writeLedgerError(w, "Failed to create event", err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

// PATCH /api/events/{id}
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var patch ledger.EventPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	ev, err := h.Ledger.UpdateEvent(chi.URLParam(r, "id"), patch)
	if err != nil {
		writeLedgerError(w, "Failed to update event", err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// DeleteEvent removes the event, its logs and plans, and untags transactions.
// DELETE /api/events/{id}
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.Ledger.DeleteEvent(chi.URLParam(r, "id")); err != nil {
		writeLedgerError(w, "Failed to delete event", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/events/{id}/transactions
func (h *Handler) ListEventTransactions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.toTransactionDTOs(h.Ledger.EventTransactions(chi.URLParam(r, "id"))))
}

// GET /api/events/{id}/logs
func (h *Handler) ListEventLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.Ledger.EventLogs(chi.URLParam(r, "id"))))
}

// POST /api/events/{id}/logs
func (h *Handler) CreateEventLog(w http.ResponseWriter, r *http.Request) {
	var req ledger.EventLog
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.EventID = chi.URLParam(r, "id")
	entry, err := h.Ledger.AddEventLog(req)
	if err != nil {
		writeLedgerError(w, "Failed to add event log", err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// DELETE /api/events/{id}/logs/{logID}
func (h *Handler) DeleteEventLog(w http.ResponseWriter, r *http.Request) {
	if err := h.Ledger.DeleteEventLog(chi.URLParam(r, "logID")); err != nil {
		writeLedgerError(w, "Failed to delete event log", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/events/{id}/plans
func (h *Handler) ListEventPlans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.Ledger.EventPlans(chi.URLParam(r, "id"))))
}

// POST /api/events/{id}/plans
func (h *Handler) CreateEventPlan(w http.ResponseWriter, r *http.Request) {
	var req ledger.EventPlan
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	req.EventID = chi.URLParam(r, "id")
	plan, err := h.Ledger.AddEventPlan(req)
	if err != nil {
		writeLedgerError(w, "Failed to add event plan", err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

// DELETE /api/events/{id}/plans/{planID}
func (h *Handler) DeleteEventPlan(w http.ResponseWriter, r *http.Request) {
	if err := h.Ledger.DeleteEventPlan(chi.URLParam(r, "planID")); err != nil {
		writeLedgerError(w, "Failed to delete event plan", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// INVESTMENT LOG HANDLERS
// =============================================================================

// GET /api/investment-logs
func (h *Handler) ListInvestmentLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, nonNil(h.Ledger.InvestmentLogs()))
}

// POST /api/investment-logs
func (h *Handler) CreateInvestmentLog(w http.ResponseWriter, r *http.Request) {
	var req ledger.InvestmentLog
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	il, err := h.Ledger.AddInvestmentLog(req)
	if err != nil {
		writeLedgerError(w, "Failed to add investment log", err)
		return
	}
	writeJSON(w, http.StatusCreated, il)
}

// =============================================================================
// MANDATE HANDLERS
// =============================================================================

// ListMandates returns mandates with their schedule state for today.
// GET /api/mandates
func (h *Handler) ListMandates(w http.ResponseWriter, r *http.Request) {
	today := h.Now()
	mandates := h.Ledger.Mandates()
	dtos := make([]MandateDTO, len(mandates))
	for i, m := range mandates {
		dtos[i] = toMandateDTO(m, today)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// POST /api/mandates
func (h *Handler) CreateMandate(w http.ResponseWriter, r *http.Request) {
	var req ledger.Mandate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	m, err := h.Ledger.AddMandate(req)
	if err != nil {
		writeLedgerError(w, "Failed to create mandate", err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// PATCH /api/mandates/{id}
func (h *Handler) UpdateMandate(w http.ResponseWriter, r *http.Request) {
	var patch ledger.MandatePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	m, err := h.Ledger.UpdateMandate(chi.URLParam(r, "id"), patch)
	if err != nil {
		writeLedgerError(w, "Failed to update mandate", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// DELETE /api/mandates/{id}
func (h *Handler) DeleteMandate(w http.ResponseWriter, r *http.Request) {
	if err := h.Ledger.DeleteMandate(chi.URLParam(r, "id")); err != nil {
		writeLedgerError(w, "Failed to delete mandate", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RunMandate executes a mandate now, regardless of its day.
// POST /api/mandates/{id}/run?date=YYYY-MM-DD
func (h *Handler) RunMandate(w http.ResponseWriter, r *http.Request) {
	today, ok := h.dateParam(w, r)
	if !ok {
		return
	}
	tx, err := h.Ledger.RunMandate(chi.URLParam(r, "id"), today)
	if err != nil {
		writeLedgerError(w, "Failed to run mandate", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toTransactionDTO(tx))
}

// SkipMandate settles a mandate for the month without moving money.
// POST /api/mandates/{id}/skip?date=YYYY-MM-DD
func (h *Handler) SkipMandate(w http.ResponseWriter, r *http.Request) {
	today, ok := h.dateParam(w, r)
	if !ok {
		return
	}
	m, err := h.Ledger.SkipMandate(chi.URLParam(r, "id"), today)
	if err != nil {
		writeLedgerError(w, "Failed to skip mandate", err)
		return
	}
	writeJSON(w, http.StatusOK, toMandateDTO(m, today))
}

// ListDueMandates returns the mandates the scheduler would run.
// GET /api/mandates/due?date=YYYY-MM-DD
func (h *Handler) ListDueMandates(w http.ResponseWriter, r *http.Request) {
	today, ok := h.dateParam(w, r)
	if !ok {
		return
	}
	due := h.Ledger.DueMandates(today)
	dtos := make([]MandateDTO, len(due))
	for i, m := range due {
		dtos[i] = toMandateDTO(m, today)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CheckMandates runs everything due. Individual failures are listed, not fatal.
// POST /api/mandates/check?date=YYYY-MM-DD
func (h *Handler) CheckMandates(w http.ResponseWriter, r *http.Request) {
	today, ok := h.dateParam(w, r)
	if !ok {
		return
	}
	txs, err := h.Ledger.CheckAndRun(today)

	resp := CheckMandatesResponse{
		Date:         ledger.ISODate(today),
		Transactions: h.toTransactionDTOs(txs),
	}
	if err != nil {
		resp.Errors = strings.Split(err.Error(), "\n")
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) dateParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return h.Now(), true
	}
	t, err := ledger.ParseISODate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return time.Time{}, false
	}
	return t, true
}

func toMandateDTO(m ledger.Mandate, today time.Time) MandateDTO {
	return MandateDTO{
		Mandate:  m,
		DueToday: ledger.IsDueToday(m, today),
		Settled:  ledger.IsSettled(m, today),
	}
}

// =============================================================================
// AUDIT, BACKUP, ORDER, SETTINGS
// =============================================================================

// ListAudit returns the audit trail, most recent first.
// GET /api/audit
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Ledger.AuditTrail())
}

// Export returns a full snapshot as a downloadable JSON document.
// GET /api/export
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	snap := h.Ledger.ExportSnapshot()
	w.Header().Set("Content-Disposition", `attachment; filename="ledger-backup-`+ledger.ISODate(h.Now())+`.json"`)
	writeJSON(w, http.StatusOK, snap)
}

// Import replaces all state with the posted snapshot.
// POST /api/import
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	var snap ledger.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid snapshot", err)
		return
	}
	if err := h.Ledger.ImportData(r.Context(), snap); err != nil {
		writeLedgerError(w, "Import failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accounts":     len(snap.Accounts),
		"transactions": len(snap.Transactions),
	})
}

// Reorder sets display order for accounts, categories or mandates.
// POST /api/reorder/{collection}
func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	c := ledger.Collection(chi.URLParam(r, "collection"))
	if err := h.Ledger.Reorder(c, req.IDs); err != nil {
		writeLedgerError(w, "Failed to reorder", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Ledger.Settings())
}

// PUT /api/settings
func (h *Handler) PutSetting(w http.ResponseWriter, r *http.Request) {
	var req SettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.Ledger.SetSetting(req.Key, req.Value); err != nil {
		writeLedgerError(w, "Failed to save setting", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Ledger.Settings())
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	dto := TransactionDTO{Transaction: tx, AccountName: h.Ledger.AccountName(tx.AccountID)}
	if tx.ToAccountID != "" {
		dto.ToAccountName = h.Ledger.AccountName(tx.ToAccountID)
	}
	return dto
}

func (h *Handler) toTransactionDTOs(txs []ledger.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = h.toTransactionDTO(tx)
	}
	return dtos
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// statusFor maps ledger errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrMandateSettled):
		return http.StatusConflict
	case ledger.IsClientError(err):
		return http.StatusBadRequest
	case ledger.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeLedgerError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusFor(err), message, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
