/*
ledger.go - Ledger Store: the single owner of all ledger state

PURPOSE:
  Holds accounts, transactions, reference data, mandates and the audit
  trail in memory, and is the only place they are mutated. Every accepted
  mutation is mirrored to the Persistence Port asynchronously.

MUTATION FLOW (addTransaction):
  1. Validate (amount > 0, transfer destination set and distinct, accounts exist)
  2. Balance Engine forward delta on source/destination, persist balances
  3. Append transaction, persist
  4. Audit "create" entry, persist

EDIT = REVERT + REAPPLY:
  The old transaction's effect is reverted on the pre-edit balances, then
  the new transaction's effect is applied on the post-revert balances.
  No special case per changed field: amount, type, accounts or the
  exclude flag all converge in one pass.

CONSISTENCY:
  In-memory state is the source of truth for the running session. A
  failed mirrored write is reported (see Errors) but never rolled back.
  There is no crash recovery: the store may lag behind memory.

CONCURRENCY:
  Single writer. Methods serialize on an internal mutex so the HTTP layer
  and the mandate ticker can share one Ledger.
*/
package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UnknownAccountName is what read paths show for a dangling account reference.
const UnknownAccountName = "Unknown"

// Ledger is the Ledger Store. Construct once with New and share the pointer.
type Ledger struct {
	mu sync.Mutex

	accounts       []Account
	transactions   []Transaction
	categories     []Category
	events         []Event
	eventLogs      []EventLog
	eventPlans     []EventPlan
	investmentLogs []InvestmentLog
	mandates       []Mandate
	settings       Settings
	audit          *AuditRecorder

	store  Store
	mirror *Mirror

	now   func() time.Time
	newID func() string

	mirrorOpts MirrorOptions
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides time.Now, used for transaction dates and audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator overrides uuid-based id generation.
func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

// WithMirrorOptions tunes the persistence worker.
func WithMirrorOptions(opts MirrorOptions) Option {
	return func(l *Ledger) { l.mirrorOpts = opts }
}

// New creates an empty ledger mirrored to store. Call Load to hydrate it.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		settings: Settings{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.audit = newAuditRecorder(l.now, l.newID)
	l.mirror = NewMirror(store, l.mirrorOpts)
	return l
}

// Errors delivers PersistenceErrors from mirrored writes.
func (l *Ledger) Errors() <-chan error { return l.mirror.Errors() }

// Flush waits until every write queued so far has been attempted.
func (l *Ledger) Flush(ctx context.Context) error { return l.mirror.Flush(ctx) }

// Close drains pending writes and stops the mirror.
func (l *Ledger) Close() { l.mirror.Close() }

// Load replaces in-memory state with the contents of the backing store.
func (l *Ledger) Load(ctx context.Context) error {
	var snap Snapshot
	err := loadCollection(ctx, l.store, CollAccounts, &snap.Accounts)
	if err == nil {
		err = loadCollection(ctx, l.store, CollTransactions, &snap.Transactions)
	}
	if err == nil {
		err = loadCollection(ctx, l.store, CollCategories, &snap.Categories)
	}
	if err == nil {
		err = loadCollection(ctx, l.store, CollEvents, &snap.Events)
	}
	if err == nil {
		err = loadCollection(ctx, l.store, CollEventLogs, &snap.EventLogs)
	}
	if err == nil {
		err = loadCollection(ctx, l.store, CollEventPlans, &snap.EventPlans)
	}
	if err == nil {
		err = loadCollection(ctx, l.store, CollInvestmentLogs, &snap.InvestmentLogs)
	}
	if err == nil {
		err = loadCollection(ctx, l.store, CollMandates, &snap.Mandates)
	}
	if err == nil {
		err = loadCollection(ctx, l.store, CollAuditTrails, &snap.AuditTrails)
	}
	var settings []Settings
	if err == nil {
		err = loadCollection(ctx, l.store, CollSettings, &settings)
	}
	if err != nil {
		return err
	}
	if len(settings) > 0 {
		snap.Settings = settings[0]
	}

	sortByOrder(snap.Accounts, func(a Account) int { return a.Order })
	sortByOrder(snap.Categories, func(c Category) int { return c.Order })
	sortByOrder(snap.Mandates, func(m Mandate) int { return m.Order })
	sort.SliceStable(snap.AuditTrails, func(i, j int) bool {
		return snap.AuditTrails[i].Timestamp.After(snap.AuditTrails[j].Timestamp)
	})

	l.mu.Lock()
	defer l.mu.Unlock()
	l.setState(snap)
	return nil
}

func loadCollection[T any](ctx context.Context, store Store, c Collection, dst *[]T) error {
	docs, err := store.GetAll(ctx, c)
	if err != nil {
		return &PersistenceError{Op: "get_all", Collection: c, Err: err}
	}
	items, err := decodeAll[T](docs)
	if err != nil {
		return &PersistenceError{Op: "get_all", Collection: c, Err: err}
	}
	*dst = items
	return nil
}

func sortByOrder[T any](items []T, order func(T) int) {
	sort.SliceStable(items, func(i, j int) bool { return order(items[i]) < order(items[j]) })
}

// =============================================================================
// READS
// =============================================================================

func (l *Ledger) Accounts() []Account {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Account, len(l.accounts))
	for i, a := range l.accounts {
		out[i] = cloneAccount(a)
	}
	return out
}

func (l *Ledger) Account(id string) (Account, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.accountIndex(id)
	if i < 0 {
		return Account{}, false
	}
	return cloneAccount(l.accounts[i]), true
}

// AccountName resolves id to a display name, UnknownAccountName if dangling.
func (l *Ledger) AccountName(id string) string {
	if a, ok := l.Account(id); ok {
		return a.Name
	}
	return UnknownAccountName
}

func (l *Ledger) Transactions() []Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Transaction(nil), l.transactions...)
}

func (l *Ledger) Transaction(id string) (Transaction, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.txIndex(id)
	if i < 0 {
		return Transaction{}, false
	}
	return l.transactions[i], true
}

// AuditTrail returns every audit entry, most recent first.
func (l *Ledger) AuditTrail() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.audit.Entries()
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// AddAccount appends a new account. Its balance is taken as given: it is
// the current balance at creation, not derived from history.
func (l *Ledger) AddAccount(a Account) (Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if a.ID == "" {
		a.ID = l.newID()
	}
	if l.accountIndex(a.ID) >= 0 {
		return Account{}, invalid("id", "account "+a.ID+" already exists")
	}
	if a.Group == "" {
		a.Group = InferGroup(a.Type)
	}
	if a.IncludeInReports == nil {
		yes := true
		a.IncludeInReports = &yes
	}
	a.Holdings = normalizeHoldings(a.Holdings)
	if err := validateAccount(a); err != nil {
		return Account{}, err
	}

	a.Order = len(l.accounts)
	l.accounts = append(l.accounts, cloneAccount(a))
	l.mirror.add(CollAccounts, a.ID, a)
	return a, nil
}

// UpdateAccount merges p into the account. It never runs the Balance
// Engine: a patched balance is written as given.
func (l *Ledger) UpdateAccount(id string, p AccountPatch) (Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.updateAccountLocked(id, p)
}

func (l *Ledger) updateAccountLocked(id string, p AccountPatch) (Account, error) {
	i := l.accountIndex(id)
	if i < 0 {
		return Account{}, notFound("account", id)
	}
	prev := l.accounts[i]
	next := p.apply(cloneAccount(prev))
	next.Holdings = normalizeHoldings(next.Holdings)
	if err := validateAccount(next); err != nil {
		return Account{}, err
	}

	l.accounts[i] = next
	l.mirror.replaceRecord(CollAccounts, id, prev, next)
	return cloneAccount(next), nil
}

// DeleteAccount removes the account and every transaction that references
// it on either leg, returning how many transactions were removed.
//
// Balances of OTHER accounts are not reverted: a transfer's counterpart
// keeps the effect of the deleted transfer.
func (l *Ledger) DeleteAccount(id string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.accountIndex(id)
	if i < 0 {
		return 0, notFound("account", id)
	}
	l.accounts = append(l.accounts[:i], l.accounts[i+1:]...)

	kept := l.transactions[:0]
	removed := 0
	for _, tx := range l.transactions {
		if tx.Touches(id) {
			removed++
			continue
		}
		kept = append(kept, tx)
	}
	l.transactions = kept

	l.mirror.delete(CollAccounts, id)
	l.mirror.deleteWhere(CollTransactions, "accountId", id)
	l.mirror.deleteWhere(CollTransactions, "toAccountId", id)
	return removed, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// AddTransaction validates and posts tx.
func (l *Ledger) AddTransaction(tx Transaction) (Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addTransactionLocked(tx)
}

func (l *Ledger) addTransactionLocked(tx Transaction) (Transaction, error) {
	if tx.ID == "" {
		tx.ID = l.newID()
	}
	if tx.Date.IsZero() {
		tx.Date = l.now()
	}
	if l.txIndex(tx.ID) >= 0 {
		return Transaction{}, invalid("id", "transaction "+tx.ID+" already exists")
	}
	if err := validateTransaction(tx); err != nil {
		return Transaction{}, err
	}
	if l.accountIndex(tx.AccountID) < 0 {
		return Transaction{}, invalid("accountId", "unknown account "+tx.AccountID)
	}
	if tx.Type == TxTransfer && l.accountIndex(tx.ToAccountID) < 0 {
		return Transaction{}, invalid("toAccountId", "unknown account "+tx.ToAccountID)
	}

	for _, id := range Apply(l.accounts, tx) {
		l.persistBalance(id)
	}

	l.transactions = append(l.transactions, tx)
	l.mirror.add(CollTransactions, tx.ID, tx)

	entry := l.audit.RecordCreate(tx)
	l.mirror.add(CollAuditTrails, entry.ID, entry)
	return tx, nil
}

// EditTransaction replaces transaction id with next. The original date is
// kept when next.Date is zero.
func (l *Ledger) EditTransaction(id string, next Transaction) (Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.txIndex(id)
	if i < 0 {
		return Transaction{}, notFound("transaction", id)
	}
	prev := l.transactions[i]

	next.ID = prev.ID
	if next.Date.IsZero() {
		next.Date = prev.Date
	}
	if err := validateTransaction(next); err != nil {
		return Transaction{}, err
	}
	// Unchanged references may dangle; new ones must resolve.
	if next.AccountID != prev.AccountID && l.accountIndex(next.AccountID) < 0 {
		return Transaction{}, invalid("accountId", "unknown account "+next.AccountID)
	}
	if next.Type == TxTransfer && next.ToAccountID != prev.ToAccountID && l.accountIndex(next.ToAccountID) < 0 {
		return Transaction{}, invalid("toAccountId", "unknown account "+next.ToAccountID)
	}

	touched := Revert(l.accounts, prev)
	touched = append(touched, Apply(l.accounts, next)...)

	l.transactions[i] = next
	l.mirror.replaceRecord(CollTransactions, id, prev, next)

	entry := l.audit.RecordUpdate(prev, next)
	l.mirror.add(CollAuditTrails, entry.ID, entry)

	for _, accID := range dedupe(touched) {
		l.persistBalance(accID)
	}
	return next, nil
}

// DeleteTransaction reverts the transaction's effect and removes it.
func (l *Ledger) DeleteTransaction(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.txIndex(id)
	if i < 0 {
		return notFound("transaction", id)
	}
	prev := l.transactions[i]

	for _, accID := range dedupe(Revert(l.accounts, prev)) {
		l.persistBalance(accID)
	}

	l.transactions = append(l.transactions[:i], l.transactions[i+1:]...)
	l.mirror.delete(CollTransactions, id)

	entry := l.audit.RecordDelete(prev)
	l.mirror.add(CollAuditTrails, entry.ID, entry)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (l *Ledger) persistBalance(accountID string) {
	i := l.accountIndex(accountID)
	if i < 0 {
		return
	}
	l.mirror.update(CollAccounts, accountID, map[string]any{"balance": l.accounts[i].Balance})
}

func (l *Ledger) accountIndex(id string) int {
	for i, a := range l.accounts {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) txIndex(id string) int {
	for i, tx := range l.transactions {
		if tx.ID == id {
			return i
		}
	}
	return -1
}

func validateAccount(a Account) error {
	if strings.TrimSpace(a.Name) == "" {
		return invalid("name", "required")
	}
	if !a.Type.Valid() {
		return invalid("type", "unknown account type "+string(a.Type))
	}
	if a.Group != GroupBanking && a.Group != GroupInvestment {
		return invalid("group", "unknown account group "+string(a.Group))
	}
	if a.LoanDetails != nil && a.LoanDetails.EmisLeft < 0 {
		return invalid("loanDetails.emisLeft", "must not be negative")
	}
	return nil
}

func validateTransaction(tx Transaction) error {
	if !tx.Type.Valid() {
		return invalid("type", "unknown transaction type "+string(tx.Type))
	}
	if !tx.Amount.IsPositive() {
		return invalid("amount", "must be greater than zero")
	}
	if tx.AccountID == "" {
		return invalid("accountId", "required")
	}
	if tx.Type == TxTransfer {
		if tx.ToAccountID == "" {
			return invalid("toAccountId", "required for transfers")
		}
		if tx.ToAccountID == tx.AccountID {
			return invalid("toAccountId", "must differ from accountId")
		}
	} else if tx.ToAccountID != "" {
		return invalid("toAccountId", "only allowed on transfers")
	}
	return nil
}

// normalizeHoldings recomputes purchasePrice = quantity x purchaseRate.
func normalizeHoldings(hs []Holding) []Holding {
	if hs == nil {
		return nil
	}
	out := make([]Holding, len(hs))
	for i, h := range hs {
		h.PurchasePrice = h.Quantity.Mul(h.PurchaseRate)
		out[i] = h
	}
	return out
}

func cloneAccount(a Account) Account {
	if a.LoanDetails != nil {
		ld := *a.LoanDetails
		a.LoanDetails = &ld
	}
	if a.Holdings != nil {
		a.Holdings = append([]Holding(nil), a.Holdings...)
	}
	if a.IncludeInReports != nil {
		v := *a.IncludeInReports
		a.IncludeInReports = &v
	}
	return a
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Sum returns the total balance of the given accounts.
func Sum(accounts []Account) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total
}

// NetWorth sums balances with loan balances counted as debt.
func NetWorth(accounts []Account) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accounts {
		if a.IsLoan() {
			total = total.Sub(a.Balance)
			continue
		}
		total = total.Add(a.Balance)
	}
	return total
}
