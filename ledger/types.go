/*
Package ledger provides the personal-finance ledger engine.

PURPOSE:
  Records accounts and transactions, keeps every account's running balance
  consistent under income/expense/transfer postings, supports historical
  edits and deletes by reverting and reapplying their effects, and runs
  recurring monthly transfers ("mandates").

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: A balance-carrying container (savings, loan, stock, ...)
  - Transaction: An income, expense or transfer posted against accounts
  - Category / Event / EventLog / EventPlan: Reference data, never ledger-affecting
  - Mandate: A monthly standing transfer between two accounts
  - AuditEntry: Before/after record of a transaction mutation

BALANCE MODEL:
  This is a single-entry balance cache, not double-entry bookkeeping.
  Each account carries ONE mutable balance that transactions adjust as a
  side effect. Loan accounts store outstanding debt as a positive number,
  which flips the sign of some postings (see balance.go).

REFERENCES:
  Only two cross-entity references exist and both are weak:
  - Transaction.EventID: deleting the event clears it, never the transaction
  - Transaction.Category: a NAME snapshot, not a foreign key

SEE ALSO:
  - balance.go: Balance Engine (forward and revert deltas)
  - ledger.go: Ledger Store, the only mutation entry point
  - mandate.go: Mandate Scheduler
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCOUNT
// =============================================================================

type AccountType string

const (
	AccountFixedDeposit AccountType = "fixed-deposit"
	AccountSavings      AccountType = "savings"
	AccountCredit       AccountType = "credit"
	AccountCash         AccountType = "cash"
	AccountStock        AccountType = "stock"
	AccountMutualFund   AccountType = "mutual-fund"
	AccountOther        AccountType = "other"
	AccountLand         AccountType = "land"
	AccountInsurance    AccountType = "insurance"
	AccountLoan         AccountType = "loan"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountFixedDeposit, AccountSavings, AccountCredit, AccountCash, AccountStock,
		AccountMutualFund, AccountOther, AccountLand, AccountInsurance, AccountLoan:
		return true
	}
	return false
}

type AccountGroup string

const (
	GroupBanking    AccountGroup = "banking"
	GroupInvestment AccountGroup = "investment"
)

// InferGroup returns the group an account of type t belongs to when none is given.
func InferGroup(t AccountType) AccountGroup {
	switch t {
	case AccountFixedDeposit, AccountStock, AccountMutualFund, AccountLand, AccountInsurance:
		return GroupInvestment
	default:
		return GroupBanking
	}
}

type LoanDetails struct {
	PrincipalAmount decimal.Decimal `json:"principalAmount"`
	InterestRate    decimal.Decimal `json:"interestRate"`
	MonthlyEmi      decimal.Decimal `json:"monthlyEmi"`
	EmisLeft        int             `json:"emisLeft"`
}

// Holding is one position inside a stock or mutual-fund account.
type Holding struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Quantity      decimal.Decimal `json:"quantity"`
	PurchaseRate  decimal.Decimal `json:"purchaseRate"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
}

type Account struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	SubName       string          `json:"subName,omitempty"`
	Type          AccountType     `json:"type"`
	Balance       decimal.Decimal `json:"balance"`
	Group         AccountGroup    `json:"group,omitempty"`
	IsPrimary     bool            `json:"isPrimary,omitempty"`
	AccountNumber string          `json:"accountNumber,omitempty"`
	CustomerID    string          `json:"customerId,omitempty"`
	DmatID        string          `json:"dmatId,omitempty"`
	LoanDetails   *LoanDetails    `json:"loanDetails,omitempty"`
	Holdings      []Holding       `json:"holdings,omitempty"`
	Order         int             `json:"order"`

	// IncludeInReports is nil when unset, which means true.
	IncludeInReports *bool `json:"includeInReports,omitempty"`
}

// InReports reports whether the account participates in reports.
func (a Account) InReports() bool {
	return a.IncludeInReports == nil || *a.IncludeInReports
}

// IsLoan reports whether the account stores debt as a positive balance.
func (a Account) IsLoan() bool { return a.Type == AccountLoan }

// =============================================================================
// TRANSACTION
// =============================================================================

type TransactionType string

const (
	TxIncome   TransactionType = "income"
	TxExpense  TransactionType = "expense"
	TxTransfer TransactionType = "transfer"
)

func (t TransactionType) Valid() bool {
	return t == TxIncome || t == TxExpense || t == TxTransfer
}

type Transaction struct {
	ID                 string          `json:"id"`
	AccountID          string          `json:"accountId"`
	ToAccountID        string          `json:"toAccountId,omitempty"`
	Amount             decimal.Decimal `json:"amount"`
	Type               TransactionType `json:"type"`
	Category           string          `json:"category"`
	Date               time.Time       `json:"date"`
	Note               string          `json:"note,omitempty"`
	EventID            string          `json:"eventId,omitempty"`
	ExcludeFromBalance bool            `json:"excludeFromBalance,omitempty"`
}

// Touches reports whether the transaction references accountID on either leg.
func (t Transaction) Touches(accountID string) bool {
	return t.AccountID == accountID || (t.ToAccountID != "" && t.ToAccountID == accountID)
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

type CategoryType string

const (
	CategoryIncome  CategoryType = "income"
	CategoryExpense CategoryType = "expense"
)

type Category struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Type  CategoryType `json:"type"`
	Icon  string       `json:"icon,omitempty"`
	Color string       `json:"color,omitempty"`
	Order int          `json:"order"`
}

// Event groups transactions through Transaction.EventID.
type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	StartDate   string    `json:"startDate,omitempty"`
	EndDate     string    `json:"endDate,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// EventLog is a manual spend note scoped to an event. It never touches balances.
type EventLog struct {
	ID      string          `json:"id"`
	EventID string          `json:"eventId"`
	Title   string          `json:"title"`
	Amount  decimal.Decimal `json:"amount"`
	Date    time.Time       `json:"date"`
	Note    string          `json:"note,omitempty"`
}

// EventPlan is a planned (budgeted) item scoped to an event.
type EventPlan struct {
	ID      string          `json:"id"`
	EventID string          `json:"eventId"`
	Title   string          `json:"title"`
	Amount  decimal.Decimal `json:"amount"`
	Done    bool            `json:"done,omitempty"`
}

// InvestmentLog records a buy/sell against an investment account holding.
type InvestmentLog struct {
	ID        string          `json:"id"`
	AccountID string          `json:"accountId"`
	HoldingID string          `json:"holdingId,omitempty"`
	Action    string          `json:"action"`
	Quantity  decimal.Decimal `json:"quantity"`
	Rate      decimal.Decimal `json:"rate"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
	Note      string          `json:"note,omitempty"`
}

// =============================================================================
// MANDATE
// =============================================================================

// Mandate is a standing monthly transfer instruction.
//
// LastRunDate and LastSkippedDate hold ISO dates (YYYY-MM-DD). Only their
// year-month prefix matters for scheduling.
type Mandate struct {
	ID                   string          `json:"id"`
	SourceAccountID      string          `json:"sourceAccountId"`
	DestinationAccountID string          `json:"destinationAccountId"`
	Amount               decimal.Decimal `json:"amount"`
	DayOfMonth           int             `json:"dayOfMonth"`
	Description          string          `json:"description"`
	IsEnabled            bool            `json:"isEnabled"`
	LastRunDate          string          `json:"lastRunDate,omitempty"`
	LastSkippedDate      string          `json:"lastSkippedDate,omitempty"`
	Order                int             `json:"order"`
}

// =============================================================================
// AUDIT
// =============================================================================

type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
)

const EntityTransaction = "transaction"

type AuditDetails struct {
	Previous *Transaction `json:"previous,omitempty"`
	Current  *Transaction `json:"current,omitempty"`
}

type AuditEntry struct {
	ID         string       `json:"id"`
	Timestamp  time.Time    `json:"timestamp"`
	Action     AuditAction  `json:"action"`
	EntityType string       `json:"entityType"`
	EntityID   string       `json:"entityId"`
	Details    AuditDetails `json:"details"`
}

// Settings holds primitive host flags and strings (currency, theme, ...).
type Settings map[string]any
