package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/money-ledger/ledger"
	"github.com/warp/money-ledger/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var testNow = time.Date(2025, time.March, 5, 9, 30, 0, 0, time.UTC)

func newTestLedger(t *testing.T) (*ledger.Ledger, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	n := 0
	l := ledger.New(mem,
		ledger.WithClock(func() time.Time { return testNow }),
		ledger.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)
	t.Cleanup(l.Close)
	return l, mem
}

func mustAccount(t *testing.T, l *ledger.Ledger, id string, typ ledger.AccountType, balance int64) ledger.Account {
	t.Helper()
	a, err := l.AddAccount(ledger.Account{ID: id, Name: id, Type: typ, Balance: dec(balance)})
	require.NoError(t, err)
	return a
}

func balance(t *testing.T, l *ledger.Ledger, id string) string {
	t.Helper()
	a, ok := l.Account(id)
	require.True(t, ok, "account %s", id)
	return a.Balance.String()
}

func storedBalance(t *testing.T, l *ledger.Ledger, mem *store.Memory, id string) string {
	t.Helper()
	require.NoError(t, l.Flush(context.Background()))
	var a ledger.Account
	ok, err := mem.Get(ledger.CollAccounts, id, &a)
	require.NoError(t, err)
	require.True(t, ok, "stored account %s", id)
	return a.Balance.String()
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestLedger_LoanRepaymentThenEdit(t *testing.T) {
	// GIVEN: savings at 1000 and a loan at 5000
	l, mem := newTestLedger(t)
	mustAccount(t, l, "S", ledger.AccountSavings, 1000)
	mustAccount(t, l, "L", ledger.AccountLoan, 5000)

	// WHEN: 500 is transferred from savings to the loan
	tx, err := l.AddTransaction(ledger.Transaction{
		AccountID: "S", ToAccountID: "L", Amount: dec(500), Type: ledger.TxTransfer,
	})
	require.NoError(t, err)

	// THEN: both balances drop by 500
	assert.Equal(t, "500", balance(t, l, "S"))
	assert.Equal(t, "4500", balance(t, l, "L"))

	// WHEN: the repayment is edited to 800
	edited := tx
	edited.Amount = dec(800)
	_, err = l.EditTransaction(tx.ID, edited)
	require.NoError(t, err)

	// THEN: balances converge as if 800 had been posted originally
	// (revert the 500 back to 5000, then repay 800)
	assert.Equal(t, "200", balance(t, l, "S"))
	assert.Equal(t, "4200", balance(t, l, "L"))
	assert.Equal(t, "200", storedBalance(t, l, mem, "S"))
	assert.Equal(t, "4200", storedBalance(t, l, mem, "L"))

	audit := l.AuditTrail()
	require.Len(t, audit, 2)
	assert.Equal(t, ledger.AuditUpdate, audit[0].Action)
	assert.Equal(t, "500", audit[0].Details.Previous.Amount.String())
	assert.Equal(t, "800", audit[0].Details.Current.Amount.String())
	assert.Equal(t, ledger.AuditCreate, audit[1].Action)
	assert.Nil(t, audit[1].Details.Previous)
}

func TestLedger_AddTransaction_DefaultsAndAudit(t *testing.T) {
	l, mem := newTestLedger(t)
	mustAccount(t, l, "A", ledger.AccountSavings, 100)

	tx, err := l.AddTransaction(ledger.Transaction{AccountID: "A", Amount: dec(40), Type: ledger.TxIncome})
	require.NoError(t, err)

	assert.NotEmpty(t, tx.ID)
	assert.True(t, tx.Date.Equal(testNow))
	assert.Equal(t, "140", balance(t, l, "A"))

	require.NoError(t, l.Flush(context.Background()))
	assert.Equal(t, 1, mem.Len(ledger.CollTransactions))
	assert.Equal(t, 1, mem.Len(ledger.CollAuditTrails))

	entry := l.AuditTrail()[0]
	assert.Equal(t, ledger.AuditCreate, entry.Action)
	assert.Equal(t, ledger.EntityTransaction, entry.EntityType)
	assert.Equal(t, tx.ID, entry.EntityID)
	require.NotNil(t, entry.Details.Current)
	assert.Equal(t, tx.ID, entry.Details.Current.ID)
}

func TestLedger_AddTransaction_Validation(t *testing.T) {
	l, _ := newTestLedger(t)
	mustAccount(t, l, "A", ledger.AccountSavings, 100)
	mustAccount(t, l, "B", ledger.AccountSavings, 100)

	tests := []struct {
		name  string
		tx    ledger.Transaction
		field string
	}{
		{"zero amount", ledger.Transaction{AccountID: "A", Amount: dec(0), Type: ledger.TxExpense}, "amount"},
		{"negative amount", ledger.Transaction{AccountID: "A", Amount: dec(-5), Type: ledger.TxExpense}, "amount"},
		{"unknown type", ledger.Transaction{AccountID: "A", Amount: dec(5), Type: "refund"}, "type"},
		{"transfer without destination", ledger.Transaction{AccountID: "A", Amount: dec(5), Type: ledger.TxTransfer}, "toAccountId"},
		{"transfer to self", ledger.Transaction{AccountID: "A", ToAccountID: "A", Amount: dec(5), Type: ledger.TxTransfer}, "toAccountId"},
		{"destination on expense", ledger.Transaction{AccountID: "A", ToAccountID: "B", Amount: dec(5), Type: ledger.TxExpense}, "toAccountId"},
		{"unknown source", ledger.Transaction{AccountID: "X", Amount: dec(5), Type: ledger.TxIncome}, "accountId"},
		{"unknown destination", ledger.Transaction{AccountID: "A", ToAccountID: "X", Amount: dec(5), Type: ledger.TxTransfer}, "toAccountId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.AddTransaction(tt.tx)
			require.ErrorIs(t, err, ledger.ErrValidation)

			var verr *ledger.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.True(t, ledger.IsClientError(err))
		})
	}

	// Nothing was recorded
	assert.Empty(t, l.Transactions())
	assert.Empty(t, l.AuditTrail())
	assert.Equal(t, "100", balance(t, l, "A"))
	assert.Equal(t, "100", balance(t, l, "B"))
}

func TestLedger_EditTransaction_ChangesTypeAndAccounts(t *testing.T) {
	// GIVEN: an expense of 100 from A
	l, _ := newTestLedger(t)
	mustAccount(t, l, "A", ledger.AccountSavings, 1000)
	mustAccount(t, l, "B", ledger.AccountCash, 1000)
	mustAccount(t, l, "C", ledger.AccountSavings, 1000)

	tx, err := l.AddTransaction(ledger.Transaction{AccountID: "A", Amount: dec(100), Type: ledger.TxExpense})
	require.NoError(t, err)

	// WHEN: it becomes a 250 transfer from B to C
	_, err = l.EditTransaction(tx.ID, ledger.Transaction{
		AccountID: "B", ToAccountID: "C", Amount: dec(250), Type: ledger.TxTransfer,
	})
	require.NoError(t, err)

	// THEN: A is restored and only the new effect remains
	assert.Equal(t, "1000", balance(t, l, "A"))
	assert.Equal(t, "750", balance(t, l, "B"))
	assert.Equal(t, "1250", balance(t, l, "C"))

	got, ok := l.Transaction(tx.ID)
	require.True(t, ok)
	assert.True(t, got.Date.Equal(tx.Date), "date preserved")
	assert.Equal(t, ledger.TxTransfer, got.Type)
}

func TestLedger_EditTransaction_ToggleExclude(t *testing.T) {
	l, _ := newTestLedger(t)
	mustAccount(t, l, "A", ledger.AccountSavings, 1000)

	tx, err := l.AddTransaction(ledger.Transaction{AccountID: "A", Amount: dec(100), Type: ledger.TxExpense})
	require.NoError(t, err)
	assert.Equal(t, "900", balance(t, l, "A"))

	excluded := tx
	excluded.ExcludeFromBalance = true
	_, err = l.EditTransaction(tx.ID, excluded)
	require.NoError(t, err)
	assert.Equal(t, "1000", balance(t, l, "A"))

	_, err = l.EditTransaction(tx.ID, tx)
	require.NoError(t, err)
	assert.Equal(t, "900", balance(t, l, "A"))
}

func TestLedger_EditTransaction_ConvergesWithDirectPost(t *testing.T) {
	seed := func(t *testing.T) *ledger.Ledger {
		l, _ := newTestLedger(t)
		mustAccount(t, l, "S", ledger.AccountSavings, 1000)
		mustAccount(t, l, "C", ledger.AccountCash, 300)
		mustAccount(t, l, "L", ledger.AccountLoan, 5000)
		return l
	}
	tx := func(typ ledger.TransactionType, from, to string, amount int64, exclude bool) ledger.Transaction {
		return ledger.Transaction{AccountID: from, ToAccountID: to, Amount: dec(amount), Type: typ, ExcludeFromBalance: exclude}
	}

	tests := []struct {
		name   string
		first  ledger.Transaction
		second ledger.Transaction
	}{
		{"repayment amount", tx(ledger.TxTransfer, "S", "L", 500, false), tx(ledger.TxTransfer, "S", "L", 800, false)},
		{"transfer reversed", tx(ledger.TxTransfer, "S", "L", 500, false), tx(ledger.TxTransfer, "L", "S", 500, false)},
		{"loan source expense to income", tx(ledger.TxExpense, "L", "", 200, false), tx(ledger.TxIncome, "L", "", 200, false)},
		{"expense moves to loan", tx(ledger.TxExpense, "S", "", 150, false), tx(ledger.TxExpense, "L", "", 150, false)},
		{"expense becomes transfer", tx(ledger.TxExpense, "C", "", 100, false), tx(ledger.TxTransfer, "C", "L", 250, false)},
		{"exclude switched on", tx(ledger.TxTransfer, "S", "L", 400, false), tx(ledger.TxTransfer, "S", "L", 400, true)},
		{"exclude switched off", tx(ledger.TxIncome, "S", "", 75, true), tx(ledger.TxIncome, "S", "", 90, false)},
		{"excluded loan transfer", tx(ledger.TxTransfer, "C", "L", 60, true), tx(ledger.TxTransfer, "S", "C", 60, true)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN: one ledger that posts first and edits it into second
			edited := seed(t)
			posted, err := edited.AddTransaction(tt.first)
			require.NoError(t, err)
			_, err = edited.EditTransaction(posted.ID, tt.second)
			require.NoError(t, err)

			// AND: another that posts second directly
			direct := seed(t)
			_, err = direct.AddTransaction(tt.second)
			require.NoError(t, err)

			// THEN: every balance matches
			for _, id := range []string{"S", "C", "L"} {
				assert.Equal(t, balance(t, direct, id), balance(t, edited, id), "account %s", id)
			}
		})
	}
}

func TestLedger_EditTransaction_InvalidLeavesStateUntouched(t *testing.T) {
	l, _ := newTestLedger(t)
	mustAccount(t, l, "A", ledger.AccountSavings, 1000)

	tx, err := l.AddTransaction(ledger.Transaction{AccountID: "A", Amount: dec(100), Type: ledger.TxExpense})
	require.NoError(t, err)

	bad := tx
	bad.Amount = dec(0)
	_, err = l.EditTransaction(tx.ID, bad)
	require.ErrorIs(t, err, ledger.ErrValidation)

	assert.Equal(t, "900", balance(t, l, "A"))
	assert.Len(t, l.AuditTrail(), 1)
}

func TestLedger_EditAndDelete_NotFound(t *testing.T) {
	l, _ := newTestLedger(t)

	_, err := l.EditTransaction("nope", ledger.Transaction{AccountID: "A", Amount: dec(1), Type: ledger.TxIncome})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.True(t, ledger.IsNotFound(err))

	err = l.DeleteTransaction("nope")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.Empty(t, l.AuditTrail())
}

func TestLedger_DeleteTransaction_RevertsAndAudits(t *testing.T) {
	l, mem := newTestLedger(t)
	mustAccount(t, l, "A", ledger.AccountSavings, 1000)
	mustAccount(t, l, "L", ledger.AccountLoan, 3000)

	tx, err := l.AddTransaction(ledger.Transaction{
		AccountID: "A", ToAccountID: "L", Amount: dec(500), Type: ledger.TxTransfer,
	})
	require.NoError(t, err)

	require.NoError(t, l.DeleteTransaction(tx.ID))

	assert.Equal(t, "1000", balance(t, l, "A"))
	assert.Equal(t, "3000", balance(t, l, "L"))
	assert.Empty(t, l.Transactions())
	assert.Equal(t, "3000", storedBalance(t, l, mem, "L"))
	assert.Zero(t, mem.Len(ledger.CollTransactions))

	audit := l.AuditTrail()
	require.Len(t, audit, 2)
	assert.Equal(t, ledger.AuditDelete, audit[0].Action)
	require.NotNil(t, audit[0].Details.Previous)
	assert.Nil(t, audit[0].Details.Current)
}

func TestLedger_DanglingTransactionDelete(t *testing.T) {
	// A transaction whose counterpart account vanished still deletes cleanly.
	l, _ := newTestLedger(t)
	mustAccount(t, l, "A", ledger.AccountSavings, 1000)
	mustAccount(t, l, "B", ledger.AccountSavings, 0)

	tx, err := l.AddTransaction(ledger.Transaction{
		AccountID: "A", ToAccountID: "B", Amount: dec(100), Type: ledger.TxTransfer,
	})
	require.NoError(t, err)

	// Import a state where B is gone but the transfer survives
	snap := l.ExportSnapshot()
	snap.Accounts = snap.Accounts[:1]
	require.NoError(t, l.ImportData(context.Background(), snap))

	require.NoError(t, l.DeleteTransaction(tx.ID))
	assert.Equal(t, "1000", balance(t, l, "A"))
	assert.Equal(t, ledger.UnknownAccountName, l.AccountName("B"))
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestLedger_AddAccount_Defaults(t *testing.T) {
	l, _ := newTestLedger(t)

	a, err := l.AddAccount(ledger.Account{
		Name: "Broker", Type: ledger.AccountStock,
		Holdings: []ledger.Holding{{ID: "h1", Name: "ACME", Quantity: dec(10), PurchaseRate: dec(15)}},
	})
	require.NoError(t, err)

	assert.Equal(t, "id-1", a.ID)
	assert.Equal(t, ledger.GroupInvestment, a.Group)
	assert.True(t, a.InReports())
	require.Len(t, a.Holdings, 1)
	assert.Equal(t, "150", a.Holdings[0].PurchasePrice.String())

	b, err := l.AddAccount(ledger.Account{Name: "Wallet", Type: ledger.AccountCash})
	require.NoError(t, err)
	assert.Equal(t, ledger.GroupBanking, b.Group)
	assert.Equal(t, 1, b.Order)
}

func TestLedger_AddAccount_Validation(t *testing.T) {
	l, _ := newTestLedger(t)

	_, err := l.AddAccount(ledger.Account{Type: ledger.AccountCash})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	_, err = l.AddAccount(ledger.Account{Name: "X", Type: "crypto"})
	assert.ErrorIs(t, err, ledger.ErrValidation)

	mustAccount(t, l, "A", ledger.AccountCash, 0)
	_, err = l.AddAccount(ledger.Account{ID: "A", Name: "A", Type: ledger.AccountCash})
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestLedger_UpdateAccount_BalanceAsGiven(t *testing.T) {
	l, mem := newTestLedger(t)
	mustAccount(t, l, "A", ledger.AccountSavings, 1000)

	newBalance := dec(42)
	name := "Renamed"
	a, err := l.UpdateAccount("A", ledger.AccountPatch{Balance: &newBalance, Name: &name})
	require.NoError(t, err)

	assert.Equal(t, "Renamed", a.Name)
	assert.Equal(t, "42", balance(t, l, "A"))
	assert.Equal(t, "42", storedBalance(t, l, mem, "A"))
	assert.Empty(t, l.AuditTrail())

	_, err = l.UpdateAccount("nope", ledger.AccountPatch{Name: &name})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestLedger_DeleteAccount_CascadesWithoutRevertingCounterpart(t *testing.T) {
	// GIVEN: A sends 300 to B, and B has its own income
	l, mem := newTestLedger(t)
	mustAccount(t, l, "A", ledger.AccountSavings, 1000)
	mustAccount(t, l, "B", ledger.AccountSavings, 0)

	_, err := l.AddTransaction(ledger.Transaction{AccountID: "A", ToAccountID: "B", Amount: dec(300), Type: ledger.TxTransfer})
	require.NoError(t, err)
	_, err = l.AddTransaction(ledger.Transaction{AccountID: "A", Amount: dec(50), Type: ledger.TxExpense})
	require.NoError(t, err)
	income, err := l.AddTransaction(ledger.Transaction{AccountID: "B", Amount: dec(20), Type: ledger.TxIncome})
	require.NoError(t, err)

	// WHEN: A is deleted
	removed, err := l.DeleteAccount("A")
	require.NoError(t, err)

	// THEN: every transaction touching A is gone, B keeps the transfer effect
	assert.Equal(t, 2, removed)
	txs := l.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, income.ID, txs[0].ID)
	assert.Equal(t, "320", balance(t, l, "B"))

	require.NoError(t, l.Flush(context.Background()))
	assert.Equal(t, 1, mem.Len(ledger.CollAccounts))
	assert.Equal(t, 1, mem.Len(ledger.CollTransactions))

	_, err = l.DeleteAccount("A")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestLedger_AccountName(t *testing.T) {
	l, _ := newTestLedger(t)
	mustAccount(t, l, "A", ledger.AccountSavings, 0)

	assert.Equal(t, "A", l.AccountName("A"))
	assert.Equal(t, ledger.UnknownAccountName, l.AccountName("ghost"))
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func TestLedger_PersistenceFailureIsNotRolledBack(t *testing.T) {
	// GIVEN: a store that rejects transaction inserts
	l, mem := newTestLedger(t)
	mustAccount(t, l, "A", ledger.AccountSavings, 1000)
	diskFull := errors.New("disk full")
	mem.FailOn("add", ledger.CollTransactions, diskFull)

	// WHEN: a transaction is added
	tx, err := l.AddTransaction(ledger.Transaction{AccountID: "A", Amount: dec(100), Type: ledger.TxExpense})

	// THEN: the call succeeds and memory keeps the change
	require.NoError(t, err)
	require.NoError(t, l.Flush(context.Background()))
	assert.Equal(t, "900", balance(t, l, "A"))
	assert.Len(t, l.Transactions(), 1)

	// AND: the failure surfaces on the error channel
	select {
	case perr := <-l.Errors():
		assert.ErrorIs(t, perr, ledger.ErrPersistence)
		assert.ErrorIs(t, perr, diskFull)
		var pe *ledger.PersistenceError
		require.ErrorAs(t, perr, &pe)
		assert.Equal(t, "add", pe.Op)
		assert.Equal(t, ledger.CollTransactions, pe.Collection)
		assert.Equal(t, tx.ID, pe.ID)
	default:
		t.Fatal("expected a persistence error")
	}

	// Balance and audit writes went through
	assert.Equal(t, "900", storedBalance(t, l, mem, "A"))
	assert.Zero(t, mem.Len(ledger.CollTransactions))
	assert.Equal(t, 1, mem.Len(ledger.CollAuditTrails))
}

func TestLedger_Load(t *testing.T) {
	ctx := context.Background()
	l, mem := newTestLedger(t)
	mustAccount(t, l, "A", ledger.AccountSavings, 100)
	mustAccount(t, l, "B", ledger.AccountCash, 0)
	require.NoError(t, l.Reorder(ledger.CollAccounts, []string{"B", "A"}))
	_, err := l.AddTransaction(ledger.Transaction{AccountID: "A", Amount: dec(10), Type: ledger.TxIncome})
	require.NoError(t, err)
	require.NoError(t, l.SetSetting("currency", "INR"))
	require.NoError(t, l.Flush(ctx))

	reloaded := ledger.New(mem)
	t.Cleanup(reloaded.Close)
	require.NoError(t, reloaded.Load(ctx))

	accounts := reloaded.Accounts()
	require.Len(t, accounts, 2)
	assert.Equal(t, "B", accounts[0].ID)
	assert.Equal(t, "A", accounts[1].ID)
	assert.Equal(t, "110", accounts[1].Balance.String())
	assert.Len(t, reloaded.Transactions(), 1)
	assert.Equal(t, "INR", reloaded.Settings()["currency"])
}

func TestLedger_Load_StoreFailure(t *testing.T) {
	mem := store.NewMemory()
	mem.FailOn("get_all", ledger.CollMandates, errors.New("offline"))
	l := ledger.New(mem)
	t.Cleanup(l.Close)

	err := l.Load(context.Background())
	require.ErrorIs(t, err, ledger.ErrPersistence)
}

func TestSum(t *testing.T) {
	accounts := []ledger.Account{
		acct("a", ledger.AccountSavings, 100),
		acct("b", ledger.AccountCash, 250),
	}
	assert.Equal(t, "350", ledger.Sum(accounts).String())
	assert.True(t, ledger.Sum(nil).IsZero())
}

func TestNetWorth_LoansCountAsDebt(t *testing.T) {
	accounts := []ledger.Account{
		acct("s", ledger.AccountSavings, 500),
		acct("c", ledger.AccountCash, 250),
		acct("l", ledger.AccountLoan, 4500),
	}
	assert.Equal(t, "-3750", ledger.NetWorth(accounts).String())
	assert.Equal(t, "5250", ledger.Sum(accounts).String())
	assert.True(t, ledger.NetWorth(nil).IsZero())
}
