package ledger_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/money-ledger/ledger"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func acct(id string, typ ledger.AccountType, balance int64) ledger.Account {
	return ledger.Account{ID: id, Name: id, Type: typ, Group: ledger.InferGroup(typ), Balance: dec(balance)}
}

func balanceOf(accounts []ledger.Account, id string) string {
	for _, a := range accounts {
		if a.ID == id {
			return a.Balance.String()
		}
	}
	return "missing"
}

// =============================================================================
// SIGN RULES
// =============================================================================

func TestLegDelta_SignRules(t *testing.T) {
	savings := acct("s", ledger.AccountSavings, 0)
	loan := acct("l", ledger.AccountLoan, 0)

	tests := []struct {
		name string
		acct ledger.Account
		typ  ledger.TransactionType
		leg  ledger.Leg
		want int64
	}{
		{"income on savings", savings, ledger.TxIncome, ledger.LegSource, 100},
		{"income on loan", loan, ledger.TxIncome, ledger.LegSource, 100},
		{"expense from savings", savings, ledger.TxExpense, ledger.LegSource, -100},
		{"expense from loan is new debt", loan, ledger.TxExpense, ledger.LegSource, 100},
		{"transfer out of savings", savings, ledger.TxTransfer, ledger.LegSource, -100},
		{"transfer out of loan", loan, ledger.TxTransfer, ledger.LegSource, 100},
		{"transfer into savings", savings, ledger.TxTransfer, ledger.LegDestination, 100},
		{"transfer into loan is repayment", loan, ledger.TxTransfer, ledger.LegDestination, -100},
		{"destination leg of expense", savings, ledger.TxExpense, ledger.LegDestination, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := ledger.Transaction{Type: tt.typ, Amount: dec(100)}
			got := ledger.LegDelta(tt.acct, tx, tt.leg)
			assert.True(t, got.Equal(dec(tt.want)), "got %s want %d", got, tt.want)
		})
	}
}

func TestApply_TransferConservesTotalBetweenAssets(t *testing.T) {
	accounts := []ledger.Account{
		acct("a", ledger.AccountSavings, 1000),
		acct("b", ledger.AccountCash, 200),
	}
	before := ledger.Sum(accounts)

	touched := ledger.Apply(accounts, ledger.Transaction{
		AccountID: "a", ToAccountID: "b", Amount: dec(300), Type: ledger.TxTransfer,
	})

	assert.Equal(t, []string{"a", "b"}, touched)
	assert.Equal(t, "700", balanceOf(accounts, "a"))
	assert.Equal(t, "500", balanceOf(accounts, "b"))
	assert.True(t, before.Equal(ledger.Sum(accounts)))
}

func TestApply_LoanRepaymentReducesBoth(t *testing.T) {
	accounts := []ledger.Account{
		acct("s", ledger.AccountSavings, 1000),
		acct("l", ledger.AccountLoan, 5000),
	}

	ledger.Apply(accounts, ledger.Transaction{
		AccountID: "s", ToAccountID: "l", Amount: dec(500), Type: ledger.TxTransfer,
	})

	assert.Equal(t, "500", balanceOf(accounts, "s"))
	assert.Equal(t, "4500", balanceOf(accounts, "l"))
}

func TestApply_ExcludeFromBalance(t *testing.T) {
	accounts := []ledger.Account{
		acct("a", ledger.AccountSavings, 1000),
		acct("b", ledger.AccountSavings, 0),
	}

	touched := ledger.Apply(accounts, ledger.Transaction{
		AccountID: "a", ToAccountID: "b", Amount: dec(300), Type: ledger.TxTransfer, ExcludeFromBalance: true,
	})

	assert.Empty(t, touched)
	assert.Equal(t, "1000", balanceOf(accounts, "a"))
	assert.Equal(t, "0", balanceOf(accounts, "b"))
}

func TestApply_DanglingLegIsDropped(t *testing.T) {
	accounts := []ledger.Account{acct("a", ledger.AccountSavings, 1000)}

	touched := ledger.Apply(accounts, ledger.Transaction{
		AccountID: "a", ToAccountID: "gone", Amount: dec(100), Type: ledger.TxTransfer,
	})

	assert.Equal(t, []string{"a"}, touched)
	assert.Equal(t, "900", balanceOf(accounts, "a"))
}

func TestRevert_UndoesApply(t *testing.T) {
	txs := []ledger.Transaction{
		{AccountID: "s", Amount: dec(75), Type: ledger.TxIncome},
		{AccountID: "s", Amount: dec(75), Type: ledger.TxExpense},
		{AccountID: "l", Amount: dec(75), Type: ledger.TxExpense},
		{AccountID: "s", ToAccountID: "l", Amount: dec(75), Type: ledger.TxTransfer},
		{AccountID: "l", ToAccountID: "s", Amount: dec(75), Type: ledger.TxTransfer},
		{AccountID: "s", ToAccountID: "l", Amount: dec(75), Type: ledger.TxTransfer, ExcludeFromBalance: true},
	}

	for _, tx := range txs {
		accounts := []ledger.Account{
			acct("s", ledger.AccountSavings, 1000),
			acct("l", ledger.AccountLoan, 5000),
		}
		ledger.Apply(accounts, tx)
		ledger.Revert(accounts, tx)

		assert.Equal(t, "1000", balanceOf(accounts, "s"), "tx %+v", tx)
		assert.Equal(t, "5000", balanceOf(accounts, "l"), "tx %+v", tx)
	}
}

func TestEffects_OnlyResolvableAccounts(t *testing.T) {
	lookup := func(id string) (ledger.Account, bool) {
		if id == "s" {
			return acct("s", ledger.AccountSavings, 0), true
		}
		return ledger.Account{}, false
	}

	effects := ledger.Effects(ledger.Transaction{
		AccountID: "missing", ToAccountID: "s", Amount: dec(10), Type: ledger.TxTransfer,
	}, lookup)

	if assert.Len(t, effects, 1) {
		assert.Equal(t, "s", effects[0].AccountID)
		assert.Equal(t, ledger.LegDestination, effects[0].Leg)
		assert.True(t, effects[0].Delta.Equal(dec(10)))
	}
}
