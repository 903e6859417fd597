package sqlite_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/money-ledger/ledger"
	"github.com/warp/money-ledger/store/sqlite"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func doc(t *testing.T, id string, v any) ledger.Document {
	t.Helper()
	d, err := ledger.NewDocument(id, v)
	require.NoError(t, err)
	return d
}

func decode(t *testing.T, d ledger.Document) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(d.Body, &m))
	return m
}

func TestStore_AddAndGetAll_InsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for _, id := range []string{"c", "a", "b"} {
		got, err := s.Add(ctx, ledger.CollAccounts, doc(t, id, map[string]any{"id": id}))
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}

	docs, err := s.GetAll(ctx, ledger.CollAccounts)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "c", docs[0].ID)
	assert.Equal(t, "a", docs[1].ID)
	assert.Equal(t, "b", docs[2].ID)

	// Other collections are isolated
	other, err := s.GetAll(ctx, ledger.CollTransactions)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStore_Add_DuplicateRejected(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Add(ctx, ledger.CollAccounts, doc(t, "a", map[string]any{"id": "a"}))
	require.NoError(t, err)
	_, err = s.Add(ctx, ledger.CollAccounts, doc(t, "a", map[string]any{"id": "a"}))
	assert.Error(t, err)
}

func TestStore_Update_MergesAndRemovesFields(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Add(ctx, ledger.CollTransactions, doc(t, "tx-1", map[string]any{
		"id": "tx-1", "amount": "100", "eventId": "ev-1", "note": "lunch",
	}))
	require.NoError(t, err)

	err = s.Update(ctx, ledger.CollTransactions, "tx-1", map[string]any{
		"amount":  decimal.NewFromInt(250),
		"eventId": nil,
	})
	require.NoError(t, err)

	docs, err := s.GetAll(ctx, ledger.CollTransactions)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	body := decode(t, docs[0])
	assert.Equal(t, "250", body["amount"])
	assert.Equal(t, "lunch", body["note"])
	assert.NotContains(t, body, "eventId")
}

func TestStore_Update_MissingDocument(t *testing.T) {
	s := newStore(t)
	err := s.Update(context.Background(), ledger.CollAccounts, "nope", map[string]any{"balance": "1"})
	assert.ErrorIs(t, err, ledger.ErrDocumentNotFound)
}

func TestStore_DeleteWhere_CascadesByField(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	txs := []map[string]any{
		{"id": "t1", "accountId": "acc-1"},
		{"id": "t2", "accountId": "acc-2", "toAccountId": "acc-1"},
		{"id": "t3", "accountId": "acc-2"},
	}
	for _, tx := range txs {
		_, err := s.Add(ctx, ledger.CollTransactions, doc(t, tx["id"].(string), tx))
		require.NoError(t, err)
	}

	n, err := s.DeleteWhere(ctx, ledger.CollTransactions, "accountId", "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.DeleteWhere(ctx, ledger.CollTransactions, "toAccountId", "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	docs, err := s.GetAll(ctx, ledger.CollTransactions)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "t3", docs[0].ID)
}

func TestStore_DeleteWhere_RejectsPathInjection(t *testing.T) {
	s := newStore(t)
	_, err := s.DeleteWhere(context.Background(), ledger.CollTransactions, "a') OR 1=1 --", "x")
	assert.Error(t, err)
}

func TestStore_BulkReplace(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Add(ctx, ledger.CollCategories, doc(t, "old", map[string]any{"id": "old"}))
	require.NoError(t, err)

	err = s.BulkReplace(ctx, ledger.CollCategories, []ledger.Document{
		doc(t, "n1", map[string]any{"id": "n1"}),
		doc(t, "n2", map[string]any{"id": "n2"}),
	})
	require.NoError(t, err)

	docs, err := s.GetAll(ctx, ledger.CollCategories)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "n1", docs[0].ID)
	assert.Equal(t, "n2", docs[1].ID)
}

func TestStore_BulkReplace_RollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Add(ctx, ledger.CollCategories, doc(t, "old", map[string]any{"id": "old"}))
	require.NoError(t, err)

	// Duplicate ids inside the batch fail the second insert
	err = s.BulkReplace(ctx, ledger.CollCategories, []ledger.Document{
		doc(t, "dup", map[string]any{"id": "dup"}),
		doc(t, "dup", map[string]any{"id": "dup"}),
	})
	require.Error(t, err)

	docs, err := s.GetAll(ctx, ledger.CollCategories)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "old", docs[0].ID)
}

func TestStore_ClearAndReset(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Add(ctx, ledger.CollAccounts, doc(t, "a", map[string]any{"id": "a"}))
	require.NoError(t, err)
	_, err = s.Add(ctx, ledger.CollMandates, doc(t, "m", map[string]any{"id": "m"}))
	require.NoError(t, err)

	require.NoError(t, s.Clear(ctx, ledger.CollAccounts))
	n, err := s.Count(ctx, ledger.CollAccounts)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = s.Count(ctx, ledger.CollMandates)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Reset(ctx))
	n, err = s.Count(ctx, ledger.CollMandates)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_LedgerRoundTrip(t *testing.T) {
	// GIVEN: a ledger mirrored to SQLite with an account and an expense
	ctx := context.Background()
	s := newStore(t)
	l := ledger.New(s)
	defer l.Close()

	acc, err := l.AddAccount(ledger.Account{
		Name: "Savings", Type: ledger.AccountSavings, Balance: decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	_, err = l.AddTransaction(ledger.Transaction{
		AccountID: acc.ID, Amount: decimal.NewFromInt(300), Type: ledger.TxExpense, Category: "Food",
	})
	require.NoError(t, err)
	require.NoError(t, l.Flush(ctx))

	// WHEN: a fresh ledger loads from the same store
	reloaded := ledger.New(s)
	defer reloaded.Close()
	require.NoError(t, reloaded.Load(ctx))

	// THEN: balances, transactions and audit entries survive
	got, ok := reloaded.Account(acc.ID)
	require.True(t, ok)
	assert.Equal(t, "700", got.Balance.String())
	assert.Len(t, reloaded.Transactions(), 1)
	assert.Len(t, reloaded.AuditTrail(), 1)
}
