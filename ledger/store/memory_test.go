package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/money-ledger/ledger"
	"github.com/warp/money-ledger/ledger/store"
)

func add(t *testing.T, m *store.Memory, c ledger.Collection, id string, body map[string]any) {
	t.Helper()
	d, err := ledger.NewDocument(id, body)
	require.NoError(t, err)
	_, err = m.Add(context.Background(), c, d)
	require.NoError(t, err)
}

func TestMemory_UpdateMergesAndRemoves(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	add(t, m, ledger.CollTransactions, "t1", map[string]any{"id": "t1", "eventId": "e1", "note": "x"})

	require.NoError(t, m.Update(ctx, ledger.CollTransactions, "t1", map[string]any{"eventId": nil, "note": "y"}))

	var got map[string]any
	ok, err := m.Get(ledger.CollTransactions, "t1", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "y", got["note"])
	assert.NotContains(t, got, "eventId")

	err = m.Update(ctx, ledger.CollTransactions, "missing", map[string]any{"note": "z"})
	assert.ErrorIs(t, err, ledger.ErrDocumentNotFound)
}

func TestMemory_DeleteWhereAndOrder(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	add(t, m, ledger.CollTransactions, "t1", map[string]any{"accountId": "a"})
	add(t, m, ledger.CollTransactions, "t2", map[string]any{"accountId": "b"})
	add(t, m, ledger.CollTransactions, "t3", map[string]any{"accountId": "a"})

	n, err := m.DeleteWhere(ctx, ledger.CollTransactions, "accountId", "a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	docs, err := m.GetAll(ctx, ledger.CollTransactions)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "t2", docs[0].ID)
}

func TestMemory_BulkReplaceRestoresOnBadDocument(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	add(t, m, ledger.CollCategories, "c1", map[string]any{"id": "c1"})

	err := m.BulkReplace(ctx, ledger.CollCategories, []ledger.Document{
		{ID: "c2", Body: []byte(`{"id":"c2"}`)},
		{ID: "c3", Body: []byte(`not json`)},
	})
	require.Error(t, err)
	assert.Equal(t, 1, m.Len(ledger.CollCategories))
}

func TestMemory_FailOn(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	boom := errors.New("boom")

	m.FailOn("clear", ledger.CollAccounts, boom)
	assert.ErrorIs(t, m.Clear(ctx, ledger.CollAccounts), boom)
	assert.NoError(t, m.Clear(ctx, ledger.CollMandates))

	m.FailOn("clear", ledger.CollAccounts, nil)
	assert.NoError(t, m.Clear(ctx, ledger.CollAccounts))
}
