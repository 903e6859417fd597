// Package store provides in-memory ledger.Store implementations.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/warp/money-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory document store (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	collections map[ledger.Collection]*collection

	// injected failures keyed by "op:collection", e.g. "bulk_replace:transactions"
	failOn map[string]error
}

// collection keeps documents in insertion order.
type collection struct {
	ids  []string
	docs map[string]map[string]any
}

func NewMemory() *Memory {
	return &Memory{
		collections: make(map[ledger.Collection]*collection),
		failOn:      make(map[string]error),
	}
}

// FailOn arms a failure for op on collection c. A nil err disarms it.
func (m *Memory) FailOn(op string, c ledger.Collection, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := op + ":" + string(c)
	if err == nil {
		delete(m.failOn, key)
		return
	}
	m.failOn[key] = err
}

func (m *Memory) injected(op string, c ledger.Collection) error {
	return m.failOn[op+":"+string(c)]
}

func (m *Memory) coll(c ledger.Collection) *collection {
	col, ok := m.collections[c]
	if !ok {
		col = &collection{docs: make(map[string]map[string]any)}
		m.collections[c] = col
	}
	return col
}

func (m *Memory) GetAll(_ context.Context, c ledger.Collection) ([]ledger.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.injected("get_all", c); err != nil {
		return nil, err
	}

	col, ok := m.collections[c]
	if !ok {
		return nil, nil
	}
	out := make([]ledger.Document, 0, len(col.ids))
	for _, id := range col.ids {
		body, err := json.Marshal(col.docs[id])
		if err != nil {
			return nil, fmt.Errorf("encode %s/%s: %w", c, id, err)
		}
		out = append(out, ledger.Document{ID: id, Body: body})
	}
	return out, nil
}

func (m *Memory) Add(_ context.Context, c ledger.Collection, doc ledger.Document) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("add", c); err != nil {
		return "", err
	}
	return doc.ID, m.addLocked(c, doc)
}

func (m *Memory) addLocked(c ledger.Collection, doc ledger.Document) error {
	var body map[string]any
	if err := json.Unmarshal(doc.Body, &body); err != nil {
		return fmt.Errorf("decode %s/%s: %w", c, doc.ID, err)
	}
	col := m.coll(c)
	if _, exists := col.docs[doc.ID]; exists {
		return fmt.Errorf("%s/%s already exists", c, doc.ID)
	}
	col.ids = append(col.ids, doc.ID)
	col.docs[doc.ID] = body
	return nil
}

// Update merges fields into the stored document. Nil values remove keys.
func (m *Memory) Update(_ context.Context, c ledger.Collection, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("update", c); err != nil {
		return err
	}

	col := m.coll(c)
	body, ok := col.docs[id]
	if !ok {
		return ledger.ErrDocumentNotFound
	}
	// Round-trip through JSON so stored values look like decoded documents.
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	var normalized map[string]any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return err
	}
	for k, v := range normalized {
		if v == nil {
			delete(body, k)
			continue
		}
		body[k] = v
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, c ledger.Collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("delete", c); err != nil {
		return err
	}
	m.coll(c).remove(func(docID string, _ map[string]any) bool { return docID == id })
	return nil
}

func (m *Memory) Clear(_ context.Context, c ledger.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("clear", c); err != nil {
		return err
	}
	delete(m.collections, c)
	return nil
}

// BulkReplace clears the collection and inserts docs. On a decode error the
// previous contents are restored.
func (m *Memory) BulkReplace(_ context.Context, c ledger.Collection, docs []ledger.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("bulk_replace", c); err != nil {
		return err
	}

	previous, had := m.collections[c]
	delete(m.collections, c)
	for _, d := range docs {
		if err := m.addLocked(c, d); err != nil {
			if had {
				m.collections[c] = previous
			} else {
				delete(m.collections, c)
			}
			return err
		}
	}
	return nil
}

func (m *Memory) DeleteWhere(_ context.Context, c ledger.Collection, field, value string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected("delete_where", c); err != nil {
		return 0, err
	}
	return m.coll(c).remove(func(_ string, body map[string]any) bool {
		s, ok := body[field].(string)
		return ok && s == value
	}), nil
}

// Len returns the number of documents in c.
func (m *Memory) Len(c ledger.Collection) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if col, ok := m.collections[c]; ok {
		return len(col.ids)
	}
	return 0
}

// Get decodes the stored document c/id into dst.
func (m *Memory) Get(c ledger.Collection, id string, dst any) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	col, ok := m.collections[c]
	if !ok {
		return false, nil
	}
	body, ok := col.docs[id]
	if !ok {
		return false, nil
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return true, err
	}
	return true, json.Unmarshal(raw, dst)
}

func (col *collection) remove(match func(id string, body map[string]any) bool) int {
	kept := col.ids[:0]
	removed := 0
	for _, id := range col.ids {
		if match(id, col.docs[id]) {
			delete(col.docs, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	col.ids = kept
	return removed
}
