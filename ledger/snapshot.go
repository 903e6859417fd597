/*
snapshot.go - Backup snapshot import/export

EXPORT:
  Read-only aggregation of every collection plus settings, stamped with
  exportDate and version. No side effects.

IMPORT:
  Wholesale replace. Every backing collection is cleared, then every
  collection is bulk-written from the snapshot, and only then is memory
  replaced. Imported balances are trusted as given: the Balance Engine
  and Audit Recorder do not run.

  NOT ATOMIC. If a bulk write fails after the clears succeeded, the
  backing store is left partly empty (ImportPartialFailureError) while
  memory still holds the pre-import state. Take a backup immediately
  before importing.
*/
package ledger

import (
	"context"
	"errors"
	"time"
)

// SnapshotVersion is written into every export.
const SnapshotVersion = "1.0"

type Snapshot struct {
	Accounts       []Account       `json:"accounts"`
	Transactions   []Transaction   `json:"transactions"`
	Categories     []Category      `json:"categories"`
	Events         []Event         `json:"events"`
	Mandates       []Mandate       `json:"mandates"`
	AuditTrails    []AuditEntry    `json:"auditTrails"`
	InvestmentLogs []InvestmentLog `json:"investmentLogs,omitempty"`
	EventLogs      []EventLog      `json:"eventLogs,omitempty"`
	EventPlans     []EventPlan     `json:"eventPlans,omitempty"`
	Settings       Settings        `json:"settings"`
	ExportDate     string          `json:"exportDate"`
	Version        string          `json:"version"`
}

// Validate applies the minimum a host checks before calling ImportData:
// accounts, transactions and categories must be present.
func (s Snapshot) Validate() error {
	if s.Accounts == nil {
		return invalid("accounts", "missing from snapshot")
	}
	if s.Transactions == nil {
		return invalid("transactions", "missing from snapshot")
	}
	if s.Categories == nil {
		return invalid("categories", "missing from snapshot")
	}
	return nil
}

// ExportSnapshot returns a copy of the current state.
func (l *Ledger) ExportSnapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	accounts := make([]Account, len(l.accounts))
	for i, a := range l.accounts {
		accounts[i] = cloneAccount(a)
	}
	settings := make(Settings, len(l.settings))
	for k, v := range l.settings {
		settings[k] = v
	}
	return Snapshot{
		Accounts:       accounts,
		Transactions:   append([]Transaction{}, l.transactions...),
		Categories:     append([]Category{}, l.categories...),
		Events:         append([]Event{}, l.events...),
		Mandates:       append([]Mandate{}, l.mandates...),
		AuditTrails:    l.audit.Entries(),
		InvestmentLogs: append([]InvestmentLog(nil), l.investmentLogs...),
		EventLogs:      append([]EventLog(nil), l.eventLogs...),
		EventPlans:     append([]EventPlan(nil), l.eventPlans...),
		Settings:       settings,
		ExportDate:     l.now().UTC().Format(time.RFC3339),
		Version:        SnapshotVersion,
	}
}

// ImportData replaces all state with snap. See the file comment for the
// failure model.
func (l *Ledger) ImportData(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	docs, err := snapshotDocuments(snap)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Writes queued before the import must not land after the clears.
	if err := l.mirror.Flush(ctx); err != nil {
		return err
	}

	var cleared []Collection
	for _, c := range Collections {
		if err := l.store.Clear(ctx, c); err != nil {
			return &ImportPartialFailureError{Stage: "clear", Collection: c, Cleared: cleared, Err: err}
		}
		cleared = append(cleared, c)
	}
	for _, c := range Collections {
		if err := l.store.BulkReplace(ctx, c, docs[c]); err != nil {
			return &ImportPartialFailureError{Stage: "write", Collection: c, Cleared: cleared, Err: err}
		}
	}

	l.setState(snap)
	return nil
}

func snapshotDocuments(snap Snapshot) (map[Collection][]Document, error) {
	docs := make(map[Collection][]Document, len(Collections))
	var errs []error
	keep := func(c Collection, d []Document, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		docs[c] = d
	}

	d, err := encodeAll(snap.Accounts, func(a Account) string { return a.ID })
	keep(CollAccounts, d, err)
	d, err = encodeAll(snap.Transactions, func(t Transaction) string { return t.ID })
	keep(CollTransactions, d, err)
	d, err = encodeAll(snap.Categories, func(c Category) string { return c.ID })
	keep(CollCategories, d, err)
	d, err = encodeAll(snap.Events, func(e Event) string { return e.ID })
	keep(CollEvents, d, err)
	d, err = encodeAll(snap.EventLogs, func(e EventLog) string { return e.ID })
	keep(CollEventLogs, d, err)
	d, err = encodeAll(snap.EventPlans, func(e EventPlan) string { return e.ID })
	keep(CollEventPlans, d, err)
	d, err = encodeAll(snap.InvestmentLogs, func(il InvestmentLog) string { return il.ID })
	keep(CollInvestmentLogs, d, err)
	d, err = encodeAll(snap.Mandates, func(m Mandate) string { return m.ID })
	keep(CollMandates, d, err)
	d, err = encodeAll(snap.AuditTrails, func(a AuditEntry) string { return a.ID })
	keep(CollAuditTrails, d, err)
	if snap.Settings != nil {
		doc, err := NewDocument(settingsDocID, snap.Settings)
		keep(CollSettings, []Document{doc}, err)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, invalid("snapshot", err.Error())
	}
	return docs, nil
}

// setState swaps in snap wholesale. Caller holds l.mu.
func (l *Ledger) setState(snap Snapshot) {
	l.accounts = make([]Account, len(snap.Accounts))
	for i, a := range snap.Accounts {
		l.accounts[i] = cloneAccount(a)
	}
	l.transactions = append([]Transaction(nil), snap.Transactions...)
	l.categories = append([]Category(nil), snap.Categories...)
	l.events = append([]Event(nil), snap.Events...)
	l.eventLogs = append([]EventLog(nil), snap.EventLogs...)
	l.eventPlans = append([]EventPlan(nil), snap.EventPlans...)
	l.investmentLogs = append([]InvestmentLog(nil), snap.InvestmentLogs...)
	l.mandates = append([]Mandate(nil), snap.Mandates...)
	l.audit.replace(snap.AuditTrails)
	l.settings = Settings{}
	for k, v := range snap.Settings {
		l.settings[k] = v
	}
}
