/*
mandate.go - Mandate Scheduler

PURPOSE:
  Decides which standing monthly transfers are due and executes them
  through the normal transaction path, so a mandate-generated transfer is
  identical to a manual one apart from its "Mandate: " note prefix.

STATE MACHINE (per mandate, per calendar month):
  unsettled --run--> settled-run
  unsettled --skip-> settled-skipped
  Both settled states last for that month only. A new month makes the old
  stamps irrelevant; there is no explicit reset.

IDEMPOTENCY:
  IsDueToday is a pure predicate on (isEnabled, dayOfMonth, stamps).
  After a run, lastRunDate carries this month, so CheckAndRun can be
  called every minute without producing a second transfer.

ORDERING:
  CheckAndRun executes due mandates one after another under the ledger
  lock. Each run reads balances written by the previous one.
*/
package ledger

import (
	"errors"
	"fmt"
	"log"
	"time"
)

const (
	MandateCategory   = "Transfer"
	MandateNotePrefix = "Mandate: "
)

// IsDueToday reports whether m should run on today.
func IsDueToday(m Mandate, today time.Time) bool {
	if !m.IsEnabled || m.DayOfMonth != today.Day() {
		return false
	}
	return !stampedIn(m.LastRunDate, today) && !stampedIn(m.LastSkippedDate, today)
}

// IsSettled reports whether m already ran or was skipped in today's month.
func IsSettled(m Mandate, today time.Time) bool {
	return stampedIn(m.LastRunDate, today) || stampedIn(m.LastSkippedDate, today)
}

// =============================================================================
// MANDATE CRUD
// =============================================================================

func (l *Ledger) Mandates() []Mandate {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Mandate(nil), l.mandates...)
}

func (l *Ledger) Mandate(id string) (Mandate, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := l.mandateIndex(id)
	if i < 0 {
		return Mandate{}, false
	}
	return l.mandates[i], true
}

func (l *Ledger) AddMandate(m Mandate) (Mandate, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if m.ID == "" {
		m.ID = l.newID()
	}
	if l.mandateIndex(m.ID) >= 0 {
		return Mandate{}, invalid("id", "mandate "+m.ID+" already exists")
	}
	if err := validateMandate(m); err != nil {
		return Mandate{}, err
	}
	m.Order = len(l.mandates)
	l.mandates = append(l.mandates, m)
	l.mirror.add(CollMandates, m.ID, m)
	return m, nil
}

func (l *Ledger) UpdateMandate(id string, p MandatePatch) (Mandate, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.updateMandateLocked(id, p)
}

func (l *Ledger) updateMandateLocked(id string, p MandatePatch) (Mandate, error) {
	i := l.mandateIndex(id)
	if i < 0 {
		return Mandate{}, notFound("mandate", id)
	}
	prev := l.mandates[i]
	next := p.apply(prev)
	if err := validateMandate(next); err != nil {
		return Mandate{}, err
	}
	l.mandates[i] = next
	l.mirror.replaceRecord(CollMandates, id, prev, next)
	return next, nil
}

func (l *Ledger) DeleteMandate(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.mandateIndex(id)
	if i < 0 {
		return notFound("mandate", id)
	}
	l.mandates = append(l.mandates[:i], l.mandates[i+1:]...)
	l.mirror.delete(CollMandates, id)
	return nil
}

func validateMandate(m Mandate) error {
	if m.SourceAccountID == "" {
		return invalid("sourceAccountId", "required")
	}
	if m.DestinationAccountID == "" {
		return invalid("destinationAccountId", "required")
	}
	if m.SourceAccountID == m.DestinationAccountID {
		return invalid("destinationAccountId", "must differ from sourceAccountId")
	}
	if !m.Amount.IsPositive() {
		return invalid("amount", "must be greater than zero")
	}
	if m.DayOfMonth < 1 || m.DayOfMonth > 31 {
		return invalid("dayOfMonth", "must be between 1 and 31")
	}
	return nil
}

// =============================================================================
// SCHEDULING
// =============================================================================

// DueMandates returns the mandates IsDueToday selects, in mandate order.
func (l *Ledger) DueMandates(today time.Time) []Mandate {
	l.mu.Lock()
	defer l.mu.Unlock()
	return filter(l.mandates, func(m Mandate) bool { return IsDueToday(m, today) })
}

// CheckAndRun executes every mandate due today, sequentially, and returns
// the generated transactions. A failing mandate does not stop the others;
// all failures are joined into the returned error.
func (l *Ledger) CheckAndRun(today time.Time) ([]Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var (
		generated []Transaction
		errs      []error
	)
	for _, m := range filter(l.mandates, func(m Mandate) bool { return IsDueToday(m, today) }) {
		tx, err := l.runMandateLocked(m.ID, today)
		if err != nil {
			log.Printf("[Scheduler] Mandate %s (%s) failed: %v", m.ID, m.Description, err)
			errs = append(errs, fmt.Errorf("mandate %s: %w", m.ID, err))
			continue
		}
		generated = append(generated, tx)
	}
	if len(generated) > 0 {
		log.Printf("[Scheduler] %s: ran %d mandate(s), %d failed", ISODate(today), len(generated), len(errs))
	}
	return generated, errors.Join(errs...)
}

// RunMandate executes mandate id now, regardless of its schedule.
func (l *Ledger) RunMandate(id string, today time.Time) (Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.runMandateLocked(id, today)
}

func (l *Ledger) runMandateLocked(id string, today time.Time) (Transaction, error) {
	i := l.mandateIndex(id)
	if i < 0 {
		return Transaction{}, notFound("mandate", id)
	}
	m := l.mandates[i]

	tx, err := l.addTransactionLocked(Transaction{
		AccountID:   m.SourceAccountID,
		ToAccountID: m.DestinationAccountID,
		Amount:      m.Amount,
		Type:        TxTransfer,
		Category:    MandateCategory,
		Note:        MandateNotePrefix + m.Description,
		Date:        l.now(),
	})
	if err != nil {
		return Transaction{}, err
	}

	stamp := ISODate(today)
	patch := MandatePatch{LastRunDate: &stamp}
	if stampedIn(m.LastSkippedDate, today) {
		// A run overrides this month's skip: one settlement per month.
		cleared := ""
		patch.LastSkippedDate = &cleared
	}
	if _, err := l.updateMandateLocked(id, patch); err != nil {
		return tx, err
	}

	if d := l.accountIndex(m.DestinationAccountID); d >= 0 {
		dst := l.accounts[d]
		if dst.IsLoan() && dst.LoanDetails != nil && dst.LoanDetails.EmisLeft > 0 {
			ld := *dst.LoanDetails
			ld.EmisLeft--
			if _, err := l.updateAccountLocked(dst.ID, AccountPatch{LoanDetails: &ld}); err != nil {
				return tx, err
			}
		}
	}
	return tx, nil
}

// SkipMandate settles mandate id for today's month without moving money.
func (l *Ledger) SkipMandate(id string, today time.Time) (Mandate, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.mandateIndex(id)
	if i < 0 {
		return Mandate{}, notFound("mandate", id)
	}
	if stampedIn(l.mandates[i].LastRunDate, today) {
		return Mandate{}, ErrMandateSettled
	}
	stamp := ISODate(today)
	return l.updateMandateLocked(id, MandatePatch{LastSkippedDate: &stamp})
}

func (l *Ledger) mandateIndex(id string) int {
	return indexOf(l.mandates, func(m Mandate) bool { return m.ID == id })
}
