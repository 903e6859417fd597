package ledger

import (
	"fmt"
	"strings"
)

// =============================================================================
// CATEGORIES
// =============================================================================
// Transactions store the category NAME. Renaming or deleting a category
// never rewrites historic transactions.

func (l *Ledger) Categories() []Category {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Category(nil), l.categories...)
}

func (l *Ledger) AddCategory(c Category) (Category, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if c.ID == "" {
		c.ID = l.newID()
	}
	if err := validateCategory(c); err != nil {
		return Category{}, err
	}
	c.Order = len(l.categories)
	l.categories = append(l.categories, c)
	l.mirror.add(CollCategories, c.ID, c)
	return c, nil
}

func (l *Ledger) UpdateCategory(id string, p CategoryPatch) (Category, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := indexOf(l.categories, func(c Category) bool { return c.ID == id })
	if i < 0 {
		return Category{}, notFound("category", id)
	}
	prev := l.categories[i]
	next := p.apply(prev)
	if err := validateCategory(next); err != nil {
		return Category{}, err
	}
	l.categories[i] = next
	l.mirror.replaceRecord(CollCategories, id, prev, next)
	return next, nil
}

func (l *Ledger) DeleteCategory(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := indexOf(l.categories, func(c Category) bool { return c.ID == id })
	if i < 0 {
		return notFound("category", id)
	}
	l.categories = append(l.categories[:i], l.categories[i+1:]...)
	l.mirror.delete(CollCategories, id)
	return nil
}

func validateCategory(c Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("name", "required")
	}
	if c.Type != CategoryIncome && c.Type != CategoryExpense {
		return invalid("type", "must be income or expense")
	}
	return nil
}

// =============================================================================
// EVENTS
// =============================================================================

func (l *Ledger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

func (l *Ledger) AddEvent(e Event) (Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.ID == "" {
		e.ID = l.newID()
	}
	if strings.TrimSpace(e.Name) == "" {
		return Event{}, invalid("name", "required")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.now()
	}
	l.events = append(l.events, e)
	l.mirror.add(CollEvents, e.ID, e)
	return e, nil
}

func (l *Ledger) UpdateEvent(id string, p EventPatch) (Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := indexOf(l.events, func(e Event) bool { return e.ID == id })
	if i < 0 {
		return Event{}, notFound("event", id)
	}
	prev := l.events[i]
	next := p.apply(prev)
	if strings.TrimSpace(next.Name) == "" {
		return Event{}, invalid("name", "required")
	}
	l.events[i] = next
	l.mirror.replaceRecord(CollEvents, id, prev, next)
	return next, nil
}

// DeleteEvent removes the event and its logs and plans. Transactions that
// referenced it survive with their eventId cleared.
func (l *Ledger) DeleteEvent(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := indexOf(l.events, func(e Event) bool { return e.ID == id })
	if i < 0 {
		return notFound("event", id)
	}
	l.events = append(l.events[:i], l.events[i+1:]...)
	l.mirror.delete(CollEvents, id)

	for j := range l.transactions {
		if l.transactions[j].EventID == id {
			l.transactions[j].EventID = ""
			l.mirror.update(CollTransactions, l.transactions[j].ID, map[string]any{"eventId": nil})
		}
	}

	l.eventLogs = removeWhere(l.eventLogs, func(e EventLog) bool { return e.EventID == id })
	l.eventPlans = removeWhere(l.eventPlans, func(e EventPlan) bool { return e.EventID == id })
	l.mirror.deleteWhere(CollEventLogs, "eventId", id)
	l.mirror.deleteWhere(CollEventPlans, "eventId", id)
	return nil
}

// EventTransactions returns the transactions grouped under eventID.
func (l *Ledger) EventTransactions(eventID string) []Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Transaction
	for _, tx := range l.transactions {
		if tx.EventID == eventID {
			out = append(out, tx)
		}
	}
	return out
}

// EventLogs and EventPlans are manual entries; they never touch balances.

func (l *Ledger) EventLogs(eventID string) []EventLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	return filter(l.eventLogs, func(e EventLog) bool { return e.EventID == eventID })
}

func (l *Ledger) AddEventLog(e EventLog) (EventLog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if indexOf(l.events, func(ev Event) bool { return ev.ID == e.EventID }) < 0 {
		return EventLog{}, invalid("eventId", "unknown event "+e.EventID)
	}
	if e.ID == "" {
		e.ID = l.newID()
	}
	if e.Date.IsZero() {
		e.Date = l.now()
	}
	l.eventLogs = append(l.eventLogs, e)
	l.mirror.add(CollEventLogs, e.ID, e)
	return e, nil
}

func (l *Ledger) DeleteEventLog(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := indexOf(l.eventLogs, func(e EventLog) bool { return e.ID == id })
	if i < 0 {
		return notFound("event log", id)
	}
	l.eventLogs = append(l.eventLogs[:i], l.eventLogs[i+1:]...)
	l.mirror.delete(CollEventLogs, id)
	return nil
}

func (l *Ledger) EventPlans(eventID string) []EventPlan {
	l.mu.Lock()
	defer l.mu.Unlock()
	return filter(l.eventPlans, func(e EventPlan) bool { return e.EventID == eventID })
}

func (l *Ledger) AddEventPlan(p EventPlan) (EventPlan, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if indexOf(l.events, func(ev Event) bool { return ev.ID == p.EventID }) < 0 {
		return EventPlan{}, invalid("eventId", "unknown event "+p.EventID)
	}
	if p.ID == "" {
		p.ID = l.newID()
	}
	l.eventPlans = append(l.eventPlans, p)
	l.mirror.add(CollEventPlans, p.ID, p)
	return p, nil
}

func (l *Ledger) DeleteEventPlan(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := indexOf(l.eventPlans, func(e EventPlan) bool { return e.ID == id })
	if i < 0 {
		return notFound("event plan", id)
	}
	l.eventPlans = append(l.eventPlans[:i], l.eventPlans[i+1:]...)
	l.mirror.delete(CollEventPlans, id)
	return nil
}

// =============================================================================
// INVESTMENT LOGS
// =============================================================================

func (l *Ledger) InvestmentLogs() []InvestmentLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]InvestmentLog(nil), l.investmentLogs...)
}

func (l *Ledger) AddInvestmentLog(il InvestmentLog) (InvestmentLog, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.accountIndex(il.AccountID) < 0 {
		return InvestmentLog{}, invalid("accountId", "unknown account "+il.AccountID)
	}
	if il.ID == "" {
		il.ID = l.newID()
	}
	if il.Date.IsZero() {
		il.Date = l.now()
	}
	if il.Amount.IsZero() {
		il.Amount = il.Quantity.Mul(il.Rate)
	}
	l.investmentLogs = append(l.investmentLogs, il)
	l.mirror.add(CollInvestmentLogs, il.ID, il)
	return il, nil
}

// =============================================================================
// SETTINGS
// =============================================================================

const settingsDocID = "app"

func (l *Ledger) Settings() Settings {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(Settings, len(l.settings))
	for k, v := range l.settings {
		out[k] = v
	}
	return out
}

// SetSetting stores a primitive (string, bool or number) setting.
func (l *Ledger) SetSetting(key string, value any) error {
	switch value.(type) {
	case string, bool, int, int64, float64:
	default:
		return invalid("settings."+key, fmt.Sprintf("unsupported value type %T", value))
	}
	if key == "" {
		return invalid("settings", "key required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.settings[key] = value
	l.mirror.upsert(CollSettings, settingsDocID, l.settings)
	return nil
}

// =============================================================================
// REORDER
// =============================================================================

// Reorder sets order = position for each id in orderedIDs. Entities not
// listed keep their order; only changed entities are persisted.
func (l *Ledger) Reorder(c Collection, orderedIDs []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch c {
	case CollAccounts:
		reorder(l.accounts, orderedIDs, func(a *Account) (string, *int) { return a.ID, &a.Order }, l.persistOrder(c))
		sortByOrder(l.accounts, func(a Account) int { return a.Order })
	case CollCategories:
		reorder(l.categories, orderedIDs, func(x *Category) (string, *int) { return x.ID, &x.Order }, l.persistOrder(c))
		sortByOrder(l.categories, func(x Category) int { return x.Order })
	case CollMandates:
		reorder(l.mandates, orderedIDs, func(m *Mandate) (string, *int) { return m.ID, &m.Order }, l.persistOrder(c))
		sortByOrder(l.mandates, func(m Mandate) int { return m.Order })
	default:
		return invalid("collection", string(c)+" is not orderable")
	}
	return nil
}

func (l *Ledger) persistOrder(c Collection) func(id string, order int) {
	return func(id string, order int) {
		l.mirror.update(c, id, map[string]any{"order": order})
	}
}

func reorder[T any](items []T, orderedIDs []string, key func(*T) (string, *int), changed func(id string, order int)) {
	pos := make(map[string]int, len(orderedIDs))
	for i, id := range orderedIDs {
		if _, dup := pos[id]; !dup {
			pos[id] = i
		}
	}
	for i := range items {
		id, order := key(&items[i])
		p, ok := pos[id]
		if !ok || *order == p {
			continue
		}
		*order = p
		changed(id, p)
	}
}

// =============================================================================
// SLICE HELPERS
// =============================================================================

func indexOf[T any](items []T, match func(T) bool) int {
	for i, item := range items {
		if match(item) {
			return i
		}
	}
	return -1
}

func filter[T any](items []T, keep func(T) bool) []T {
	var out []T
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

func removeWhere[T any](items []T, drop func(T) bool) []T {
	kept := items[:0]
	for _, item := range items {
		if !drop(item) {
			kept = append(kept, item)
		}
	}
	return kept
}
