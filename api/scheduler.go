/*
scheduler.go - Background mandate ticker

PURPOSE:
  Drives the Mandate Scheduler from the host side: every CheckInterval it
  calls Ledger.CheckAndRun(now). Idempotency lives in the ledger, so a
  short interval never produces a second transfer in the same month.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on Start
  - Failures of individual mandates are logged and do not stop the ticker

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 minute)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewMandateScheduler(l)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: CheckMandates endpoint (manual trigger)
  - ledger/mandate.go: due logic
*/
package api

import (
	"log"
	"sync"
	"time"

	"github.com/warp/money-ledger/ledger"
)

// MandateScheduler periodically executes due mandates.
type MandateScheduler struct {
	Ledger        *ledger.Ledger
	CheckInterval time.Duration
	Enabled       bool

	// Now is the clock used for "today"; defaults to time.Now.
	Now func() time.Time

	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun time.Time
}

// NewMandateScheduler creates a new scheduler.
func NewMandateScheduler(l *ledger.Ledger) *MandateScheduler {
	return &MandateScheduler{
		Ledger:        l,
		CheckInterval: time.Minute,
		Enabled:       true,
		Now:           time.Now,
	}
}

// Start begins the scheduler.
func (ms *MandateScheduler) Start() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if !ms.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}
	if ms.ticker != nil {
		return
	}

	ms.ticker = time.NewTicker(ms.CheckInterval)
	ms.stop = make(chan struct{})
	ms.wg.Add(1)

	go ms.run(ms.ticker, ms.stop)

	log.Printf("[Scheduler] Started with check interval: %v", ms.CheckInterval)
}

// Stop stops the scheduler and waits for an in-flight check.
func (ms *MandateScheduler) Stop() {
	ms.mu.Lock()
	if ms.ticker == nil {
		ms.mu.Unlock()
		return
	}
	ms.ticker.Stop()
	close(ms.stop)
	ms.ticker = nil
	ms.mu.Unlock()

	ms.wg.Wait()
	log.Println("[Scheduler] Stopped")
}

func (ms *MandateScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer ms.wg.Done()

	// Run immediately on start
	ms.RunNow()

	for {
		select {
		case <-ticker.C:
			ms.RunNow()
		case <-stop:
			return
		}
	}
}

// RunNow executes one check and returns the generated transactions.
func (ms *MandateScheduler) RunNow() []ledger.Transaction {
	now := ms.Now()
	txs, err := ms.Ledger.CheckAndRun(now)
	if err != nil {
		log.Printf("[Scheduler] Check at %s finished with errors: %v", ledger.ISODate(now), err)
	}

	ms.mu.Lock()
	ms.lastRun = now
	ms.mu.Unlock()
	return txs
}

// LastRun returns when the last check started.
func (ms *MandateScheduler) LastRun() time.Time {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.lastRun
}

// GetNextRunTime returns when the next scheduled check will occur, or the
// zero time before the first check.
func (ms *MandateScheduler) GetNextRunTime() time.Time {
	last := ms.LastRun()
	if last.IsZero() {
		return time.Time{}
	}
	return last.Add(ms.CheckInterval)
}
