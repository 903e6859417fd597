package ledger

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// =============================================================================
// MIRROR - Asynchronous, ordered persistence of accepted mutations
// =============================================================================

// Mirror runs backing-store writes on a single worker goroutine, in the
// order they were enqueued. Mutation methods return as soon as memory is
// updated; failures surface only through Errors().
type Mirror struct {
	store   Store
	tasks   chan mirrorTask
	errs    chan error
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

type mirrorTask struct {
	op         string
	collection Collection
	id         string
	run        func(ctx context.Context) error
	barrier    chan struct{}
}

// MirrorOptions tunes the worker. Zero values take defaults.
type MirrorOptions struct {
	QueueSize    int
	ErrorBuffer  int
	WriteTimeout time.Duration
}

// NewMirror starts the worker.
func NewMirror(store Store, opts MirrorOptions) *Mirror {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.ErrorBuffer <= 0 {
		opts.ErrorBuffer = 64
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	m := &Mirror{
		store:   store,
		tasks:   make(chan mirrorTask, opts.QueueSize),
		errs:    make(chan error, opts.ErrorBuffer),
		timeout: opts.WriteTimeout,
		done:    make(chan struct{}),
	}
	go m.run()
	return m
}

// Errors delivers PersistenceErrors. When nobody drains it and the buffer
// is full, further errors are only logged.
func (m *Mirror) Errors() <-chan error { return m.errs }

func (m *Mirror) enqueue(t mirrorTask) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		m.report(&PersistenceError{Op: t.op, Collection: t.collection, ID: t.id, Err: ErrMirrorClosed})
		return
	}
	m.tasks <- t
}

// Flush blocks until every task enqueued before the call has been attempted.
func (m *Mirror) Flush(ctx context.Context) error {
	barrier := make(chan struct{})

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMirrorClosed
	}
	m.tasks <- mirrorTask{barrier: barrier}
	m.mu.Unlock()

	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue and stops the worker.
func (m *Mirror) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.tasks)
	m.mu.Unlock()
	<-m.done
}

func (m *Mirror) run() {
	defer close(m.done)
	for t := range m.tasks {
		if t.barrier != nil {
			close(t.barrier)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		err := t.run(ctx)
		cancel()
		if err != nil {
			m.report(&PersistenceError{Op: t.op, Collection: t.collection, ID: t.id, Err: err})
		}
	}
}

func (m *Mirror) report(err error) {
	log.Printf("[Mirror] %v", err)
	select {
	case m.errs <- err:
	default:
	}
}

// =============================================================================
// TYPED HELPERS
// =============================================================================

func (m *Mirror) add(c Collection, id string, v any) {
	doc, err := NewDocument(id, v)
	if err != nil {
		m.report(&PersistenceError{Op: "add", Collection: c, ID: id, Err: err})
		return
	}
	m.enqueue(mirrorTask{op: "add", collection: c, id: id, run: func(ctx context.Context) error {
		_, err := m.store.Add(ctx, c, doc)
		return err
	}})
}

func (m *Mirror) update(c Collection, id string, fields map[string]any) {
	m.enqueue(mirrorTask{op: "update", collection: c, id: id, run: func(ctx context.Context) error {
		return m.store.Update(ctx, c, id, fields)
	}})
}

// replaceRecord writes cur over the stored record. Fields present in prev
// but dropped from cur are removed.
func (m *Mirror) replaceRecord(c Collection, id string, prev, cur any) {
	fields, err := Fields(cur)
	if err == nil {
		var old map[string]any
		if old, err = Fields(prev); err == nil {
			for k := range old {
				if _, ok := fields[k]; !ok {
					fields[k] = nil
				}
			}
		}
	}
	if err != nil {
		m.report(&PersistenceError{Op: "update", Collection: c, ID: id, Err: err})
		return
	}
	m.update(c, id, fields)
}

func (m *Mirror) delete(c Collection, id string) {
	m.enqueue(mirrorTask{op: "delete", collection: c, id: id, run: func(ctx context.Context) error {
		return m.store.Delete(ctx, c, id)
	}})
}

func (m *Mirror) deleteWhere(c Collection, field, value string) {
	m.enqueue(mirrorTask{op: "delete_where", collection: c, id: field + "=" + value, run: func(ctx context.Context) error {
		_, err := m.store.DeleteWhere(ctx, c, field, value)
		return err
	}})
}

// upsert adds the record, or overwrites it if it already exists.
func (m *Mirror) upsert(c Collection, id string, v any) {
	doc, err := NewDocument(id, v)
	if err != nil {
		m.report(&PersistenceError{Op: "upsert", Collection: c, ID: id, Err: err})
		return
	}
	fields, err := Fields(v)
	if err != nil {
		m.report(&PersistenceError{Op: "upsert", Collection: c, ID: id, Err: err})
		return
	}
	m.enqueue(mirrorTask{op: "upsert", collection: c, id: id, run: func(ctx context.Context) error {
		err := m.store.Update(ctx, c, id, fields)
		if errors.Is(err, ErrDocumentNotFound) {
			_, err = m.store.Add(ctx, c, doc)
		}
		return err
	}})
}
