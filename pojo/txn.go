package pojo

import (
	"context"
	"slices"
	"sync"

	"github.com/jmgilman/go/errors"

	"github.com/IvanBrykalov/pojocache/fqn"
	"github.com/IvanBrykalov/pojocache/internal/tree"
)

type txnState int

const (
	txnActive txnState = iota
	txnCommitted
	txnRolledBack
)

// Txn is an undo log for the object graph. Metadata writes made through a
// Delegate, and the structural changes an ObjectGraphHandler makes, with a
// context carrying the Txn are recorded; Rollback undoes them in reverse
// order. Plain cache data written outside the graph is not covered.
type Txn struct {
	store *tree.Store

	mu    sync.Mutex
	undo  []func()
	state txnState
}

// NewTxn starts a transaction over store.
func NewTxn(store *tree.Store) *Txn { return &Txn{store: store} }

type txnKey struct{}

// WithTxn returns a context carrying t.
func WithTxn(ctx context.Context, t *Txn) context.Context {
	return context.WithValue(ctx, txnKey{}, t)
}

// TxnFrom returns the transaction carried by ctx, or nil.
func TxnFrom(ctx context.Context) *Txn {
	t, _ := ctx.Value(txnKey{}).(*Txn)
	return t
}

// Len returns the number of recorded changes.
func (t *Txn) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.undo)
}

func (t *Txn) record(undo func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != txnActive {
		return errors.New(errors.CodeConflict, "pojo: transaction already finished")
	}
	t.undo = append(t.undo, undo)
	return nil
}

// recordKey saves the current value of key on f.
func (t *Txn) recordKey(f fqn.Fqn, key string) error {
	prev, existed := t.store.Peek(f, key)
	return t.record(func() {
		if existed {
			t.store.PutInternal(f, key, prev)
		} else {
			t.store.RemoveKeyInternal(f, key)
		}
	})
}

// recordSubtree saves f's subtree. When f does not exist yet, the
// shallowest missing ancestor is recorded as absent instead, so that
// rollback also drops the ancestors a write creates.
func (t *Txn) recordSubtree(f fqn.Fqn) error {
	at := f
	for i := 1; i < f.Len(); i++ {
		if a := f.Ancestor(i); !t.store.Exists(a) {
			at = a
			break
		}
	}
	img := t.store.Capture(at)
	return t.record(func() { t.store.Restore(at, img) })
}

func (t *Txn) finish(to txnState) ([]func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != txnActive {
		return nil, errors.New(errors.CodeConflict, "pojo: transaction already finished")
	}
	t.state = to
	undo := t.undo
	t.undo = nil
	return undo, nil
}

// Commit drops the undo log.
func (t *Txn) Commit() error {
	_, err := t.finish(txnCommitted)
	return err
}

// Rollback undoes every recorded change, newest first.
func (t *Txn) Rollback() error {
	undo, err := t.finish(txnRolledBack)
	if err != nil {
		return err
	}
	for _, fn := range slices.Backward(undo) {
		fn()
	}
	return nil
}
