package pojo

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/pojocache/fqn"
	"github.com/IvanBrykalov/pojocache/internal/tree"
)

func newDelegate(t *testing.T) (*Delegate, *tree.Store) {
	t.Helper()
	s := tree.New(tree.Options{})
	return NewDelegate(s, NewLocks(16), nil), s
}

// publishHolder attaches a canonical holder without going through the
// graph handler.
func publishHolder(t *testing.T, d *Delegate, f fqn.Fqn, v any) {
	t.Helper()
	g := d.Locks().Lock(f)
	defer g.Unlock()
	require.NoError(t, d.PutInstance(context.Background(), g, f, NewInstance(v)))
}

func incr(t *testing.T, d *Delegate, ctx context.Context, original, ref fqn.Fqn) int {
	t.Helper()
	g := d.Locks().Lock(original)
	defer g.Unlock()
	n, err := d.IncrementRefCount(ctx, g, original, ref)
	require.NoError(t, err)
	return n
}

func decr(t *testing.T, d *Delegate, ctx context.Context, original, ref fqn.Fqn) int {
	t.Helper()
	g := d.Locks().Lock(original)
	defer g.Unlock()
	n, err := d.DecrementRefCount(ctx, g, original, ref)
	require.NoError(t, err)
	return n
}

func TestRefCount_RoundTrip(t *testing.T) {
	t.Parallel()

	d, _ := newDelegate(t)
	ctx := context.Background()
	origin, refA, refB := fqn.Parse("/origin"), fqn.Parse("/refA"), fqn.Parse("/refB")
	publishHolder(t, d, origin, &struct{}{})
	require.Equal(t, Unreferenced, d.RefCount(origin))

	require.Equal(t, 1, incr(t, d, ctx, origin, refA))
	id := d.Instance(origin).IndirectFqn()
	require.NotEmpty(t, id)
	target, ok := d.ResolveIndirectFqn(id)
	require.True(t, ok)
	require.True(t, target.Equal(origin))

	require.Equal(t, 2, incr(t, d, ctx, origin, refB))
	require.Equal(t, id, d.Instance(origin).IndirectFqn())
	require.Equal(t, []fqn.Fqn{refA, refB}, d.ReferencingFqns(origin))
	require.True(t, d.IsReferenced(origin))

	require.Equal(t, 1, decr(t, d, ctx, origin, refA))
	require.Equal(t, []fqn.Fqn{refB}, d.ReferencingFqns(origin))
	require.Equal(t, Unreferenced, decr(t, d, ctx, origin, refB))

	require.Empty(t, d.ReferencingFqns(origin))
	require.False(t, d.IsReferenced(origin))
	require.Empty(t, d.Instance(origin).IndirectFqn())
	_, ok = d.ResolveIndirectFqn(id)
	require.False(t, ok)
	require.Equal(t, uint64(5), d.Instance(origin).Version())
}

func TestRefCount_UnderflowPanics(t *testing.T) {
	t.Parallel()

	d, _ := newDelegate(t)
	f := fqn.Parse("/x")
	publishHolder(t, d, f, &struct{}{})

	g := d.Locks().Lock(f)
	defer g.Unlock()
	require.Panics(t, func() {
		_, _ = d.DecrementRefCount(context.Background(), g, f, fqn.Parse("/y"))
	})
}

func TestRefCount_MissingInstancePanics(t *testing.T) {
	t.Parallel()

	d, _ := newDelegate(t)
	f := fqn.Parse("/none")
	require.Nil(t, d.Instance(f))
	require.Empty(t, d.RefFqn(f))
	require.False(t, d.IsReferenced(f))
	require.Panics(t, func() { d.RefCount(f) })

	g := d.Locks().Lock(f)
	defer g.Unlock()
	require.Panics(t, func() { _, _ = d.IncrementRefCount(context.Background(), g, f, fqn.Parse("/y")) })
}

func TestGuard_Misuse(t *testing.T) {
	t.Parallel()

	d, _ := newDelegate(t)
	ctx := context.Background()
	a, b := fqn.Parse("/a"), fqn.Parse("/b")
	publishHolder(t, d, a, &struct{}{})

	_, err := d.IncrementRefCount(ctx, nil, a, b)
	require.Equal(t, errors.CodeInternal, errors.GetCode(err))

	gb := d.Locks().Lock(b)
	_, err = d.IncrementRefCount(ctx, gb, a, b)
	require.Equal(t, errors.CodeInternal, errors.GetCode(err))
	require.ErrorContains(t, err, "lock held for /b")
	gb.Unlock()
	gb.Unlock()

	ga := d.Locks().Lock(a)
	ga.Unlock()
	_, err = d.IncrementRefCount(ctx, ga, a, b)
	require.ErrorContains(t, err, "already released")
	require.Equal(t, Unreferenced, d.RefCount(a))
}

func TestTxn_RollbackRestoresMetadata(t *testing.T) {
	t.Parallel()

	d, s := newDelegate(t)
	origin := fqn.Parse("/origin")
	publishHolder(t, d, origin, &struct{}{})
	before := d.Instance(origin)

	txn := NewTxn(s)
	ctx := WithTxn(context.Background(), txn)
	require.Same(t, txn, TxnFrom(ctx))
	incr(t, d, ctx, origin, fqn.Parse("/r1"))
	incr(t, d, ctx, origin, fqn.Parse("/r2"))
	id := d.Instance(origin).IndirectFqn()
	require.Equal(t, 3, txn.Len())

	require.NoError(t, txn.Rollback())
	require.Same(t, before, d.Instance(origin))
	_, ok := d.ResolveIndirectFqn(id)
	require.False(t, ok)

	err := txn.Commit()
	require.Equal(t, errors.CodeConflict, errors.GetCode(err))
	g := d.Locks().Lock(origin)
	defer g.Unlock()
	_, err = d.IncrementRefCount(ctx, g, origin, fqn.Parse("/r3"))
	require.Equal(t, errors.CodeConflict, errors.GetCode(err))
}

func TestTxn_CommitKeepsMetadata(t *testing.T) {
	t.Parallel()

	d, s := newDelegate(t)
	origin := fqn.Parse("/origin")
	publishHolder(t, d, origin, &struct{}{})

	txn := NewTxn(s)
	ctx := WithTxn(context.Background(), txn)
	incr(t, d, ctx, origin, fqn.Parse("/r1"))
	require.NoError(t, txn.Commit())
	require.Equal(t, 1, d.RefCount(origin))
	require.Nil(t, TxnFrom(context.Background()))
}

// Ids are unique per allocation and carry the path hash.
func TestAllocateIndirectFqn(t *testing.T) {
	t.Parallel()

	d, _ := newDelegate(t)
	ctx := context.Background()
	f := fqn.Parse("/a/b")
	prefix := fmt.Sprintf("%016x-", xxhash.Sum64String("/a/b"))

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id, err := d.AllocateIndirectFqn(ctx, f)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(id, prefix), id)
		require.False(t, seen[id])
		seen[id] = true
	}

	// A taken id is skipped.
	next := prefix + fmt.Sprint(d.seq.Load()+1)
	require.NoError(t, d.SetIndirectFqn(ctx, next, fqn.Parse("/other")))
	id, err := d.AllocateIndirectFqn(ctx, f)
	require.NoError(t, err)
	require.NotEqual(t, next, id)
	target, _ := d.ResolveIndirectFqn(next)
	require.Equal(t, "/other", target.String())
}

func TestLocks_StripesArePowerOfTwo(t *testing.T) {
	t.Parallel()

	require.Equal(t, 16, NewLocks(10).Stripes())
	require.GreaterOrEqual(t, NewLocks(0).Stripes(), 16)
}
