// Package pojo stores object graphs on the tree so that a value reachable
// from several paths is kept once.
//
// The first path a value is attached at holds its data (the canonical
// holder). Attaching the same value (same pointer) at another path turns
// that path into an alias: it carries only a class marker and an Instance
// whose RefFqn names the canonical holder through an indirect id. Reads of
// an alias are redirected and never copied.
//
// Reference counts live on the canonical holder's Instance:
//
//	-1  unreferenced
//	 n  referenced by n alias paths (n >= 1)
//
// Dropping the last alias returns the count to -1 and releases the
// holder's indirect id. Decrementing an unreferenced holder panics.
//
// Removing a referenced holder relocates its subtree to the first
// referencing path that is not one of its own descendants. References from
// inside the subtree (cycles) move along with it.
//
// Instances are immutable once published. Mutators clone, modify and
// republish; the replaced version is recorded in the Txn carried by the
// context, if any, so Rollback can restore it.
//
// Refcount mutators take a *Guard for the exact path they modify, obtained
// from Locks.Lock.
package pojo
