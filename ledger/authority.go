/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var errUnchanged = errors.New("ledger unchanged")

// Store persists one ledger per table.
type Store interface {
	LoadLedger(ctx context.Context, tableID string) (Ledger, bool, error)
	SaveLedger(ctx context.Context, tableID string, l Ledger) error
}

// Notify receives every committed ledger along with its version.
type Notify func(l Ledger, version uint64)

// Authority is the single writer of record for a table's ledger.
//
// Every mutation runs against a copy which is persisted before it is
// committed, so a failed save leaves the ledger as it was.
type Authority struct {
	mu      sync.Mutex
	tableID string
	state   Ledger
	version uint64
	store   Store
	notify  Notify
}

// NewAuthority loads the table's ledger from store, or starts a fresh one
// with capacity candles. A nil store keeps the ledger in memory only.
func NewAuthority(ctx context.Context, tableID string, capacity int, store Store, notify Notify) (*Authority, error) {
	a := &Authority{
		tableID: tableID,
		state:   New(capacity),
		version: 1,
		store:   store,
		notify:  notify,
	}

	if store == nil {
		return a, nil
	}

	l, ok, err := store.LoadLedger(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("load ledger %s: %w", tableID, err)
	}
	if ok {
		a.state = l
		return a, nil
	}

	if err := store.SaveLedger(ctx, tableID, a.state); err != nil {
		return nil, fmt.Errorf("save ledger %s: %w", tableID, err)
	}

	return a, nil
}

// Current implements View.
func (a *Authority) Current() Ledger {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.state
}

// Snapshot returns the current ledger and its version.
func (a *Authority) Snapshot() (Ledger, uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.state, a.version
}

func (a *Authority) mutate(ctx context.Context, fn func(*Ledger) error) (Ledger, error) {
	a.mu.Lock()

	prev := a.state
	next := prev
	if err := fn(&next); err != nil {
		a.mu.Unlock()
		return prev, err
	}

	if a.store != nil {
		if err := a.store.SaveLedger(ctx, a.tableID, next); err != nil {
			a.mu.Unlock()
			return prev, fmt.Errorf("save ledger %s: %w", a.tableID, err)
		}
	}

	a.state = next
	a.version++
	version := a.version
	notify := a.notify
	a.mu.Unlock()

	if notify != nil {
		notify(next, version)
	}

	return next, nil
}

// ApplyFailures adds n to the penalty.
func (a *Authority) ApplyFailures(ctx context.Context, n int) (Ledger, error) {
	return a.mutate(ctx, func(l *Ledger) error {
		return l.ApplyFailures(n)
	})
}

// RefundFailures subtracts n from the penalty, flooring at zero.
func (a *Authority) RefundFailures(ctx context.Context, n int) (Ledger, error) {
	return a.mutate(ctx, func(l *Ledger) error {
		return l.RefundFailures(n)
	})
}

// Resettle refunds a previous roll's failures and applies a new roll's as
// one committed change.
func (a *Authority) Resettle(ctx context.Context, refund, apply int) (Ledger, error) {
	return a.mutate(ctx, func(l *Ledger) error {
		if err := l.RefundFailures(refund); err != nil {
			return err
		}
		return l.ApplyFailures(apply)
	})
}

// ExtinguishOne puts out one candle and clears the penalty.
func (a *Authority) ExtinguishOne(ctx context.Context) (Ledger, error) {
	return a.mutate(ctx, func(l *Ledger) error {
		return l.ExtinguishOne()
	})
}

// IgniteUpTo lights every candle up to and including index.
func (a *Authority) IgniteUpTo(ctx context.Context, index int) (Ledger, error) {
	return a.mutate(ctx, func(l *Ledger) error {
		return l.IgniteUpTo(index)
	})
}

// Toggle applies a candle click; see Ledger.Toggle.
func (a *Authority) Toggle(ctx context.Context, index int) (Ledger, bool, error) {
	changed := false
	l, err := a.mutate(ctx, func(l *Ledger) error {
		var err error
		changed, err = l.Toggle(index)
		if err == nil && !changed {
			return errUnchanged
		}
		return err
	})
	if errors.Is(err, errUnchanged) {
		return l, false, nil
	}

	return l, changed, err
}

// SetPenalty sets the penalty, clamped to [0, Total].
func (a *Authority) SetPenalty(ctx context.Context, n int) (Ledger, error) {
	return a.mutate(ctx, func(l *Ledger) error {
		l.SetPenalty(n)
		return nil
	})
}

// Reset relights every candle and clears the penalty.
func (a *Authority) Reset(ctx context.Context) (Ledger, error) {
	return a.mutate(ctx, func(l *Ledger) error {
		l.Reset()
		return nil
	})
}
