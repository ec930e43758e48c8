/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package ledger tracks the lit candles and dice penalty shared by a table.
package ledger

import (
	"errors"
)

// DefaultCapacity is the number of candles a table starts with.
const DefaultCapacity = 10

var (
	// ErrNoUnitsRemaining indicates every candle has been extinguished.
	ErrNoUnitsRemaining = errors.New("no candles remain lit")

	// ErrPoolExhausted indicates the penalty has consumed every usable die.
	ErrPoolExhausted = errors.New("dice pool exhausted by penalty")

	// ErrInvalidCount indicates a negative failure count.
	ErrInvalidCount = errors.New("count must be non-negative")

	// ErrInvalidIndex indicates a candle position outside the table's capacity.
	ErrInvalidIndex = errors.New("candle index out of range")
)

// Ledger is a snapshot of a table's candles.
type Ledger struct {
	Total    int `json:"total"`
	Penalty  int `json:"penalty"`
	Capacity int `json:"capacity"`
}

// New returns a ledger with every candle lit.
func New(capacity int) Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return Ledger{Total: capacity, Capacity: capacity}
}

// Usable returns the number of dice a roll may use.
func (l Ledger) Usable() int {
	return max(0, l.Total-l.Penalty)
}

// CheckRoll reports why a roll would be refused, if it would be.
func (l Ledger) CheckRoll() error {
	if l.Total <= 0 {
		return ErrNoUnitsRemaining
	}
	if l.Usable() <= 0 {
		return ErrPoolExhausted
	}
	return nil
}

// ApplyFailures adds n to the penalty. Usable dice clamp at read time.
func (l *Ledger) ApplyFailures(n int) error {
	if n < 0 {
		return ErrInvalidCount
	}
	l.Penalty += n
	return nil
}

// RefundFailures subtracts n from the penalty, flooring at zero.
func (l *Ledger) RefundFailures(n int) error {
	if n < 0 {
		return ErrInvalidCount
	}
	l.Penalty = max(0, l.Penalty-n)
	return nil
}

// ExtinguishOne puts out one candle and clears the penalty.
func (l *Ledger) ExtinguishOne() error {
	if l.Total <= 0 {
		return ErrNoUnitsRemaining
	}
	l.Total--
	l.Penalty = 0
	return nil
}

// IgniteUpTo lights every candle up to and including index.
func (l *Ledger) IgniteUpTo(index int) error {
	if index < 0 || index >= l.capacity() {
		return ErrInvalidIndex
	}

	total := index + 1
	if total < l.Total {
		l.Penalty = 0
	}
	l.Total = total

	return nil
}

// SetPenalty sets the penalty clamped to [0, Total] and returns what was set.
func (l *Ledger) SetPenalty(n int) int {
	l.Penalty = min(max(0, n), l.Total)
	return l.Penalty
}

// Reset relights every candle and clears the penalty.
func (l *Ledger) Reset() {
	l.Total = l.capacity()
	l.Penalty = 0
}

func (l Ledger) capacity() int {
	if l.Capacity <= 0 {
		return max(DefaultCapacity, l.Total)
	}
	return l.Capacity
}

// Toggle applies a click on the candle at index: the last lit candle is
// extinguished, an unlit candle lights everything up to it, and any other
// lit candle is left alone. It reports whether anything changed.
func (l *Ledger) Toggle(index int) (changed bool, err error) {
	switch {
	case index < 0 || index >= l.capacity():
		return false, ErrInvalidIndex
	case l.Total > 0 && index == l.Total-1:
		return true, l.ExtinguishOne()
	case index >= l.Total:
		return true, l.IgniteUpTo(index)
	default:
		return false, nil
	}
}

// View is anything that can report the current ledger.
type View interface {
	Current() Ledger
}
