/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package dice rolls and classifies the six-sided dice of a Ten Candles pool.
package dice

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
)

const sides = 6

// ErrInvalidPool indicates a negative pool size.
var ErrInvalidPool = errors.New("pool size must be non-negative")

// Class is the classification of a single die.
type Class int

const (
	Neutral Class = iota
	Failure
	Success
)

func (c Class) String() string {
	switch c {
	case Neutral:
		return "neutral"
	case Failure:
		return "failure"
	case Success:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalText encodes the class by name.
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Die is a single rolled value and its classification.
type Die struct {
	Value int   `json:"value"`
	Class Class `json:"class"`
}

// Outcome is the classified result of one pool roll.
type Outcome struct {
	Main      []Die `json:"main"`
	Bonus     *Die  `json:"bonus,omitempty"`
	Successes int   `json:"successes"`
	Failures  int   `json:"failures"`
}

// Succeeded reports whether at least one die succeeded.
func (o Outcome) Succeeded() bool {
	return o.Successes > 0
}

// BonusApplied reports whether the bonus die was rolled.
func (o Outcome) BonusApplied() bool {
	return o.Bonus != nil
}

// ClassifyMain classifies a main pool value: 1 fails, 6 succeeds.
func ClassifyMain(value int) Class {
	switch value {
	case 1:
		return Failure
	case 6:
		return Success
	default:
		return Neutral
	}
}

// ClassifyBonus classifies a bonus die value: 5 and 6 succeed, nothing fails.
func ClassifyBonus(value int) Class {
	if value >= 5 {
		return Success
	}
	return Neutral
}

// Source produces uniform integers in [0, n).
type Source interface {
	IntN(n int) int
}

// Roll draws poolSize main dice and, when includeBonus is set, one bonus die.
//
// A zero pool yields an empty outcome. Callers are expected to refuse the
// roll before reaching this point rather than rely on that.
func Roll(src Source, poolSize int, includeBonus bool) (Outcome, error) {
	if poolSize < 0 {
		return Outcome{}, ErrInvalidPool
	}

	out := Outcome{Main: make([]Die, 0, poolSize)}
	for range poolSize {
		value := src.IntN(sides) + 1
		class := ClassifyMain(value)
		switch class {
		case Failure:
			out.Failures++
		case Success:
			out.Successes++
		}
		out.Main = append(out.Main, Die{Value: value, Class: class})
	}

	if includeBonus {
		value := src.IntN(sides) + 1
		bonus := Die{Value: value, Class: ClassifyBonus(value)}
		if bonus.Class == Success {
			out.Successes++
		}
		out.Bonus = &bonus
	}

	return out, nil
}

// Roller is a goroutine-safe seeded Source.
type Roller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRoller returns a roller that is deterministic for a given seed.
func NewRoller(seed uint64) *Roller {
	return &Roller{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewRandomRoller returns a roller seeded from crypto/rand.
func NewRandomRoller() (*Roller, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return nil, fmt.Errorf("read random seed: %w", err)
	}

	return NewRoller(binary.LittleEndian.Uint64(b[:])), nil
}

// IntN implements Source.
func (r *Roller) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.rng.IntN(n)
}

// Roll rolls a pool with this roller.
func (r *Roller) Roll(poolSize int, includeBonus bool) (Outcome, error) {
	return Roll(r, poolSize, includeBonus)
}
