/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package resolution runs a roll from validation through to the shared report.
package resolution

import (
	"context"
	"errors"
	"time"

	"github.com/Seednode/tencandles/authority"
	"github.com/Seednode/tencandles/dice"
	"github.com/Seednode/tencandles/ledger"
)

var (
	// ErrNoPriorRoll indicates a repeat or reroll with no recorded roll.
	ErrNoPriorRoll = errors.New("no prior roll to repeat")

	// ErrRepeatNotAllowed indicates a repeat by a character that holds a
	// virtue or a vice.
	ErrRepeatNotAllowed = errors.New("repeat is reserved for characters without a virtue or vice")

	// ErrRerollNotAllowed indicates a reroll by a character that holds
	// neither a virtue nor a vice.
	ErrRerollNotAllowed = errors.New("reroll requires a virtue or vice")

	// ErrStaleIntent indicates an intent built against a roll record that has
	// since been replaced.
	ErrStaleIntent = errors.New("roll record changed before intent arrived")
)

// Kind is the kind of resolution.
type Kind int

const (
	Roll Kind = iota
	Reroll
	Repeat
)

func (k Kind) String() string {
	switch k {
	case Roll:
		return "roll"
	case Reroll:
		return "reroll"
	case Repeat:
		return "repeat"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// State is a step of a resolution.
type State int

const (
	Idle State = iota
	Validating
	Rolling
	Classifying
	Settling
	Reporting
	Done
	Refused
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Validating:
		return "validating"
	case Rolling:
		return "rolling"
	case Classifying:
		return "classifying"
	case Settling:
		return "settling"
	case Reporting:
		return "reporting"
	case Done:
		return "done"
	case Refused:
		return "refused"
	default:
		return "unknown"
	}
}

// Report is the shared outcome of a roll. Ledger is the ledger the pool was
// drawn against.
type Report struct {
	Kind            Kind          `json:"kind"`
	CharacterID     string        `json:"character_id"`
	CharacterName   string        `json:"character_name"`
	Origin          string        `json:"-"`
	PoolSize        int           `json:"pool_size"`
	Outcome         dice.Outcome  `json:"outcome"`
	Success         bool          `json:"success"`
	RerollAvailable bool          `json:"reroll_available"`
	BrinkConsumed   string        `json:"brink_consumed,omitempty"`
	Ledger          ledger.Ledger `json:"ledger"`
	At              time.Time     `json:"at"`
}

// Level is the severity of a notice.
type Level string

const (
	Info    Level = "info"
	Warning Level = "warning"
)

// Notice is a message for one participant, or for everyone.
type Notice struct {
	Level Level
	Key   string
	Args  []any
}

// Notice keys emitted by this package.
const (
	NoticeBrinkConsumed     = "notice.brink_consumed"
	NoticeBrinkDeleteFailed = "notice.brink_delete_failed"
)

// Reporter posts outcomes. Notify with an empty origin reaches everyone.
type Reporter interface {
	Report(ctx context.Context, r Report)
	Notify(ctx context.Context, origin string, n Notice)
}

// Result describes a finished or refused resolution.
type Result struct {
	Kind        Kind
	State       State
	Trace       []State
	Disposition authority.Disposition
	Report      *Report
}

type run struct {
	result Result
}

func begin(kind Kind) *run {
	return &run{result: Result{Kind: kind, State: Idle, Trace: []State{Idle}}}
}

func (r *run) enter(s State) {
	r.result.State = s
	r.result.Trace = append(r.result.Trace, s)
}

func (r *run) refuse(err error) (Result, error) {
	r.enter(Refused)
	return r.result, err
}

func (r *run) fail(err error) (Result, error) {
	return r.result, err
}

func (r *run) done() (Result, error) {
	r.enter(Done)
	return r.result, nil
}
