/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package authority

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Handler holds the mutation logic the elevated participant runs for each
// intent kind. origin identifies the participant that issued the intent.
type Handler interface {
	ApplyFailures(ctx context.Context, origin string, p FailuresPayload) error
	RefundFailures(ctx context.Context, origin string, p FailuresPayload) error
	PerformRerollOrRepeat(ctx context.Context, origin string, p ResolvePayload) error
	DeleteBrink(ctx context.Context, origin string, p DeleteBrinkPayload) error
}

// Receipt describes what the listener did with a message.
type Receipt struct {
	ID        string
	Origin    string
	Kind      Kind
	Duplicate bool
}

// Listener is the elevated participant's side of the channel. It applies
// each message at most once per origin sequence number.
type Listener struct {
	handler Handler

	mu   sync.Mutex
	last map[string]uint64
}

// NewListener returns a listener that applies intents with h.
func NewListener(h Handler) *Listener {
	return &Listener{handler: h, last: make(map[string]uint64)}
}

// Handle decodes and applies a serialized message.
func (l *Listener) Handle(ctx context.Context, data []byte) (Receipt, error) {
	msg, err := Decode(data)
	if err != nil {
		return Receipt{}, err
	}

	return l.Apply(ctx, msg)
}

// Apply applies msg unless its sequence number has already been seen from
// the same origin. Redelivered and out-of-order messages are ignored.
func (l *Listener) Apply(ctx context.Context, msg Message) (Receipt, error) {
	receipt := Receipt{ID: msg.ID, Origin: msg.Origin, Kind: msg.Kind}

	if msg.Seq != 0 {
		l.mu.Lock()
		if msg.Seq <= l.last[msg.Origin] {
			l.mu.Unlock()
			receipt.Duplicate = true
			return receipt, nil
		}
		l.last[msg.Origin] = msg.Seq
		l.mu.Unlock()
	}

	return receipt, dispatch(ctx, l.handler, msg)
}

// Forget drops the sequence state for an origin that has gone away.
func (l *Listener) Forget(origin string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.last, origin)
}

func dispatch(ctx context.Context, h Handler, msg Message) error {
	switch msg.Kind {
	case KindApplyFailures:
		var p FailuresPayload
		if err := decodePayload(msg, &p); err != nil {
			return err
		}
		if err := p.validate(); err != nil {
			return err
		}
		return h.ApplyFailures(ctx, msg.Origin, p)

	case KindRefundFailures:
		var p FailuresPayload
		if err := decodePayload(msg, &p); err != nil {
			return err
		}
		if err := p.validate(); err != nil {
			return err
		}
		return h.RefundFailures(ctx, msg.Origin, p)

	case KindPerformRerollOrRepeat:
		var p ResolvePayload
		if err := decodePayload(msg, &p); err != nil {
			return err
		}
		if err := p.validate(); err != nil {
			return err
		}
		return h.PerformRerollOrRepeat(ctx, msg.Origin, p)

	case KindDeleteBrink:
		var p DeleteBrinkPayload
		if err := decodePayload(msg, &p); err != nil {
			return err
		}
		if err := p.validate(); err != nil {
			return err
		}
		return h.DeleteBrink(ctx, msg.Origin, p)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, msg.Kind)
	}
}

func decodePayload(msg Message, v any) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidPayload, msg.Kind, err)
	}
	return nil
}
