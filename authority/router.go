/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package authority decides where a mutation is applied. The elevated
// participant applies intents itself; everyone else forwards them to it.
package authority

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
)

// ErrNoPublisher indicates a peer router without a channel to publish on.
var ErrNoPublisher = errors.New("no publisher configured")

// Disposition is where a routed intent went.
type Disposition int

const (
	Applied Disposition = iota + 1
	Forwarded
)

func (d Disposition) String() string {
	switch d {
	case Applied:
		return "applied"
	case Forwarded:
		return "forwarded"
	default:
		return "none"
	}
}

// Publisher puts a message on the channel to the elevated participant.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, msg Message) error

func (f PublisherFunc) Publish(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Router routes one participant's intents.
type Router struct {
	origin   string
	listener *Listener
	pub      Publisher

	seq atomic.Uint64

	mu      sync.Mutex
	pending map[string]Kind
}

// NewElevated returns a router that applies intents through listener, the
// same path remote intents take.
func NewElevated(origin string, listener *Listener) *Router {
	return &Router{origin: origin, listener: listener, pending: make(map[string]Kind)}
}

// NewPeer returns a router that forwards every intent through pub.
func NewPeer(origin string, pub Publisher) *Router {
	return &Router{origin: origin, pub: pub, pending: make(map[string]Kind)}
}

// Origin returns the participant id stamped on outgoing messages.
func (r *Router) Origin() string {
	return r.origin
}

// Elevated reports whether this router applies intents locally.
func (r *Router) Elevated() bool {
	return r.listener != nil
}

// Route applies or forwards in. Forwarding returns as soon as the message is
// published; the outcome arrives, if at all, through the elevated
// participant's broadcasts.
func (r *Router) Route(ctx context.Context, in Intent) (Disposition, error) {
	msg, err := r.address(in)
	if err != nil {
		return 0, err
	}

	if r.listener != nil {
		if _, err := r.listener.Apply(ctx, msg); err != nil {
			return Applied, err
		}
		return Applied, nil
	}

	if r.pub == nil {
		return 0, ErrNoPublisher
	}

	r.mu.Lock()
	r.pending[msg.ID] = msg.Kind
	r.mu.Unlock()

	if err := r.pub.Publish(ctx, msg); err != nil {
		r.Acknowledge(msg.ID)
		return 0, fmt.Errorf("publish %s: %w", msg.Kind, err)
	}

	return Forwarded, nil
}

func (r *Router) address(in Intent) (Message, error) {
	payload, err := json.Marshal(in.Payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s: %w", in.Kind, err)
	}

	seq := r.seq.Add(1)

	return Message{
		Kind:    in.Kind,
		ID:      r.origin + "-" + strconv.FormatUint(seq, 10),
		Origin:  r.origin,
		Seq:     seq,
		Payload: payload,
	}, nil
}

// Acknowledge marks a forwarded intent as received by the elevated
// participant.
func (r *Router) Acknowledge(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.pending, id)
}

// Pending returns the number of forwarded intents not yet acknowledged.
func (r *Router) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.pending)
}
