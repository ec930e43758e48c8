/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package authority

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind indicates a message kind the listener cannot apply.
	ErrUnknownKind = errors.New("unknown intent kind")

	// ErrInvalidPayload indicates a payload that fails validation.
	ErrInvalidPayload = errors.New("invalid intent payload")
)

// Kind names a mutating intent.
type Kind string

const (
	KindApplyFailures         Kind = "applyFailures"
	KindRefundFailures        Kind = "refundFailures"
	KindPerformRerollOrRepeat Kind = "performRerollOrRepeat"
	KindDeleteBrink           Kind = "deleteBrink"
)

// Message is an intent as it travels between participants.
type Message struct {
	Kind    Kind            `json:"kind"`
	ID      string          `json:"id"`
	Origin  string          `json:"origin"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

// FailuresPayload carries a count of failed dice.
type FailuresPayload struct {
	Failures int `json:"failures"`
}

// ResolvePayload asks the elevated participant to roll and settle a reroll
// or a repeat on a character's behalf.
type ResolvePayload struct {
	PoolSize           int    `json:"poolSize"`
	CharacterID        string `json:"characterId"`
	OriginalFailures   int    `json:"originalFailures"`
	IncludeBonusDie    bool   `json:"includeBonusDie"`
	IsRepeat           bool   `json:"isRepeat"`
	ConsumeBrinkOnFail bool   `json:"consumeBrinkOnFail"`
}

// DeleteBrinkPayload names a brink to delete.
type DeleteBrinkPayload struct {
	CharacterID string `json:"characterId"`
	ItemID      string `json:"itemId"`
}

// Intent is a mutation before it is addressed and sequenced.
type Intent struct {
	Kind    Kind
	Payload any
}

// ApplyFailures returns an intent adding n to the penalty.
func ApplyFailures(n int) Intent {
	return Intent{Kind: KindApplyFailures, Payload: FailuresPayload{Failures: n}}
}

// RefundFailures returns an intent subtracting n from the penalty.
func RefundFailures(n int) Intent {
	return Intent{Kind: KindRefundFailures, Payload: FailuresPayload{Failures: n}}
}

// PerformRerollOrRepeat returns an intent resolving a reroll or repeat.
func PerformRerollOrRepeat(p ResolvePayload) Intent {
	return Intent{Kind: KindPerformRerollOrRepeat, Payload: p}
}

// DeleteBrink returns an intent deleting the named brink.
func DeleteBrink(characterID, itemID string) Intent {
	return Intent{Kind: KindDeleteBrink, Payload: DeleteBrinkPayload{CharacterID: characterID, ItemID: itemID}}
}

// Decode parses a serialized message.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode intent: %w", err)
	}
	if msg.Kind == "" {
		return Message{}, fmt.Errorf("%w: missing kind", ErrUnknownKind)
	}
	return msg, nil
}

func (p FailuresPayload) validate() error {
	if p.Failures < 0 {
		return fmt.Errorf("%w: negative failures", ErrInvalidPayload)
	}
	return nil
}

func (p ResolvePayload) validate() error {
	switch {
	case p.PoolSize <= 0:
		return fmt.Errorf("%w: pool size must be positive", ErrInvalidPayload)
	case p.OriginalFailures < 0:
		return fmt.Errorf("%w: negative original failures", ErrInvalidPayload)
	case p.CharacterID == "":
		return fmt.Errorf("%w: missing character", ErrInvalidPayload)
	}
	return nil
}

func (p DeleteBrinkPayload) validate() error {
	if p.CharacterID == "" || p.ItemID == "" {
		return fmt.Errorf("%w: missing character or item", ErrInvalidPayload)
	}
	return nil
}
