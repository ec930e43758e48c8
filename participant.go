/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/Seednode/tencandles/authority"
	"github.com/Seednode/tencandles/i18n"
	"github.com/Seednode/tencandles/ledger"
	"github.com/Seednode/tencandles/resolution"
	"github.com/Seednode/tencandles/sheet"
	"github.com/Seednode/tencandles/traits"
)

const maxNameLength = 80

// Client is one connected participant. Each keeps its own view of the
// candles and forwards its mutations to the table loop.
type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
	origin   string

	printer *i18n.Printer
	limiter *rate.Limiter

	mirror   *ledger.Mirror
	router   *authority.Router
	protocol *resolution.Protocol
}

func newClient(cfg *Config, t *Table, conn *websocket.Conn, playerID string, printer *i18n.Printer) *Client {
	c := &Client{
		conn:     conn,
		send:     make(chan any, 32),
		playerID: playerID,
		origin:   uuid.NewString(),
		printer:  printer,
		limiter:  rate.NewLimiter(rate.Limit(cfg.actionRate), cfg.actionBurst),
		mirror:   ledger.NewMirror(t.ledger.Snapshot()),
	}

	c.router = authority.NewPeer(c.origin, t.publisher(c))
	c.protocol = resolution.NewProtocol(c.mirror, t.dice, c.router, t.store, t)

	return c
}

func (c *Client) readPump(t *Table) {
	defer func() {
		t.leave(c)
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		if !c.limiter.Allow() {
			t.notify(c, errRateLimited)
			continue
		}

		// The GM acts as the table itself, so its actions run in the
		// table loop.
		if t.isGM(c) {
			if !t.submit(c, msg) {
				return
			}
			continue
		}

		t.dispatch(c, msg, false)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// dispatch performs msg for c and reports any refusal back to it.
func (t *Table) dispatch(c *Client, msg ClientMessage, elevated bool) {
	t.touch()

	err := t.perform(t.ctx, c, msg, elevated)
	if err == nil {
		return
	}

	logf(t.cfg, "TABLE: %s refused %s from %s: %v", t.id, msg.Type, c.origin, err)
	t.notify(c, err)

	// The client flipped its checkbox optimistically.
	if msg.Type == msgSetHope {
		t.sendCharacters(c)
	}
}

func (t *Table) perform(ctx context.Context, c *Client, msg ClientMessage, elevated bool) error {
	if gmOnly(msg.Type) && !elevated {
		return errGMOnly
	}

	protocol, router := c.protocol, c.router
	if elevated {
		protocol, router = t.elevated, t.router
	}

	switch msg.Type {
	case msgCreateCharacter:
		return t.createCharacter(ctx, c, msg.Name)

	case msgExtinguish:
		return t.extinguish(ctx)

	case msgToggleCandle:
		if msg.Index == nil {
			return errBadRequest
		}
		return t.toggleCandle(ctx, *msg.Index)

	case msgSetPenalty:
		if msg.Penalty == nil {
			return errBadRequest
		}
		_, err := t.ledger.SetPenalty(ctx, *msg.Penalty)
		return err

	case msgResetCandles:
		l, err := t.ledger.Reset(ctx)
		if err != nil {
			return err
		}
		t.narrate(i18n.CandlesReset, l.Total)
		return nil

	case msgRoll, msgReroll, msgRepeat, msgSetHope, msgAddItem, msgUpdateGear, msgDeleteItem, msgImportItem:
		// Below.

	default:
		return nil
	}

	if err := t.checkEditable(ctx, c, msg.CharacterID, elevated); err != nil {
		return err
	}

	switch msg.Type {
	case msgRoll:
		_, err := protocol.Roll(ctx, msg.CharacterID)
		return err

	case msgReroll:
		_, err := protocol.Reroll(ctx, msg.CharacterID)
		return err

	case msgRepeat:
		_, err := protocol.Repeat(ctx, msg.CharacterID)
		return err

	case msgSetHope:
		if msg.Enabled == nil {
			return errBadRequest
		}
		return t.traits.SetHope(ctx, msg.CharacterID, *msg.Enabled)

	case msgAddItem:
		_, err := t.traits.Create(ctx, msg.CharacterID, sheet.Category(msg.Category), entryFrom(msg))
		return err

	case msgUpdateGear:
		_, err := t.traits.UpdateGear(ctx, msg.CharacterID, msg.ItemID, entryFrom(msg))
		return err

	case msgDeleteItem:
		return t.deleteItem(ctx, router, msg.CharacterID, msg.ItemID)

	case msgImportItem:
		var candidate traits.Candidate
		if err := json.Unmarshal(msg.Item, &candidate); err != nil {
			return fmt.Errorf("%w: %w", errBadRequest, err)
		}

		it, err := t.traits.Import(ctx, msg.CharacterID, candidate)
		if err != nil {
			return err
		}

		t.Notify(ctx, router.Origin(), resolution.Notice{
			Level: resolution.Info,
			Key:   i18n.ItemAdded,
			Args:  []any{it.Name, it.Category},
		})
		return nil
	}

	return nil
}

func entryFrom(msg ClientMessage) traits.Entry {
	return traits.Entry{
		Name:        msg.Name,
		Description: msg.Description,
		Quantity:    msg.Quantity,
		Weight:      msg.Weight,
	}
}

func (t *Table) checkEditable(ctx context.Context, c *Client, characterID string, elevated bool) error {
	if characterID == "" {
		return errBadRequest
	}

	ch, err := t.store.GetCharacter(ctx, characterID)
	if err != nil {
		return err
	}
	if ch.TableID != t.id {
		return sheet.ErrNotFound
	}
	if !ch.CanEdit(c.playerID, elevated) {
		return sheet.ErrPermissionDenied
	}

	return nil
}

func (t *Table) createCharacter(ctx context.Context, c *Client, name string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLength {
		return errBadRequest
	}

	now := time.Now().UTC()

	err := t.store.CreateCharacter(ctx, sheet.Character{
		ID:        uuid.NewString(),
		TableID:   t.id,
		OwnerID:   c.playerID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return err
	}

	logf(t.cfg, "TABLE: %s player %s created %q", t.id, c.playerID, name)

	return nil
}

// deleteItem removes a trait. Giving up a brink goes through the table.
func (t *Table) deleteItem(ctx context.Context, router *authority.Router, characterID, itemID string) error {
	it, err := t.store.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if it.CharacterID != characterID {
		return sheet.ErrNotFound
	}

	if it.Category == sheet.CategoryBrink {
		_, err := router.Route(ctx, authority.DeleteBrink(characterID, itemID))
		return err
	}

	_, err = t.traits.Delete(ctx, characterID, itemID)
	return err
}

func (t *Table) extinguish(ctx context.Context) error {
	l, err := t.ledger.ExtinguishOne(ctx)
	if err != nil {
		return err
	}

	t.narrateExtinguished(l)

	return nil
}

func (t *Table) narrateExtinguished(l ledger.Ledger) {
	if l.Total > 0 {
		t.narrate(i18n.CandleOut, l.Total)
		return
	}
	t.narrate(i18n.LastCandleOut)
}

// toggleCandle handles a click on one of the candles: the last lit one goes
// out, an unlit one lights everything up to it.
func (t *Table) toggleCandle(ctx context.Context, index int) error {
	before := t.ledger.Current()

	l, changed, err := t.ledger.Toggle(ctx, index)
	if err != nil || !changed {
		return err
	}

	if l.Total < before.Total {
		t.narrateExtinguished(l)
	} else {
		t.narrate(i18n.CandlesLit, l.Total)
	}

	return nil
}
