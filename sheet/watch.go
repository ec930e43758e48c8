/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package sheet

import (
	"context"
	"sync"
)

// ChangeKind describes what happened to a document.
type ChangeKind int

const (
	CharacterCreated ChangeKind = iota + 1
	CharacterUpdated
	ItemCreated
	ItemUpdated
	ItemDeleted
)

// Change is delivered to subscribers after a successful mutation.
type Change struct {
	Kind        ChangeKind
	CharacterID string
	ItemID      string
}

// Watched wraps a Store and notifies subscribers of every change made
// through it.
type Watched struct {
	Store

	mu     sync.Mutex
	nextID int
	subs   map[int]func(Change)
}

// Watch wraps s.
func Watch(s Store) *Watched {
	return &Watched{Store: s, subs: make(map[int]func(Change))}
}

// Subscribe registers fn and returns a function that removes it.
func (w *Watched) Subscribe(fn func(Change)) (cancel func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++
	w.subs[id] = fn

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subs, id)
	}
}

func (w *Watched) publish(c Change) {
	w.mu.Lock()
	fns := make([]func(Change), 0, len(w.subs))
	for _, fn := range w.subs {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

func (w *Watched) CreateCharacter(ctx context.Context, c Character) error {
	if err := w.Store.CreateCharacter(ctx, c); err != nil {
		return err
	}
	w.publish(Change{Kind: CharacterCreated, CharacterID: c.ID})
	return nil
}

func (w *Watched) UpdateCharacter(ctx context.Context, id string, fn func(*Character) error) (Character, error) {
	c, err := w.Store.UpdateCharacter(ctx, id, fn)
	if err != nil {
		return c, err
	}
	w.publish(Change{Kind: CharacterUpdated, CharacterID: id})
	return c, nil
}

func (w *Watched) CreateItem(ctx context.Context, it Item) error {
	if err := w.Store.CreateItem(ctx, it); err != nil {
		return err
	}
	w.publish(Change{Kind: ItemCreated, CharacterID: it.CharacterID, ItemID: it.ID})
	return nil
}

func (w *Watched) UpdateItem(ctx context.Context, id string, fn func(*Item) error) (Item, error) {
	it, err := w.Store.UpdateItem(ctx, id, fn)
	if err != nil {
		return it, err
	}
	w.publish(Change{Kind: ItemUpdated, CharacterID: it.CharacterID, ItemID: id})
	return it, nil
}

func (w *Watched) DeleteItem(ctx context.Context, characterID, itemID string) error {
	if err := w.Store.DeleteItem(ctx, characterID, itemID); err != nil {
		return err
	}
	w.publish(Change{Kind: ItemDeleted, CharacterID: characterID, ItemID: itemID})
	return nil
}
