/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package memory provides an in-process document store for character sheets
// and table ledgers. Nothing survives a restart.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/tencandles/ledger"
	"github.com/Seednode/tencandles/sheet"
)

// Store keeps every document in maps guarded by one mutex.
type Store struct {
	mu         sync.RWMutex
	characters map[string]sheet.Character
	items      map[string][]sheet.Item // by character, in creation order
	ledgers    map[string]ledger.Ledger
	now        func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		characters: make(map[string]sheet.Character),
		items:      make(map[string][]sheet.Item),
		ledgers:    make(map[string]ledger.Ledger),
		now:        time.Now,
	}
}

func (s *Store) CreateCharacter(ctx context.Context, c sheet.Character) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.characters[c.ID]; ok {
		return sheet.ErrAlreadyExists
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now().UTC()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	s.characters[c.ID] = cloneCharacter(c)

	return nil
}

func (s *Store) GetCharacter(ctx context.Context, id string) (sheet.Character, error) {
	if err := ctx.Err(); err != nil {
		return sheet.Character{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.characters[id]
	if !ok {
		return sheet.Character{}, sheet.ErrNotFound
	}

	return cloneCharacter(c), nil
}

func (s *Store) ListCharacters(ctx context.Context, tableID string) ([]sheet.Character, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]sheet.Character, 0)
	for _, c := range s.characters {
		if c.TableID == tableID {
			out = append(out, cloneCharacter(c))
		}
	}
	slices.SortFunc(out, func(a, b sheet.Character) int {
		if n := a.CreatedAt.Compare(b.CreatedAt); n != 0 {
			return n
		}
		return strings.Compare(a.ID, b.ID)
	})

	return out, nil
}

func (s *Store) UpdateCharacter(ctx context.Context, id string, fn func(*sheet.Character) error) (sheet.Character, error) {
	if err := ctx.Err(); err != nil {
		return sheet.Character{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.characters[id]
	if !ok {
		return sheet.Character{}, sheet.ErrNotFound
	}

	next := cloneCharacter(c)
	if err := fn(&next); err != nil {
		return cloneCharacter(c), err
	}
	next.ID = c.ID
	next.TableID = c.TableID
	next.UpdatedAt = s.now().UTC()
	s.characters[id] = next

	return cloneCharacter(next), nil
}

func (s *Store) CreateItem(ctx context.Context, it sheet.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.characters[it.CharacterID]; !ok {
		return sheet.ErrNotFound
	}
	if _, _, ok := s.findItemLocked(it.ID); ok {
		return sheet.ErrAlreadyExists
	}
	if it.Category.Unique() && slices.ContainsFunc(s.items[it.CharacterID], func(held sheet.Item) bool {
		return held.Category == it.Category
	}) {
		return sheet.ErrAlreadyExists
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = s.now().UTC()
	}
	s.items[it.CharacterID] = append(s.items[it.CharacterID], it)

	return nil
}

func (s *Store) GetItem(ctx context.Context, id string) (sheet.Item, error) {
	if err := ctx.Err(); err != nil {
		return sheet.Item{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	it, _, ok := s.findItemLocked(id)
	if !ok {
		return sheet.Item{}, sheet.ErrNotFound
	}

	return it, nil
}

func (s *Store) ListItems(ctx context.Context, characterID string) ([]sheet.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.items[characterID]), nil
}

func (s *Store) UpdateItem(ctx context.Context, id string, fn func(*sheet.Item) error) (sheet.Item, error) {
	if err := ctx.Err(); err != nil {
		return sheet.Item{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	it, idx, ok := s.findItemLocked(id)
	if !ok {
		return sheet.Item{}, sheet.ErrNotFound
	}

	next := it
	if err := fn(&next); err != nil {
		return it, err
	}
	next.ID = it.ID
	next.CharacterID = it.CharacterID
	next.Category = it.Category
	s.items[it.CharacterID][idx] = next

	return next, nil
}

func (s *Store) DeleteItem(ctx context.Context, characterID, itemID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.items[characterID]
	idx := slices.IndexFunc(items, func(it sheet.Item) bool { return it.ID == itemID })
	if idx < 0 {
		return sheet.ErrNotFound
	}
	s.items[characterID] = slices.Delete(items, idx, idx+1)

	return nil
}

// LoadLedger implements ledger.Store.
func (s *Store) LoadLedger(ctx context.Context, tableID string) (ledger.Ledger, bool, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Ledger{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.ledgers[tableID]
	return l, ok, nil
}

// SaveLedger implements ledger.Store.
func (s *Store) SaveLedger(ctx context.Context, tableID string, l ledger.Ledger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledgers[tableID] = l
	return nil
}

// Close implements io.Closer.
func (s *Store) Close() error {
	return nil
}

func (s *Store) findItemLocked(id string) (sheet.Item, int, bool) {
	for _, items := range s.items {
		for i, it := range items {
			if it.ID == id {
				return it, i, true
			}
		}
	}
	return sheet.Item{}, -1, false
}

func cloneCharacter(c sheet.Character) sheet.Character {
	if c.LastRoll != nil {
		rec := *c.LastRoll
		c.LastRoll = &rec
	}
	return c
}
