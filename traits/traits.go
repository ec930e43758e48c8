/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package traits manages the virtues, vices, moments, brinks and gear a
// character carries, and the hope flag that a moment excludes.
package traits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Seednode/tencandles/sheet"
)

var (
	// ErrAlreadyExists indicates the character already holds a unique trait
	// of that category.
	ErrAlreadyExists = errors.New("trait already exists")

	// ErrMomentConflict indicates hope cannot be enabled while a moment is held.
	ErrMomentConflict = errors.New("hope cannot be enabled while a moment is held")

	// ErrInvalidType indicates an item category that is not accepted here.
	ErrInvalidType = errors.New("invalid item type")

	// ErrNoneAvailable indicates the character has no brink to give up.
	ErrNoneAvailable = errors.New("no brink available")

	// ErrDeleteFailed indicates the store did not complete a deletion.
	ErrDeleteFailed = errors.New("delete failed")
)

// Entry holds the user-editable fields of a new item.
type Entry struct {
	Name        string
	Description string
	Quantity    int
	Weight      float64
}

// Manager applies the per-character creation and exclusion rules on top of
// a document store.
type Manager struct {
	store sheet.Store
	now   func() time.Time
	newID func() string
}

// New returns a manager backed by store.
func New(store sheet.Store) *Manager {
	return &Manager{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// CreateUnique adds a virtue, vice or moment, refusing a second one of the
// same category. Creating a moment turns the character's hope off.
func (m *Manager) CreateUnique(ctx context.Context, characterID string, category sheet.Category, e Entry) (sheet.Item, error) {
	if !category.Unique() {
		return sheet.Item{}, fmt.Errorf("%w: %q", ErrInvalidType, category)
	}

	items, err := m.store.ListItems(ctx, characterID)
	if err != nil {
		return sheet.Item{}, err
	}
	if has(items, category) {
		return sheet.Item{}, fmt.Errorf("%w: %s", ErrAlreadyExists, category)
	}

	it, err := m.create(ctx, characterID, category, e)
	if err != nil {
		if errors.Is(err, sheet.ErrAlreadyExists) {
			return sheet.Item{}, fmt.Errorf("%w: %s", ErrAlreadyExists, category)
		}
		return sheet.Item{}, err
	}

	if category == sheet.CategoryMoment {
		if err := m.OnMomentCreated(ctx, characterID); err != nil {
			return it, err
		}
	}

	return it, nil
}

// CreateBrink adds a brink. A character may hold any number of them.
func (m *Manager) CreateBrink(ctx context.Context, characterID string, e Entry) (sheet.Item, error) {
	return m.create(ctx, characterID, sheet.CategoryBrink, e)
}

// CreateUnlimited adds a piece of gear.
func (m *Manager) CreateUnlimited(ctx context.Context, characterID string, e Entry) (sheet.Item, error) {
	if e.Quantity <= 0 {
		e.Quantity = 1
	}
	if e.Weight < 0 {
		e.Weight = 0
	}
	return m.create(ctx, characterID, sheet.CategoryGear, e)
}

// Create dispatches on category to the matching rule.
func (m *Manager) Create(ctx context.Context, characterID string, category sheet.Category, e Entry) (sheet.Item, error) {
	switch {
	case category.Unique():
		return m.CreateUnique(ctx, characterID, category, e)
	case category == sheet.CategoryBrink:
		return m.CreateBrink(ctx, characterID, e)
	case category == sheet.CategoryGear:
		return m.CreateUnlimited(ctx, characterID, e)
	default:
		return sheet.Item{}, fmt.Errorf("%w: %q", ErrInvalidType, category)
	}
}

func (m *Manager) create(ctx context.Context, characterID string, category sheet.Category, e Entry) (sheet.Item, error) {
	it := sheet.Item{
		ID:          m.newID(),
		CharacterID: characterID,
		Category:    category,
		Name:        strings.TrimSpace(e.Name),
		Description: strings.TrimSpace(e.Description),
		CreatedAt:   m.now().UTC(),
	}
	if category == sheet.CategoryGear {
		it.Quantity = e.Quantity
		it.Weight = e.Weight
	}

	if err := m.store.CreateItem(ctx, it); err != nil {
		return sheet.Item{}, err
	}

	return it, nil
}

// SetHope turns the character's hope die on or off. Hope can't be turned on
// while the character holds a moment.
func (m *Manager) SetHope(ctx context.Context, characterID string, enabled bool) error {
	if enabled {
		items, err := m.store.ListItems(ctx, characterID)
		if err != nil {
			return err
		}
		if has(items, sheet.CategoryMoment) {
			return ErrMomentConflict
		}
	}

	if _, err := m.store.UpdateCharacter(ctx, characterID, func(c *sheet.Character) error {
		c.HopeEnabled = enabled
		return nil
	}); err != nil || !enabled {
		return err
	}

	// A moment created since the check above wins.
	items, err := m.store.ListItems(ctx, characterID)
	if err != nil {
		return err
	}
	if has(items, sheet.CategoryMoment) {
		if err := m.OnMomentCreated(ctx, characterID); err != nil {
			return err
		}
		return ErrMomentConflict
	}

	return nil
}

// OnMomentCreated forces hope off for a character that now holds a moment.
func (m *Manager) OnMomentCreated(ctx context.Context, characterID string) error {
	_, err := m.store.UpdateCharacter(ctx, characterID, func(c *sheet.Character) error {
		c.HopeEnabled = false
		return nil
	})

	return err
}

// DeleteOneBrink removes the most recently listed brink.
func (m *Manager) DeleteOneBrink(ctx context.Context, characterID string) (sheet.Item, error) {
	items, err := m.store.ListItems(ctx, characterID)
	if err != nil {
		return sheet.Item{}, err
	}

	brinks := Brinks(items)
	if len(brinks) == 0 {
		return sheet.Item{}, ErrNoneAvailable
	}
	last := brinks[len(brinks)-1]

	if err := m.delete(ctx, characterID, last.ID); err != nil {
		return sheet.Item{}, err
	}

	return last, nil
}

// DeleteBrink removes the named brink.
func (m *Manager) DeleteBrink(ctx context.Context, characterID, itemID string) (sheet.Item, error) {
	it, err := m.owned(ctx, characterID, itemID)
	if err != nil {
		return sheet.Item{}, err
	}
	if it.Category != sheet.CategoryBrink {
		return sheet.Item{}, fmt.Errorf("%w: %q is not a brink", ErrInvalidType, it.Category)
	}

	if err := m.delete(ctx, characterID, itemID); err != nil {
		return sheet.Item{}, err
	}

	return it, nil
}

// Delete removes any item the character holds.
func (m *Manager) Delete(ctx context.Context, characterID, itemID string) (sheet.Item, error) {
	it, err := m.owned(ctx, characterID, itemID)
	if err != nil {
		return sheet.Item{}, err
	}

	if err := m.delete(ctx, characterID, itemID); err != nil {
		return sheet.Item{}, err
	}

	return it, nil
}

func (m *Manager) delete(ctx context.Context, characterID, itemID string) error {
	if err := m.store.DeleteItem(ctx, characterID, itemID); err != nil {
		return fmt.Errorf("%w: %w", ErrDeleteFailed, err)
	}
	return nil
}

func (m *Manager) owned(ctx context.Context, characterID, itemID string) (sheet.Item, error) {
	it, err := m.store.GetItem(ctx, itemID)
	if err != nil {
		return sheet.Item{}, err
	}
	if it.CharacterID != characterID {
		return sheet.Item{}, sheet.ErrNotFound
	}
	return it, nil
}

// UpdateGear edits a piece of gear in place.
func (m *Manager) UpdateGear(ctx context.Context, characterID, itemID string, e Entry) (sheet.Item, error) {
	it, err := m.owned(ctx, characterID, itemID)
	if err != nil {
		return sheet.Item{}, err
	}
	if it.Category != sheet.CategoryGear {
		return sheet.Item{}, fmt.Errorf("%w: %q is not gear", ErrInvalidType, it.Category)
	}

	return m.store.UpdateItem(ctx, itemID, func(it *sheet.Item) error {
		if name := strings.TrimSpace(e.Name); name != "" {
			it.Name = name
		}
		it.Description = strings.TrimSpace(e.Description)
		it.Quantity = max(1, e.Quantity)
		it.Weight = max(0, e.Weight)
		return nil
	})
}

// Candidate is an item document from outside the table, shaped like the
// host's item export: a name, a type, and a system block of fields.
type Candidate struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	System struct {
		Description string  `json:"description"`
		Quantity    int     `json:"quantity"`
		Weight      float64 `json:"weight"`
	} `json:"system"`
}

// Import adds a candidate item to the character, applying the same rules as
// creating it by hand. Anything that is not a known category is refused.
func (m *Manager) Import(ctx context.Context, characterID string, c Candidate) (sheet.Item, error) {
	category := sheet.Category(strings.ToLower(strings.TrimSpace(c.Type)))
	if !category.Valid() {
		return sheet.Item{}, fmt.Errorf("%w: %q", ErrInvalidType, c.Type)
	}

	return m.Create(ctx, characterID, category, Entry{
		Name:        c.Name,
		Description: c.System.Description,
		Quantity:    c.System.Quantity,
		Weight:      c.System.Weight,
	})
}

// HasVirtueOrVice reports whether items include a virtue or a vice.
func HasVirtueOrVice(items []sheet.Item) bool {
	return has(items, sheet.CategoryVirtue) || has(items, sheet.CategoryVice)
}

// HasMoment reports whether items include a moment.
func HasMoment(items []sheet.Item) bool {
	return has(items, sheet.CategoryMoment)
}

// BonusEligible reports whether the character rolls the hope die.
func BonusEligible(c sheet.Character, items []sheet.Item) bool {
	return c.HopeEnabled && !HasMoment(items)
}

// Brinks returns the brinks in items, in list order.
func Brinks(items []sheet.Item) []sheet.Item {
	var out []sheet.Item
	for _, it := range items {
		if it.Category == sheet.CategoryBrink {
			out = append(out, it)
		}
	}
	return out
}

func has(items []sheet.Item, category sheet.Category) bool {
	for _, it := range items {
		if it.Category == category {
			return true
		}
	}
	return false
}
