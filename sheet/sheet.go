/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package sheet holds the character documents of a table: characters, their
// traits and gear, and each character's latest roll.
package sheet

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrAlreadyExists indicates a document or unique trait already exists.
	ErrAlreadyExists = errors.New("document already exists")

	// ErrPermissionDenied indicates the caller may not edit the character.
	ErrPermissionDenied = errors.New("permission denied")
)

// Category is the kind of an item carried by a character.
type Category string

const (
	CategoryVirtue Category = "virtue"
	CategoryVice   Category = "vice"
	CategoryBrink  Category = "brink"
	CategoryMoment Category = "moment"
	CategoryGear   Category = "gear"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryVirtue, CategoryVice, CategoryMoment, CategoryBrink, CategoryGear}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryVirtue, CategoryVice, CategoryBrink, CategoryMoment, CategoryGear:
		return true
	}
	return false
}

// Unique reports whether a character may hold at most one item of c.
func (c Category) Unique() bool {
	switch c {
	case CategoryVirtue, CategoryVice, CategoryMoment:
		return true
	}
	return false
}

// RollRecord is the latest roll a character made.
type RollRecord struct {
	PoolSize        int       `json:"pool_size"`
	FailureCount    int       `json:"failure_count"`
	BonusDieApplied bool      `json:"bonus_die_applied"`
	Rerolled        bool      `json:"rerolled"` // a roll buys one reroll
	Timestamp       time.Time `json:"timestamp"`
}

// Character is a player character at a table.
type Character struct {
	ID          string      `json:"id"`
	TableID     string      `json:"table_id"`
	OwnerID     string      `json:"-"`
	Name        string      `json:"name"`
	HopeEnabled bool        `json:"hope_enabled"`
	LastRoll    *RollRecord `json:"last_roll,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// CanEdit reports whether playerID may edit c. The GM may edit anything.
func (c Character) CanEdit(playerID string, gm bool) bool {
	return gm || (playerID != "" && playerID == c.OwnerID)
}

// Item is a trait or piece of gear carried by a character.
type Item struct {
	ID          string    `json:"id"`
	CharacterID string    `json:"character_id"`
	Category    Category  `json:"category"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Quantity    int       `json:"quantity,omitempty"`
	Weight      float64   `json:"weight,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TotalWeight sums weight times quantity across gear. A zero quantity counts
// as one.
func TotalWeight(items []Item) float64 {
	total := 0.0
	for _, it := range items {
		if it.Category != CategoryGear {
			continue
		}
		quantity := it.Quantity
		if quantity == 0 {
			quantity = 1
		}
		total += it.Weight * float64(quantity)
	}
	return total
}

// Store is the document store behind character sheets. ListItems returns
// items in creation order.
type Store interface {
	CreateCharacter(ctx context.Context, c Character) error
	GetCharacter(ctx context.Context, id string) (Character, error)
	ListCharacters(ctx context.Context, tableID string) ([]Character, error)
	UpdateCharacter(ctx context.Context, id string, fn func(*Character) error) (Character, error)

	CreateItem(ctx context.Context, it Item) error
	GetItem(ctx context.Context, id string) (Item, error)
	ListItems(ctx context.Context, characterID string) ([]Item, error)
	UpdateItem(ctx context.Context, id string, fn func(*Item) error) (Item, error)
	DeleteItem(ctx context.Context, characterID, itemID string) error
}
