package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/tencandles/ledger"
	"github.com/Seednode/tencandles/sheet"
)

func TestCharacterRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.CreateCharacter(ctx, sheet.Character{ID: "c1", TableID: "t1", OwnerID: "p1", Name: "Ada"}))
	assert.ErrorIs(t, s.CreateCharacter(ctx, sheet.Character{ID: "c1", TableID: "t1"}), sheet.ErrAlreadyExists)

	updated, err := s.UpdateCharacter(ctx, "c1", func(c *sheet.Character) error {
		c.HopeEnabled = true
		c.LastRoll = &sheet.RollRecord{PoolSize: 7, FailureCount: 2}
		return nil
	})
	require.NoError(t, err)
	assert.True(t, updated.HopeEnabled)

	// Mutating the returned record must not leak into the store.
	updated.LastRoll.PoolSize = 99

	got, err := s.GetCharacter(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got.LastRoll)
	assert.Equal(t, 7, got.LastRoll.PoolSize)

	list, err := s.ListCharacters(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = s.GetCharacter(ctx, "missing")
	assert.ErrorIs(t, err, sheet.ErrNotFound)
}

func TestItemsKeepCreationOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateCharacter(ctx, sheet.Character{ID: "c1", TableID: "t1"}))

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.CreateItem(ctx, sheet.Item{ID: id, CharacterID: "c1", Category: sheet.CategoryBrink}))
	}
	require.NoError(t, s.DeleteItem(ctx, "c1", "b"))

	items, err := s.ListItems(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "c", items[1].ID)

	assert.ErrorIs(t, s.DeleteItem(ctx, "c1", "b"), sheet.ErrNotFound)
	assert.ErrorIs(t, s.CreateItem(ctx, sheet.Item{ID: "x", CharacterID: "nobody"}), sheet.ErrNotFound)
}

func TestUniqueCategories(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateCharacter(ctx, sheet.Character{ID: "c1", TableID: "t1"}))
	require.NoError(t, s.CreateCharacter(ctx, sheet.Character{ID: "c2", TableID: "t1"}))

	require.NoError(t, s.CreateItem(ctx, sheet.Item{ID: "i1", CharacterID: "c1", Category: sheet.CategoryVirtue, Name: "brave"}))
	assert.ErrorIs(t, s.CreateItem(ctx, sheet.Item{ID: "i2", CharacterID: "c1", Category: sheet.CategoryVirtue, Name: "kind"}), sheet.ErrAlreadyExists)

	require.NoError(t, s.CreateItem(ctx, sheet.Item{ID: "i3", CharacterID: "c2", Category: sheet.CategoryVirtue, Name: "kind"}))
	require.NoError(t, s.CreateItem(ctx, sheet.Item{ID: "i4", CharacterID: "c1", Category: sheet.CategoryBrink, Name: "a"}))
	require.NoError(t, s.CreateItem(ctx, sheet.Item{ID: "i5", CharacterID: "c1", Category: sheet.CategoryBrink, Name: "b"}))

	items, err := s.ListItems(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestUpdateItemKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateCharacter(ctx, sheet.Character{ID: "c1", TableID: "t1"}))
	require.NoError(t, s.CreateItem(ctx, sheet.Item{ID: "g1", CharacterID: "c1", Category: sheet.CategoryGear, Quantity: 1}))

	it, err := s.UpdateItem(ctx, "g1", func(it *sheet.Item) error {
		it.Quantity = 3
		it.Category = sheet.CategoryVirtue
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, it.Quantity)
	assert.Equal(t, sheet.CategoryGear, it.Category)
}

func TestLedgerRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, ok, err := s.LoadLedger(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SaveLedger(ctx, "t1", ledger.Ledger{Total: 6, Penalty: 2, Capacity: 10}))
	l, ok, err := s.LoadLedger(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 6, l.Total)
}
