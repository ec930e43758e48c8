package sheet_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/tencandles/sheet"
	"github.com/Seednode/tencandles/storage/memory"
)

func TestWatchPublishesChanges(t *testing.T) {
	ctx := context.Background()
	w := sheet.Watch(memory.New())

	var got []sheet.Change
	cancel := w.Subscribe(func(c sheet.Change) {
		got = append(got, c)
	})

	require.NoError(t, w.CreateCharacter(ctx, sheet.Character{ID: "c1", TableID: "t1", Name: "Ada"}))
	_, err := w.UpdateCharacter(ctx, "c1", func(c *sheet.Character) error {
		c.HopeEnabled = true
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, w.CreateItem(ctx, sheet.Item{ID: "i1", CharacterID: "c1", Category: sheet.CategoryGear, Name: "rope"}))
	_, err = w.UpdateItem(ctx, "i1", func(it *sheet.Item) error {
		it.Quantity = 2
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, w.DeleteItem(ctx, "c1", "i1"))

	assert.Equal(t, []sheet.Change{
		{Kind: sheet.CharacterCreated, CharacterID: "c1"},
		{Kind: sheet.CharacterUpdated, CharacterID: "c1"},
		{Kind: sheet.ItemCreated, CharacterID: "c1", ItemID: "i1"},
		{Kind: sheet.ItemUpdated, CharacterID: "c1", ItemID: "i1"},
		{Kind: sheet.ItemDeleted, CharacterID: "c1", ItemID: "i1"},
	}, got)

	cancel()
	_, err = w.UpdateCharacter(ctx, "c1", func(c *sheet.Character) error { return nil })
	require.NoError(t, err)
	assert.Len(t, got, 5, "cancelled subscribers hear nothing")
}

func TestWatchSkipsFailedMutations(t *testing.T) {
	ctx := context.Background()
	w := sheet.Watch(memory.New())

	calls := 0
	w.Subscribe(func(sheet.Change) { calls++ })

	_, err := w.UpdateCharacter(ctx, "missing", func(c *sheet.Character) error { return nil })
	assert.ErrorIs(t, err, sheet.ErrNotFound)
	assert.ErrorIs(t, w.DeleteItem(ctx, "c1", "missing"), sheet.ErrNotFound)
	assert.Zero(t, calls)
}

func TestCanEdit(t *testing.T) {
	c := sheet.Character{OwnerID: "p1"}

	assert.True(t, c.CanEdit("p1", false))
	assert.True(t, c.CanEdit("p2", true))
	assert.False(t, c.CanEdit("p2", false))
	assert.False(t, sheet.Character{}.CanEdit("", false))
}

func TestTotalWeight(t *testing.T) {
	items := []sheet.Item{
		{Category: sheet.CategoryGear, Quantity: 2, Weight: 1.5},
		{Category: sheet.CategoryGear, Weight: 4},
		{Category: sheet.CategoryVirtue, Weight: 100},
	}

	assert.Equal(t, 7.0, sheet.TotalWeight(items))
}
