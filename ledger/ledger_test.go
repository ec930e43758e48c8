package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsableClampsAtZero(t *testing.T) {
	for total := 0; total <= 10; total++ {
		for penalty := 0; penalty <= 15; penalty++ {
			l := Ledger{Total: total, Penalty: penalty, Capacity: 10}
			assert.Equal(t, max(0, total-penalty), l.Usable())
			assert.LessOrEqual(t, l.Usable(), l.Total)
		}
	}
}

func TestNewDefaultsCapacity(t *testing.T) {
	assert.Equal(t, Ledger{Total: 10, Capacity: 10}, New(0))
	assert.Equal(t, Ledger{Total: 4, Capacity: 4}, New(4))
}

func TestCheckRoll(t *testing.T) {
	assert.NoError(t, Ledger{Total: 10}.CheckRoll())
	assert.ErrorIs(t, Ledger{Total: 0}.CheckRoll(), ErrNoUnitsRemaining)
	assert.ErrorIs(t, Ledger{Total: 10, Penalty: 10}.CheckRoll(), ErrPoolExhausted)
	assert.ErrorIs(t, Ledger{Total: 3, Penalty: 5}.CheckRoll(), ErrPoolExhausted)
}

func TestExtinguishOne(t *testing.T) {
	l := Ledger{Total: 1, Penalty: 1, Capacity: 10}
	require.NoError(t, l.ExtinguishOne())
	assert.Equal(t, 0, l.Total)
	assert.Equal(t, 0, l.Penalty)

	assert.ErrorIs(t, l.ExtinguishOne(), ErrNoUnitsRemaining)
	assert.Equal(t, Ledger{Total: 0, Penalty: 0, Capacity: 10}, l)
	assert.ErrorIs(t, l.CheckRoll(), ErrNoUnitsRemaining)
}

func TestExtinguishClearsPenalty(t *testing.T) {
	l := Ledger{Total: 7, Penalty: 4, Capacity: 10}
	require.NoError(t, l.ExtinguishOne())
	assert.Equal(t, Ledger{Total: 6, Penalty: 0, Capacity: 10}, l)
}

func TestApplyThenRefundRestoresPenalty(t *testing.T) {
	for prior := 0; prior < 5; prior++ {
		for n := 0; n < 8; n++ {
			l := Ledger{Total: 10, Penalty: prior, Capacity: 10}
			require.NoError(t, l.ApplyFailures(n))
			require.NoError(t, l.RefundFailures(n))
			assert.Equal(t, prior, l.Penalty)
		}
	}
}

func TestRefundFloorsAtZero(t *testing.T) {
	l := Ledger{Total: 10, Penalty: 2}
	require.NoError(t, l.RefundFailures(5))
	assert.Equal(t, 0, l.Penalty)
}

func TestApplyFailuresDoesNotClamp(t *testing.T) {
	l := Ledger{Total: 3, Penalty: 2}
	require.NoError(t, l.ApplyFailures(4))
	assert.Equal(t, 6, l.Penalty)
	assert.Equal(t, 0, l.Usable())
}

func TestNegativeCountsRejected(t *testing.T) {
	l := Ledger{Total: 10, Penalty: 2}
	assert.ErrorIs(t, l.ApplyFailures(-1), ErrInvalidCount)
	assert.ErrorIs(t, l.RefundFailures(-1), ErrInvalidCount)
	assert.Equal(t, 2, l.Penalty)
}

func TestSetPenaltyClamps(t *testing.T) {
	l := Ledger{Total: 6}
	assert.Equal(t, 6, l.SetPenalty(9))
	assert.Equal(t, 0, l.SetPenalty(-3))
	assert.Equal(t, 2, l.SetPenalty(2))
}

func TestIgniteUpTo(t *testing.T) {
	l := Ledger{Total: 3, Penalty: 2, Capacity: 10}
	require.NoError(t, l.IgniteUpTo(6))
	assert.Equal(t, 7, l.Total)
	assert.Equal(t, 2, l.Penalty)

	require.NoError(t, l.IgniteUpTo(1))
	assert.Equal(t, 2, l.Total)
	assert.Equal(t, 0, l.Penalty, "lowering the total clears the penalty")

	assert.ErrorIs(t, l.IgniteUpTo(10), ErrInvalidIndex)
	assert.ErrorIs(t, l.IgniteUpTo(-1), ErrInvalidIndex)
}

func TestToggle(t *testing.T) {
	l := Ledger{Total: 5, Penalty: 1, Capacity: 10}

	changed, err := l.Toggle(2)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 5, l.Total)

	changed, err = l.Toggle(4)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, Ledger{Total: 4, Penalty: 0, Capacity: 10}, l)

	changed, err = l.Toggle(8)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 9, l.Total)
}

func TestReset(t *testing.T) {
	l := Ledger{Total: 2, Penalty: 1, Capacity: 8}
	l.Reset()
	assert.Equal(t, Ledger{Total: 8, Penalty: 0, Capacity: 8}, l)
}

type fakeStore struct {
	mu      sync.Mutex
	saved   map[string]Ledger
	failing bool
}

func (s *fakeStore) LoadLedger(_ context.Context, tableID string) (Ledger, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.saved[tableID]
	return l, ok, nil
}

func (s *fakeStore) SaveLedger(_ context.Context, tableID string, l Ledger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("disk full")
	}
	if s.saved == nil {
		s.saved = map[string]Ledger{}
	}
	s.saved[tableID] = l
	return nil
}

func TestAuthorityPersistsAndNotifies(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}

	var got []uint64
	a, err := NewAuthority(ctx, "t1", 10, store, func(l Ledger, version uint64) {
		got = append(got, version)
	})
	require.NoError(t, err)
	assert.Equal(t, New(10), store.saved["t1"])

	l, err := a.ApplyFailures(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, l.Penalty)
	assert.Equal(t, 7, l.Usable())
	assert.Equal(t, l, store.saved["t1"])

	_, err = a.ExtinguishOne(ctx)
	require.NoError(t, err)

	current, version := a.Snapshot()
	assert.Equal(t, Ledger{Total: 9, Penalty: 0, Capacity: 10}, current)
	assert.Equal(t, uint64(3), version)
	assert.Equal(t, []uint64{2, 3}, got)
}

func TestAuthorityLoadsExisting(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{saved: map[string]Ledger{"t1": {Total: 4, Penalty: 1, Capacity: 10}}}

	a, err := NewAuthority(ctx, "t1", 10, store, nil)
	require.NoError(t, err)
	assert.Equal(t, Ledger{Total: 4, Penalty: 1, Capacity: 10}, a.Current())
}

func TestAuthorityFailedSaveLeavesState(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}

	notified := 0
	a, err := NewAuthority(ctx, "t1", 10, store, func(Ledger, uint64) { notified++ })
	require.NoError(t, err)

	store.failing = true
	_, err = a.ApplyFailures(ctx, 2)
	require.Error(t, err)
	assert.Equal(t, 0, a.Current().Penalty)
	assert.Zero(t, notified)
}

func TestAuthorityResettle(t *testing.T) {
	ctx := context.Background()
	a, err := NewAuthority(ctx, "t1", 10, nil, nil)
	require.NoError(t, err)

	_, err = a.ApplyFailures(ctx, 2)
	require.NoError(t, err)

	l, err := a.Resettle(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Penalty)

	_, err = a.Resettle(ctx, -1, 1)
	assert.ErrorIs(t, err, ErrInvalidCount)
	assert.Equal(t, 1, a.Current().Penalty)
}

func TestAuthorityToggleUnchanged(t *testing.T) {
	ctx := context.Background()
	a, err := NewAuthority(ctx, "t1", 10, nil, nil)
	require.NoError(t, err)
	_, version := a.Snapshot()

	_, changed, err := a.Toggle(ctx, 3)
	require.NoError(t, err)
	assert.False(t, changed)

	_, after := a.Snapshot()
	assert.Equal(t, version, after)
}

func TestAuthoritySerializesConcurrentMutations(t *testing.T) {
	ctx := context.Background()
	a, err := NewAuthority(ctx, "t1", 10, nil, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = a.ApplyFailures(ctx, 1)
		}()
	}
	wg.Wait()

	l, version := a.Snapshot()
	assert.Equal(t, 50, l.Penalty)
	assert.Equal(t, uint64(51), version)
}

func TestMirrorIgnoresStaleVersions(t *testing.T) {
	m := NewMirror(New(10), 1)

	assert.True(t, m.Update(Ledger{Total: 10, Penalty: 3, Capacity: 10}, 3))
	assert.False(t, m.Update(Ledger{Total: 10, Penalty: 1, Capacity: 10}, 2))
	assert.Equal(t, 3, m.Current().Penalty)
	assert.Equal(t, uint64(3), m.Version())
}
