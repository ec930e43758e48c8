/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package resolution

import (
	"context"
	"errors"
	"time"

	"github.com/Seednode/tencandles/authority"
	"github.com/Seednode/tencandles/dice"
	"github.com/Seednode/tencandles/ledger"
	"github.com/Seednode/tencandles/sheet"
	"github.com/Seednode/tencandles/traits"
)

// Settler is the elevated participant's handler for routed intents. The
// table loop runs it one intent at a time, so each call sees the ledger as
// the previous call left it.
type Settler struct {
	ledger   *ledger.Authority
	store    sheet.Store
	traits   *traits.Manager
	src      dice.Source
	reporter Reporter
	now      func() time.Time
}

var _ authority.Handler = (*Settler)(nil)

// NewSettler returns a settler applying intents to a.
func NewSettler(a *ledger.Authority, store sheet.Store, m *traits.Manager, src dice.Source, reporter Reporter) *Settler {
	return &Settler{
		ledger:   a,
		store:    store,
		traits:   m,
		src:      src,
		reporter: reporter,
		now:      time.Now,
	}
}

func (s *Settler) ApplyFailures(ctx context.Context, _ string, p authority.FailuresPayload) error {
	_, err := s.ledger.ApplyFailures(ctx, p.Failures)
	return err
}

func (s *Settler) RefundFailures(ctx context.Context, _ string, p authority.FailuresPayload) error {
	_, err := s.ledger.RefundFailures(ctx, p.Failures)
	return err
}

func (s *Settler) DeleteBrink(ctx context.Context, _ string, p authority.DeleteBrinkPayload) error {
	_, err := s.traits.DeleteBrink(ctx, p.CharacterID, p.ItemID)
	return err
}

func (s *Settler) PerformRerollOrRepeat(ctx context.Context, origin string, p authority.ResolvePayload) error {
	_, err := s.Resolve(ctx, origin, p)
	return err
}

// Resolve validates, rolls, settles and reports a reroll or repeat.
//
// The stored roll record is authoritative: an intent whose pool size or
// original failures no longer match it is refused with ErrStaleIntent.
func (s *Settler) Resolve(ctx context.Context, origin string, p authority.ResolvePayload) (Result, error) {
	kind := Reroll
	if p.IsRepeat {
		kind = Repeat
	}
	r := begin(kind)
	r.result.Disposition = authority.Applied

	r.enter(Validating)
	before := s.ledger.Current()
	if err := before.CheckRoll(); err != nil {
		return r.refuse(err)
	}

	c, items, err := load(ctx, s.store, p.CharacterID)
	if err != nil {
		return r.refuse(err)
	}

	switch {
	case kind == Repeat && traits.HasVirtueOrVice(items):
		return r.refuse(ErrRepeatNotAllowed)
	case kind == Reroll && !traits.HasVirtueOrVice(items):
		return r.refuse(ErrRerollNotAllowed)
	case c.LastRoll == nil:
		return r.refuse(ErrNoPriorRoll)
	case c.LastRoll.PoolSize != p.PoolSize || c.LastRoll.FailureCount != p.OriginalFailures:
		return r.refuse(ErrStaleIntent)
	}
	if kind == Reroll && !rerollable(*c.LastRoll) {
		return r.refuse(ErrRerollNotAllowed)
	}
	record := *c.LastRoll

	bonus := p.IncludeBonusDie && traits.BonusEligible(c, items)
	if kind == Repeat {
		bonus = bonus && record.BonusDieApplied
	}

	r.enter(Rolling)
	out, err := dice.Roll(s.src, record.PoolSize, bonus)
	if err != nil {
		return r.fail(err)
	}

	r.enter(Classifying)
	success := out.Succeeded()

	r.enter(Settling)
	if kind == Repeat {
		_, err = s.ledger.Resettle(ctx, record.FailureCount, out.Failures)
	} else {
		_, err = s.ledger.ApplyFailures(ctx, out.Failures)
	}
	if err != nil {
		return r.fail(err)
	}

	at := s.now().UTC()
	c, err = s.store.UpdateCharacter(ctx, c.ID, func(c *sheet.Character) error {
		if kind == Reroll {
			// The record stays the one the reroll was bought with.
			spent := record
			spent.Rerolled = true
			c.LastRoll = &spent
			return nil
		}
		c.LastRoll = &sheet.RollRecord{
			PoolSize:        record.PoolSize,
			FailureCount:    out.Failures,
			BonusDieApplied: out.BonusApplied(),
			Timestamp:       at,
		}
		return nil
	})
	if err != nil {
		return r.fail(err)
	}

	var consumed *sheet.Item
	if kind == Repeat && p.ConsumeBrinkOnFail && !success {
		it, err := s.traits.DeleteOneBrink(ctx, c.ID)
		switch {
		case err == nil:
			consumed = &it
		case errors.Is(err, traits.ErrNoneAvailable):
		default:
			s.reporter.Notify(ctx, origin, Notice{Level: Warning, Key: NoticeBrinkDeleteFailed, Args: []any{c.Name}})
		}
	}

	r.enter(Reporting)
	report := Report{
		Kind:          kind,
		CharacterID:   c.ID,
		CharacterName: c.Name,
		Origin:        origin,
		PoolSize:      record.PoolSize,
		Outcome:       out,
		Success:       success,
		Ledger:        before,
		At:            at,
	}
	if consumed != nil {
		report.BrinkConsumed = consumed.Name
	}
	s.reporter.Report(ctx, report)
	r.result.Report = &report

	if consumed != nil {
		s.reporter.Notify(ctx, "", Notice{Level: Info, Key: NoticeBrinkConsumed, Args: []any{c.Name, consumed.Name}})
	}

	return r.done()
}
