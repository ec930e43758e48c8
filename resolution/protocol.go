/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package resolution

import (
	"context"
	"time"

	"github.com/Seednode/tencandles/authority"
	"github.com/Seednode/tencandles/dice"
	"github.com/Seednode/tencandles/ledger"
	"github.com/Seednode/tencandles/sheet"
	"github.com/Seednode/tencandles/traits"
)

// Protocol resolves one participant's rolls against its view of the ledger.
type Protocol struct {
	view     ledger.View
	src      dice.Source
	router   *authority.Router
	store    sheet.Store
	reporter Reporter
	now      func() time.Time
}

// NewProtocol returns a protocol for the participant behind router.
func NewProtocol(view ledger.View, src dice.Source, router *authority.Router, store sheet.Store, reporter Reporter) *Protocol {
	return &Protocol{
		view:     view,
		src:      src,
		router:   router,
		store:    store,
		reporter: reporter,
		now:      time.Now,
	}
}

// Roll rolls every usable die for the character, routes the failures to the
// ledger, records the roll and posts the report.
func (p *Protocol) Roll(ctx context.Context, characterID string) (Result, error) {
	r := begin(Roll)

	r.enter(Validating)
	l := p.view.Current()
	if err := l.CheckRoll(); err != nil {
		return r.refuse(err)
	}

	c, items, err := load(ctx, p.store, characterID)
	if err != nil {
		return r.refuse(err)
	}

	r.enter(Rolling)
	pool := l.Usable()
	out, err := dice.Roll(p.src, pool, traits.BonusEligible(c, items))
	if err != nil {
		return r.fail(err)
	}

	r.enter(Classifying)
	success := out.Succeeded()

	r.enter(Settling)
	if out.Failures > 0 {
		d, err := p.router.Route(ctx, authority.ApplyFailures(out.Failures))
		r.result.Disposition = d
		if err != nil {
			return r.fail(err)
		}
	}

	at := p.now().UTC()
	c, err = p.store.UpdateCharacter(ctx, characterID, func(c *sheet.Character) error {
		c.LastRoll = &sheet.RollRecord{
			PoolSize:        pool,
			FailureCount:    out.Failures,
			BonusDieApplied: out.BonusApplied(),
			Timestamp:       at,
		}
		return nil
	})
	if err != nil {
		return r.fail(err)
	}

	r.enter(Reporting)
	report := Report{
		Kind:            Roll,
		CharacterID:     c.ID,
		CharacterName:   c.Name,
		Origin:          p.router.Origin(),
		PoolSize:        pool,
		Outcome:         out,
		Success:         success,
		RerollAvailable: out.Failures > 0 && traits.HasVirtueOrVice(items),
		Ledger:          l,
		At:              at,
	}
	p.reporter.Report(ctx, report)
	r.result.Report = &report

	return r.done()
}

// Reroll asks the elevated participant to roll the recorded pool again for a
// character that holds a virtue or vice. Only a roll with failures can be
// rerolled, and only once.
func (p *Protocol) Reroll(ctx context.Context, characterID string) (Result, error) {
	r := begin(Reroll)

	r.enter(Validating)
	if err := p.view.Current().CheckRoll(); err != nil {
		return r.refuse(err)
	}

	c, items, err := load(ctx, p.store, characterID)
	if err != nil {
		return r.refuse(err)
	}
	if !traits.HasVirtueOrVice(items) {
		return r.refuse(ErrRerollNotAllowed)
	}
	if c.LastRoll == nil {
		return r.refuse(ErrNoPriorRoll)
	}
	if !rerollable(*c.LastRoll) {
		return r.refuse(ErrRerollNotAllowed)
	}

	return p.forward(ctx, r, authority.ResolvePayload{
		PoolSize:         c.LastRoll.PoolSize,
		CharacterID:      characterID,
		OriginalFailures: c.LastRoll.FailureCount,
		IncludeBonusDie:  traits.BonusEligible(c, items),
	})
}

// Repeat asks the elevated participant to repeat the character's last roll,
// replacing its failures with the new ones.
func (p *Protocol) Repeat(ctx context.Context, characterID string) (Result, error) {
	r := begin(Repeat)

	r.enter(Validating)
	if err := p.view.Current().CheckRoll(); err != nil {
		return r.refuse(err)
	}

	c, items, err := load(ctx, p.store, characterID)
	if err != nil {
		return r.refuse(err)
	}
	if traits.HasVirtueOrVice(items) {
		return r.refuse(ErrRepeatNotAllowed)
	}
	if c.LastRoll == nil {
		return r.refuse(ErrNoPriorRoll)
	}

	return p.forward(ctx, r, authority.ResolvePayload{
		PoolSize:           c.LastRoll.PoolSize,
		CharacterID:        characterID,
		OriginalFailures:   c.LastRoll.FailureCount,
		IncludeBonusDie:    traits.BonusEligible(c, items) && c.LastRoll.BonusDieApplied,
		IsRepeat:           true,
		ConsumeBrinkOnFail: true,
	})
}

// forward routes the rest of the resolution to the elevated participant. When
// this participant is elevated the settler has already run by the time Route
// returns.
func (p *Protocol) forward(ctx context.Context, r *run, payload authority.ResolvePayload) (Result, error) {
	d, err := p.router.Route(ctx, authority.PerformRerollOrRepeat(payload))
	r.result.Disposition = d
	if err != nil {
		return r.fail(err)
	}

	return r.done()
}

// rerollable reports whether rec can still be rerolled.
func rerollable(rec sheet.RollRecord) bool {
	return rec.FailureCount > 0 && !rec.Rerolled
}

func load(ctx context.Context, store sheet.Store, characterID string) (sheet.Character, []sheet.Item, error) {
	c, err := store.GetCharacter(ctx, characterID)
	if err != nil {
		return sheet.Character{}, nil, err
	}

	items, err := store.ListItems(ctx, characterID)
	if err != nil {
		return sheet.Character{}, nil, err
	}

	return c, items, nil
}
