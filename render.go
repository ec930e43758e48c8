/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"

	"github.com/Seednode/tencandles/authority"
	"github.com/Seednode/tencandles/dice"
	"github.com/Seednode/tencandles/i18n"
	"github.com/Seednode/tencandles/ledger"
	"github.com/Seednode/tencandles/resolution"
	"github.com/Seednode/tencandles/sheet"
	"github.com/Seednode/tencandles/traits"
)

var (
	errGMOnly      = errors.New("only the gm may do that")
	errBadRequest  = errors.New("malformed request")
	errRateLimited = errors.New("too many actions")
	errTableClosed = errors.New("table closed")
)

// noticeFor maps a refusal to the notice shown to the player who caused it.
func noticeFor(err error) resolution.Notice {
	warn := func(key string) resolution.Notice {
		return resolution.Notice{Level: resolution.Warning, Key: key}
	}

	switch {
	case errors.Is(err, ledger.ErrNoUnitsRemaining):
		return warn(i18n.NoCandles)
	case errors.Is(err, ledger.ErrPoolExhausted):
		return warn(i18n.PoolExhausted)
	case errors.Is(err, traits.ErrAlreadyExists), errors.Is(err, sheet.ErrAlreadyExists):
		return warn(i18n.AlreadyExists)
	case errors.Is(err, traits.ErrMomentConflict):
		return warn(i18n.MomentConflict)
	case errors.Is(err, resolution.ErrNoPriorRoll):
		return warn(i18n.NoPriorRoll)
	case errors.Is(err, resolution.ErrRepeatNotAllowed):
		return warn(i18n.RepeatRefused)
	case errors.Is(err, resolution.ErrRerollNotAllowed):
		return warn(i18n.RerollRefused)
	case errors.Is(err, resolution.ErrStaleIntent):
		return warn(i18n.StaleIntent)
	case errors.Is(err, traits.ErrInvalidType):
		return warn(i18n.InvalidType)
	case errors.Is(err, traits.ErrDeleteFailed):
		return warn(i18n.DeleteFailed)
	case errors.Is(err, traits.ErrNoneAvailable):
		return warn(i18n.NoBrink)
	case errors.Is(err, sheet.ErrPermissionDenied):
		return warn(i18n.Forbidden)
	case errors.Is(err, sheet.ErrNotFound):
		return warn(i18n.NotFound)
	case errors.Is(err, errGMOnly):
		return warn(i18n.GMOnly)
	case errors.Is(err, errRateLimited):
		return warn(i18n.RateLimited)
	case errors.Is(err, errBadRequest),
		errors.Is(err, ledger.ErrInvalidIndex),
		errors.Is(err, ledger.ErrInvalidCount),
		errors.Is(err, dice.ErrInvalidPool),
		errors.Is(err, authority.ErrInvalidPayload),
		errors.Is(err, authority.ErrUnknownKind):
		return warn(i18n.BadRequest)
	default:
		return warn(i18n.Unexpected)
	}
}

func renderNotice(p *i18n.Printer, n resolution.Notice) NoticeMessage {
	return NoticeMessage{
		Type:    "notice",
		Level:   string(n.Level),
		Key:     n.Key,
		Message: p.Text(n.Key, localizeArgs(p, n.Args)...),
	}
}

// localizeArgs names item categories in the reader's language.
func localizeArgs(p *i18n.Printer, args []any) []any {
	out := make([]any, len(args))
	for i, arg := range args {
		if category, ok := arg.(sheet.Category); ok && i18n.Has(i18n.CategoryKey(string(category))) {
			arg = p.Text(i18n.CategoryKey(string(category)))
		}
		out[i] = arg
	}
	return out
}

func renderNarration(p *i18n.Printer, key string, args ...any) NarrationMessage {
	return NarrationMessage{
		Type:    "narration",
		Speaker: p.Text(i18n.NarratorAlias),
		Message: p.Text(key, args...),
	}
}

func renderLedger(l ledger.Ledger, version uint64) LedgerStateMessage {
	return LedgerStateMessage{
		Type:     "ledger_state",
		Total:    l.Total,
		Penalty:  l.Penalty,
		Usable:   l.Usable(),
		Capacity: l.Capacity,
		Version:  version,
	}
}

func dieView(d dice.Die) DieView {
	return DieView{Value: d.Value, Class: d.Class.String()}
}

// renderReport localizes a roll for one client. The re-roll offer is only
// shown to the participant who rolled.
func renderReport(p *i18n.Printer, r resolution.Report, own bool) RollResultMessage {
	flavor := i18n.RollFlavor
	switch r.Kind {
	case resolution.Reroll:
		flavor = i18n.RollFlavorRe
	case resolution.Repeat:
		flavor = i18n.RollFlavorAgain
	}

	outcome := i18n.RollFailure
	if r.Success {
		outcome = i18n.RollSuccess
	}

	msg := RollResultMessage{
		Type:        "roll_result",
		Kind:        r.Kind.String(),
		CharacterID: r.CharacterID,
		Title:       p.Text(flavor, r.CharacterName),
		Subtitle:    p.Text(i18n.RollDice, r.PoolSize),
		Dice:        make([]DieView, 0, len(r.Outcome.Main)),
		Successes:   r.Outcome.Successes,
		Failures:    r.Outcome.Failures,
		Success:     r.Success,
		Outcome:     p.Text(outcome),
		Candles:     p.Text(i18n.RollCandles, r.Ledger.Total),
		Penalty:     p.Text(i18n.RollPenalty, r.Ledger.Penalty),
	}

	for _, d := range r.Outcome.Main {
		msg.Dice = append(msg.Dice, dieView(d))
	}

	if r.Outcome.Bonus != nil {
		bonus := dieView(*r.Outcome.Bonus)
		msg.Bonus = &bonus
	}

	if own && r.RerollAvailable {
		msg.RerollAvailable = true
		msg.RerollOffer = p.Text(i18n.RollRerollOffer)
	}

	return msg
}
