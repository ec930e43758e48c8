package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	"github.com/Seednode/tencandles/dice"
	"github.com/Seednode/tencandles/i18n"
	"github.com/Seednode/tencandles/ledger"
	"github.com/Seednode/tencandles/resolution"
	"github.com/Seednode/tencandles/sheet"
	"github.com/Seednode/tencandles/traits"
)

func TestNoticeFor(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ledger.ErrNoUnitsRemaining, i18n.NoCandles},
		{ledger.ErrPoolExhausted, i18n.PoolExhausted},
		{fmt.Errorf("%w: virtue", traits.ErrAlreadyExists), i18n.AlreadyExists},
		{traits.ErrMomentConflict, i18n.MomentConflict},
		{resolution.ErrNoPriorRoll, i18n.NoPriorRoll},
		{resolution.ErrRepeatNotAllowed, i18n.RepeatRefused},
		{resolution.ErrRerollNotAllowed, i18n.RerollRefused},
		{resolution.ErrStaleIntent, i18n.StaleIntent},
		{traits.ErrInvalidType, i18n.InvalidType},
		{fmt.Errorf("%w: %w", traits.ErrDeleteFailed, sheet.ErrNotFound), i18n.DeleteFailed},
		{traits.ErrNoneAvailable, i18n.NoBrink},
		{sheet.ErrPermissionDenied, i18n.Forbidden},
		{sheet.ErrNotFound, i18n.NotFound},
		{errGMOnly, i18n.GMOnly},
		{errRateLimited, i18n.RateLimited},
		{ledger.ErrInvalidIndex, i18n.BadRequest},
		{errors.New("disk on fire"), i18n.Unexpected},
	}

	for _, tt := range tests {
		n := noticeFor(tt.err)
		assert.Equal(t, tt.want, n.Key, "%v", tt.err)
		assert.Equal(t, resolution.Warning, n.Level)
		assert.True(t, i18n.Has(n.Key), n.Key)
	}
}

func TestResolutionNoticesHaveMessages(t *testing.T) {
	assert.True(t, i18n.Has(resolution.NoticeBrinkConsumed))
	assert.True(t, i18n.Has(resolution.NoticeBrinkDeleteFailed))
}

func TestRenderReport(t *testing.T) {
	bonus := dice.Die{Value: 6, Class: dice.Success}
	r := resolution.Report{
		Kind:          resolution.Roll,
		CharacterID:   "c1",
		CharacterName: "Ada",
		PoolSize:      3,
		Outcome: dice.Outcome{
			Main:      []dice.Die{{Value: 1, Class: dice.Failure}, {Value: 3, Class: dice.Neutral}, {Value: 6, Class: dice.Success}},
			Bonus:     &bonus,
			Successes: 2,
			Failures:  1,
		},
		Success:         true,
		RerollAvailable: true,
		Ledger:          ledger.Ledger{Total: 5, Penalty: 2, Capacity: 10},
	}

	en := i18n.For(language.English)

	own := renderReport(en, r, true)
	assert.Equal(t, "roll_result", own.Type)
	assert.Equal(t, "Ada rolls", own.Title)
	assert.Equal(t, "Rolling 3 dice", own.Subtitle)
	assert.Equal(t, "Success", own.Outcome)
	assert.Equal(t, "Candles lit: 5", own.Candles)
	assert.Equal(t, "Dice penalty: 2", own.Penalty)
	assert.Equal(t, []DieView{{1, "failure"}, {3, "neutral"}, {6, "success"}}, own.Dice)
	assert.Equal(t, &DieView{6, "success"}, own.Bonus)
	assert.True(t, own.RerollAvailable)
	assert.NotEmpty(t, own.RerollOffer)

	other := renderReport(en, r, false)
	assert.False(t, other.RerollAvailable)
	assert.Empty(t, other.RerollOffer)

	r.Kind = resolution.Repeat
	r.Success = false
	es := renderReport(i18n.For(language.Spanish), r, false)
	assert.Equal(t, "Ada repite la tirada", es.Title)
	assert.Equal(t, "Fracaso", es.Outcome)
	assert.Equal(t, "repeat", es.Kind)
}

func TestRenderNotice(t *testing.T) {
	n := resolution.Notice{Level: resolution.Info, Key: i18n.BrinkConsumed, Args: []any{"Ada", "The fire"}}

	msg := renderNotice(i18n.For(language.English), n)
	assert.Equal(t, NoticeMessage{
		Type:    "notice",
		Level:   "info",
		Key:     i18n.BrinkConsumed,
		Message: `Ada gives up the brink "The fire".`,
	}, msg)
}

func TestRenderNoticeNamesCategories(t *testing.T) {
	n := resolution.Notice{Level: resolution.Info, Key: i18n.ItemAdded, Args: []any{"valiente", sheet.CategoryVirtue}}

	assert.Equal(t, "valiente was added to Virtues.", renderNotice(i18n.For(language.English), n).Message)
	assert.Equal(t, "valiente se ha añadido a Virtudes.", renderNotice(i18n.For(language.Spanish), n).Message)

	// Plain strings pass through untouched.
	n.Args = []any{"Ada", "virtue"}
	assert.Equal(t, "Ada was added to virtue.", renderNotice(i18n.For(language.English), n).Message)
}

func TestRenderLedger(t *testing.T) {
	msg := renderLedger(ledger.Ledger{Total: 4, Penalty: 1, Capacity: 10}, 7)
	assert.Equal(t, LedgerStateMessage{Type: "ledger_state", Total: 4, Penalty: 1, Usable: 3, Capacity: 10, Version: 7}, msg)
}
