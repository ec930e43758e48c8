/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package i18n holds the table's message catalogs.
package i18n

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// LangParam is the query parameter that selects a language.
const LangParam = "lang"

// Message keys.
const (
	NarratorAlias = "narrator.alias"

	RollFlavor      = "roll.flavor"
	RollFlavorRe    = "roll.flavor.reroll"
	RollFlavorAgain = "roll.flavor.repeat"
	RollDice        = "roll.dice"
	RollSuccess     = "roll.success"
	RollFailure     = "roll.failure"
	RollCandles     = "roll.candles"
	RollPenalty     = "roll.penalty"
	RollRerollOffer = "roll.reroll_offer"

	NoCandles      = "notice.no_candles"
	PoolExhausted  = "notice.pool_exhausted"
	AlreadyExists  = "notice.already_exists"
	MomentConflict = "notice.moment_conflict"
	NoPriorRoll    = "notice.no_prior_roll"
	RepeatRefused  = "notice.repeat_not_allowed"
	RerollRefused  = "notice.reroll_not_allowed"
	InvalidType    = "notice.invalid_type"
	DeleteFailed   = "notice.delete_failed"
	NoBrink        = "notice.no_brink"
	StaleIntent    = "notice.stale_intent"
	NotFound       = "notice.not_found"
	Forbidden      = "notice.permission_denied"
	GMOnly         = "notice.gm_only"
	RateLimited    = "notice.rate_limited"
	BadRequest     = "notice.bad_request"
	Unexpected     = "notice.unexpected"
	ItemAdded      = "notice.item_added"
	BrinkConsumed  = "notice.brink_consumed"
	BrinkKept      = "notice.brink_delete_failed"

	CategoryVirtue = "category.virtue"
	CategoryVice   = "category.vice"
	CategoryMoment = "category.moment"
	CategoryBrink  = "category.brink"
	CategoryGear   = "category.gear"

	CandleOut     = "narration.candle_out"
	LastCandleOut = "narration.last_candle_out"
	CandlesLit    = "narration.candles_lit"
	CandlesReset  = "narration.candles_reset"
)

var messages = map[language.Tag]map[string]string{
	language.English: {
		NarratorAlias: "Narrator",

		RollFlavor:      "%s rolls",
		RollFlavorRe:    "%s rolls (re-roll)",
		RollFlavorAgain: "%s rolls (repeat)",
		RollDice:        "Rolling %d dice",
		RollSuccess:     "Success",
		RollFailure:     "Failure",
		RollCandles:     "Candles lit: %d",
		RollPenalty:     "Dice penalty: %d",
		RollRerollOffer: "Your virtue or vice lets you re-roll.",

		NoCandles:      "There are no candles left lit.",
		PoolExhausted:  "The penalty has taken every die. Extinguish a candle to reset it.",
		AlreadyExists:  "This character already has one of those.",
		MomentConflict: "Hope cannot be enabled while the character holds a moment.",
		NoPriorRoll:    "There is no previous roll to repeat.",
		RepeatRefused:  "Only characters without a virtue or vice may repeat a roll.",
		RerollRefused:  "A re-roll needs a virtue or vice and a fresh roll with failures.",
		InvalidType:    "That item type is not accepted.",
		DeleteFailed:   "The item could not be deleted.",
		NoBrink:        "There is no brink to give up.",
		StaleIntent:    "That roll changed before the request arrived. Try again.",
		NotFound:       "That character or item no longer exists.",
		Forbidden:      "You cannot edit that character.",
		GMOnly:         "Only the GM can do that.",
		RateLimited:    "Slow down.",
		BadRequest:     "That request could not be understood.",
		Unexpected:     "Something went wrong.",
		ItemAdded:      "%s was added to %s.",
		BrinkConsumed:  "%s gives up the brink \"%s\".",
		BrinkKept:      "The brink of %s could not be removed.",

		CategoryVirtue: "Virtues",
		CategoryVice:   "Vices",
		CategoryMoment: "Moment",
		CategoryBrink:  "Brinks",
		CategoryGear:   "Gear",

		CandleOut:     "A candle goes out. %d remain.",
		LastCandleOut: "The last candle goes out. Darkness falls.",
		CandlesLit:    "Candles relit: %d now burn.",
		CandlesReset:  "All %d candles burn again.",
	},
	language.Spanish: {
		NarratorAlias: "Narrador",

		RollFlavor:      "%s tira",
		RollFlavorRe:    "%s tira (repetición con virtud o vicio)",
		RollFlavorAgain: "%s repite la tirada",
		RollDice:        "Tirando %d dados",
		RollSuccess:     "Éxito",
		RollFailure:     "Fracaso",
		RollCandles:     "Velas encendidas: %d",
		RollPenalty:     "Penalización de dados: %d",
		RollRerollOffer: "Tu virtud o vicio te permite volver a tirar.",

		NoCandles:      "No queda ninguna vela encendida.",
		PoolExhausted:  "La penalización se ha llevado todos los dados. Apaga una vela para reiniciarla.",
		AlreadyExists:  "Este personaje ya tiene uno de esos.",
		MomentConflict: "No se puede activar la esperanza mientras el personaje tenga un momento.",
		NoPriorRoll:    "No hay una tirada anterior que repetir.",
		RepeatRefused:  "Solo los personajes sin virtud ni vicio pueden repetir una tirada.",
		RerollRefused:  "Volver a tirar requiere una virtud o un vicio y una tirada nueva con fallos.",
		InvalidType:    "Ese tipo de objeto no es válido.",
		DeleteFailed:   "No se pudo borrar el objeto.",
		NoBrink:        "No hay un límite al que renunciar.",
		StaleIntent:    "La tirada cambió antes de que llegara la petición. Inténtalo de nuevo.",
		NotFound:       "Ese personaje u objeto ya no existe.",
		Forbidden:      "No puedes editar ese personaje.",
		GMOnly:         "Solo el director de juego puede hacer eso.",
		RateLimited:    "Más despacio.",
		BadRequest:     "No se entendió la petición.",
		Unexpected:     "Algo salió mal.",
		ItemAdded:      "%s se ha añadido a %s.",
		BrinkConsumed:  "%s renuncia a su límite \"%s\".",
		BrinkKept:      "No se pudo quitar el límite de %s.",

		CategoryVirtue: "Virtudes",
		CategoryVice:   "Vicios",
		CategoryMoment: "Momento",
		CategoryBrink:  "Límites",
		CategoryGear:   "Equipo",

		CandleOut:     "Una vela se apaga. Quedan %d.",
		LastCandleOut: "La última vela se apaga. Cae la oscuridad.",
		CandlesLit:    "Se encienden las velas: ahora arden %d.",
		CandlesReset:  "Las %d velas vuelven a arder.",
	},
}

// CategoryKey returns the key naming the list that holds items of category.
func CategoryKey(category string) string {
	return "category." + category
}

// Supported lists the languages with a catalog, default first.
var Supported = []language.Tag{language.English, language.Spanish}

var (
	builder = mustBuild()
	matcher = language.NewMatcher(Supported)
)

func mustBuild() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))

	for tag, msgs := range messages {
		for key, msg := range msgs {
			if err := b.SetString(tag, key, msg); err != nil {
				panic(fmt.Sprintf("i18n: %s %s: %v", tag, key, err))
			}
		}
	}

	return b
}

// Has reports whether key is in the default catalog.
func Has(key string) bool {
	_, ok := messages[language.English][key]
	return ok
}

// Match picks a supported language from an explicit choice, falling back to
// an Accept-Language header and then to English.
func Match(lang, accept string) language.Tag {
	var tags []language.Tag

	if lang = strings.TrimSpace(lang); lang != "" {
		if tag, err := language.Parse(lang); err == nil {
			tags = append(tags, tag)
		}
	}

	if accept = strings.TrimSpace(accept); accept != "" {
		if parsed, _, err := language.ParseAcceptLanguage(accept); err == nil {
			tags = append(tags, parsed...)
		}
	}

	if len(tags) == 0 {
		return Supported[0]
	}

	_, idx, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return Supported[0]
	}

	return Supported[idx]
}

// Printer renders catalog messages in one language.
type Printer struct {
	tag language.Tag
	p   *message.Printer
}

// For returns a printer for tag.
func For(tag language.Tag) *Printer {
	return &Printer{tag: tag, p: message.NewPrinter(tag, message.Catalog(builder))}
}

// Tag returns the printer's language.
func (p *Printer) Tag() language.Tag {
	return p.tag
}

// Text formats the message for key with args.
func (p *Printer) Text(key string, args ...any) string {
	return p.p.Sprintf(key, args...)
}
