/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"

	"github.com/Seednode/tencandles/sheet"
)

// Messages coming from clients
type ClientMessage struct {
	Type        string          `json:"type"`
	CharacterID string          `json:"character_id,omitempty"`
	ItemID      string          `json:"item_id,omitempty"`
	Name        string          `json:"name,omitempty"`
	Category    string          `json:"category,omitempty"`
	Description string          `json:"description,omitempty"`
	Quantity    int             `json:"quantity,omitempty"`
	Weight      float64         `json:"weight,omitempty"`
	Enabled     *bool           `json:"enabled,omitempty"` // set_hope
	Index       *int            `json:"index,omitempty"`   // toggle_candle
	Penalty     *int            `json:"penalty,omitempty"` // set_penalty
	Item        json.RawMessage `json:"item,omitempty"`    // import_item
}

// Client message types.
const (
	msgCreateCharacter = "create_character"
	msgRoll            = "roll"
	msgReroll          = "reroll"
	msgRepeat          = "repeat"
	msgSetHope         = "set_hope"
	msgAddItem         = "add_item"
	msgUpdateGear      = "update_gear"
	msgDeleteItem      = "delete_item"
	msgImportItem      = "import_item"
	msgExtinguish      = "extinguish"
	msgToggleCandle    = "toggle_candle"
	msgSetPenalty      = "set_penalty"
	msgResetCandles    = "reset_candles"
)

// gmOnly reports whether a message type changes the candles directly.
func gmOnly(msgType string) bool {
	switch msgType {
	case msgExtinguish, msgToggleCandle, msgSetPenalty, msgResetCandles:
		return true
	}
	return false
}

// Sent to a client once, right after it connects.
type SessionInfoMessage struct {
	Type     string `json:"type"` // "session_info"
	TableID  string `json:"table_id"`
	Origin   string `json:"origin"`
	IsGM     bool   `json:"is_gm"`
	Language string `json:"language"`
	Narrator string `json:"narrator"`
}

// LedgerStateMessage carries the candles after every change.
type LedgerStateMessage struct {
	Type     string `json:"type"` // "ledger_state"
	Total    int    `json:"total"`
	Penalty  int    `json:"penalty"`
	Usable   int    `json:"usable"`
	Capacity int    `json:"capacity"`
	Version  uint64 `json:"version"`
}

type CharacterView struct {
	sheet.Character
	Items       []sheet.Item `json:"items"`
	TotalWeight float64      `json:"total_weight"`
	Editable    bool         `json:"editable"`
}

type CharactersMessage struct {
	Type       string          `json:"type"` // "characters"
	Characters []CharacterView `json:"characters"`
}

type DieView struct {
	Value int    `json:"value"`
	Class string `json:"class"`
}

type RollResultMessage struct {
	Type            string    `json:"type"` // "roll_result"
	Kind            string    `json:"kind"`
	CharacterID     string    `json:"character_id"`
	Title           string    `json:"title"`
	Subtitle        string    `json:"subtitle"`
	Dice            []DieView `json:"dice"`
	Bonus           *DieView  `json:"bonus,omitempty"`
	Successes       int       `json:"successes"`
	Failures        int       `json:"failures"`
	Success         bool      `json:"success"`
	Outcome         string    `json:"outcome"`
	Candles         string    `json:"candles"`
	Penalty         string    `json:"penalty"`
	RerollAvailable bool      `json:"reroll_available"`
	RerollOffer     string    `json:"reroll_offer,omitempty"`
}

// NoticeMessage is a localized refusal or notification.
type NoticeMessage struct {
	Type    string `json:"type"` // "notice"
	Level   string `json:"level"`
	Key     string `json:"key"`
	Message string `json:"message"`
}

type NarrationMessage struct {
	Type    string `json:"type"` // "narration"
	Speaker string `json:"speaker"`
	Message string `json:"message"`
}
