package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/tencandles/dice"
	"github.com/Seednode/tencandles/i18n"
	"github.com/Seednode/tencandles/storage/memory"
)

// faces is a dice source that returns queued face values in order.
type faces struct {
	mu     sync.Mutex
	values []int
}

func (f *faces) push(values ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.values = append(f.values, values...)
}

func (f *faces) IntN(int) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := f.values[0]
	f.values = f.values[1:]
	return v - 1
}

type testServer struct {
	*httptest.Server
	tables *TableManager
	dice   *faces
}

func newTestServer(t *testing.T, mutate func(*Config)) *testServer {
	t.Helper()

	cfg := &Config{
		actionBurst:   1000,
		actionRate:    1000,
		candles:       10,
		playerTimeout: time.Hour,
	}
	if mutate != nil {
		mutate(cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 64)

	mux, tm := newMux(ctx, cfg, memory.New(), errs)

	src := &faces{}
	tm.newSource = func() (dice.Source, error) {
		return src, nil
	}

	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		tm.closeAll()
		srv.Close()
		cancel()
	})

	return &testServer{Server: srv, tables: tm, dice: src}
}

func (s *testServer) dial(t *testing.T, tableID, playerID, query string) *websocket.Conn {
	t.Helper()

	u := "ws" + strings.TrimPrefix(s.URL, "http") + "/table/" + tableID + "/ws" + query

	header := http.Header{}
	header.Set("Cookie", playerCookieName+"="+playerID)

	conn, _, err := websocket.DefaultDialer.Dial(u, header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

// expect reads from conn until a message of type typ satisfying match arrives.
func expect(t *testing.T, conn *websocket.Conn, typ string, match func(map[string]any) bool) map[string]any {
	t.Helper()

	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", typ)

		if msg["type"] == typ && (match == nil || match(msg)) {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()

	require.NoError(t, conn.WriteJSON(msg))
}

func hasKey(key string) func(map[string]any) bool {
	return func(m map[string]any) bool { return m["key"] == key }
}

func ledgerIs(total, penalty float64) func(map[string]any) bool {
	return func(m map[string]any) bool { return m["total"] == total && m["penalty"] == penalty }
}

// seat connects the GM and then a player to tableID.
func (s *testServer) seat(t *testing.T, tableID string) (gm, player *websocket.Conn) {
	t.Helper()

	gm = s.dial(t, tableID, "gm", "")
	info := expect(t, gm, "session_info", nil)
	require.Equal(t, true, info["is_gm"])

	player = s.dial(t, tableID, "p1", "")
	info = expect(t, player, "session_info", nil)
	require.Equal(t, false, info["is_gm"])

	return gm, player
}

func createCharacter(t *testing.T, conn *websocket.Conn, name string) string {
	t.Helper()

	send(t, conn, map[string]any{"type": msgCreateCharacter, "name": name})

	msg := expect(t, conn, "characters", func(m map[string]any) bool {
		chars, _ := m["characters"].([]any)
		return len(chars) > 0
	})

	chars := msg["characters"].([]any)
	c := chars[len(chars)-1].(map[string]any)
	require.Equal(t, name, c["name"])
	require.Equal(t, true, c["editable"])

	return c["id"].(string)
}

func TestPlayerRollIsSettledByTable(t *testing.T) {
	s := newTestServer(t, nil)
	gm, player := s.seat(t, "roll")

	first := expect(t, gm, "ledger_state", nil)
	assert.Equal(t, float64(10), first["total"])

	id := createCharacter(t, player, "Ada")

	s.dice.push(6, 1, 1, 3, 3, 3, 3, 3, 3, 3)
	send(t, player, map[string]any{"type": msgRoll, "character_id": id})

	result := expect(t, player, "roll_result", nil)
	assert.Equal(t, true, result["success"])
	assert.Equal(t, float64(2), result["failures"])
	assert.Equal(t, "Ada rolls", result["title"])
	assert.Equal(t, false, result["reroll_available"])
	assert.Len(t, result["dice"], 10)

	expect(t, gm, "ledger_state", ledgerIs(10, 2))
}

func TestOnlyGMControlsCandles(t *testing.T) {
	s := newTestServer(t, nil)
	gm, player := s.seat(t, "candles")

	send(t, player, map[string]any{"type": msgExtinguish})
	expect(t, player, "notice", hasKey(i18n.GMOnly))

	send(t, gm, map[string]any{"type": msgSetPenalty, "penalty": 3})
	expect(t, player, "ledger_state", ledgerIs(10, 3))

	// The candles change before the narrator speaks.
	send(t, gm, map[string]any{"type": msgExtinguish})
	expect(t, player, "ledger_state", ledgerIs(9, 0))
	narration := expect(t, player, "narration", nil)
	assert.Equal(t, "Narrator", narration["speaker"])
	assert.Equal(t, "A candle goes out. 9 remain.", narration["message"])

	send(t, gm, map[string]any{"type": msgToggleCandle, "index": 9})
	expect(t, player, "ledger_state", ledgerIs(10, 0))
	narration = expect(t, player, "narration", nil)
	assert.Equal(t, "Candles relit: 10 now burn.", narration["message"])

	send(t, gm, map[string]any{"type": msgToggleCandle, "index": 42})
	expect(t, gm, "notice", hasKey(i18n.BadRequest))
}

func TestRollRefusedWhenPoolExhausted(t *testing.T) {
	s := newTestServer(t, nil)
	gm, player := s.seat(t, "exhausted")

	id := createCharacter(t, player, "Ada")

	send(t, gm, map[string]any{"type": msgSetPenalty, "penalty": 10})
	expect(t, player, "ledger_state", ledgerIs(10, 10))

	send(t, player, map[string]any{"type": msgRoll, "character_id": id})
	expect(t, player, "notice", hasKey(i18n.PoolExhausted))
}

func TestPlayersCannotEditOthers(t *testing.T) {
	s := newTestServer(t, nil)
	gm, player := s.seat(t, "owners")

	id := createCharacter(t, gm, "Narrator's pet")

	send(t, player, map[string]any{"type": msgRoll, "character_id": id})
	expect(t, player, "notice", hasKey(i18n.Forbidden))

	send(t, player, map[string]any{"type": msgRoll, "character_id": "missing"})
	expect(t, player, "notice", hasKey(i18n.NotFound))
}

func TestTraitsThroughTable(t *testing.T) {
	s := newTestServer(t, nil)
	_, player := s.seat(t, "traits")

	id := createCharacter(t, player, "Ada")

	send(t, player, map[string]any{"type": msgAddItem, "character_id": id, "category": "virtue", "name": "Brave"})
	expect(t, player, "characters", func(m map[string]any) bool {
		c := m["characters"].([]any)[0].(map[string]any)
		return len(c["items"].([]any)) == 1
	})

	send(t, player, map[string]any{"type": msgAddItem, "character_id": id, "category": "virtue", "name": "Kind"})
	expect(t, player, "notice", hasKey(i18n.AlreadyExists))

	send(t, player, map[string]any{"type": msgAddItem, "character_id": id, "category": "moment", "name": "Sunrise"})
	send(t, player, map[string]any{"type": msgSetHope, "character_id": id, "enabled": true})
	expect(t, player, "notice", hasKey(i18n.MomentConflict))

	send(t, player, map[string]any{
		"type":         msgImportItem,
		"character_id": id,
		"item":         map[string]any{"name": "Lantern", "type": "gear", "system": map[string]any{"quantity": 2, "weight": 1.5}},
	})
	msg := expect(t, player, "characters", func(m map[string]any) bool {
		c := m["characters"].([]any)[0].(map[string]any)
		return len(c["items"].([]any)) == 3
	})
	c := msg["characters"].([]any)[0].(map[string]any)
	assert.Equal(t, 3.0, c["total_weight"])
	assert.Equal(t, false, c["hope_enabled"])

	notice := expect(t, player, "notice", hasKey(i18n.ItemAdded))
	assert.Equal(t, "Lantern was added to Gear.", notice["message"])

	send(t, player, map[string]any{"type": msgImportItem, "character_id": id, "item": map[string]any{"name": "Spell", "type": "spell"}})
	expect(t, player, "notice", hasKey(i18n.InvalidType))
}

func TestGivingUpBrinkIsRouted(t *testing.T) {
	s := newTestServer(t, nil)
	_, player := s.seat(t, "brinks")

	id := createCharacter(t, player, "Ada")

	send(t, player, map[string]any{"type": msgAddItem, "character_id": id, "category": "brink", "name": "The fire"})
	msg := expect(t, player, "characters", func(m map[string]any) bool {
		c := m["characters"].([]any)[0].(map[string]any)
		return len(c["items"].([]any)) == 1
	})
	item := msg["characters"].([]any)[0].(map[string]any)["items"].([]any)[0].(map[string]any)

	send(t, player, map[string]any{"type": msgDeleteItem, "character_id": id, "item_id": item["id"]})
	expect(t, player, "characters", func(m map[string]any) bool {
		c := m["characters"].([]any)[0].(map[string]any)
		return len(c["items"].([]any)) == 0
	})
}

func TestNoticesAreLocalized(t *testing.T) {
	s := newTestServer(t, nil)

	gm := s.dial(t, "lang", "gm", "")
	expect(t, gm, "session_info", nil)

	player := s.dial(t, "lang", "p1", "?lang=es")
	info := expect(t, player, "session_info", nil)
	assert.Equal(t, "es", info["language"])
	assert.Equal(t, "Narrador", info["narrator"])

	send(t, gm, map[string]any{"type": msgExtinguish})
	narration := expect(t, player, "narration", nil)
	assert.Equal(t, "Una vela se apaga. Quedan 9.", narration["message"])

	send(t, player, map[string]any{"type": msgExtinguish})
	notice := expect(t, player, "notice", hasKey(i18n.GMOnly))
	assert.Equal(t, "Solo el director de juego puede hacer eso.", notice["message"])
}

func TestActionsAreThrottled(t *testing.T) {
	s := newTestServer(t, func(cfg *Config) {
		cfg.actionBurst = 1
		cfg.actionRate = 0.001
	})
	_, player := s.seat(t, "throttle")

	send(t, player, map[string]any{"type": msgCreateCharacter, "name": ""})
	expect(t, player, "notice", hasKey(i18n.BadRequest))

	send(t, player, map[string]any{"type": msgCreateCharacter, "name": "Ada"})
	expect(t, player, "notice", hasKey(i18n.RateLimited))
}

func TestGMSeatIsReleased(t *testing.T) {
	s := newTestServer(t, func(cfg *Config) {
		cfg.playerTimeout = 20 * time.Millisecond
	})

	gm := s.dial(t, "seat", "gm", "")
	expect(t, gm, "session_info", nil)
	require.NoError(t, gm.Close())

	require.Eventually(t, func() bool {
		conn := s.dial(t, "seat", "p2", "")
		defer conn.Close()

		info := expect(t, conn, "session_info", nil)
		return info["is_gm"] == true
	}, 3*time.Second, 50*time.Millisecond)
}

func TestGMKeepsSeatOnReconnect(t *testing.T) {
	s := newTestServer(t, nil)

	gm := s.dial(t, "rejoin", "gm", "")
	expect(t, gm, "session_info", nil)
	require.NoError(t, gm.Close())

	again := s.dial(t, "rejoin", "gm", "")
	info := expect(t, again, "session_info", nil)
	assert.Equal(t, true, info["is_gm"])
}

func TestHTTPRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	get := func(path string) (*http.Response, string) {
		t.Helper()

		resp, err := client.Get(s.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		return resp, string(body)
	}

	resp, body := get("/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Ok\n", body)

	_, body = get("/version")
	assert.Equal(t, "tencandles v"+releaseVersion+"\n", body)

	resp, body = get("/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `href="/table"`)

	resp, _ = get("/table")
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	location := resp.Header.Get("Location")
	assert.Regexp(t, `^/table/[A-Za-z0-9]{8}$`, location)

	resp, body = get(location)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "app.js")
	assert.Contains(t, resp.Header.Get("Set-Cookie"), playerCookieName)

	resp, _ = get(location + "/qr")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	resp, _ = get("/assets/tencandles/app.js")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/javascript; charset=utf-8", resp.Header.Get("Content-Type"))

	resp, _ = get("/assets/tencandles/missing.js")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get("/favicons/favicon.svg")
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))

	resp, _ = get("/table/bad.id")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get("/table/bad.id/ws")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTableIDs(t *testing.T) {
	id := newTableID()
	assert.Len(t, id, tableIDLength)
	assert.True(t, validTableID(id))

	assert.False(t, validTableID(""))
	assert.False(t, validTableID("has space"))
	assert.False(t, validTableID(strings.Repeat("a", 33)))
	assert.True(t, validTableID("night-game_2"))
}

func TestReaperClosesIdleTables(t *testing.T) {
	s := newTestServer(t, nil)

	tbl, err := s.tables.getTable("idle")
	require.NoError(t, err)

	again, err := s.tables.getTable("idle")
	require.NoError(t, err)
	assert.Same(t, tbl, again)

	idle, _ := tbl.idle(time.Now().Add(time.Minute))
	assert.True(t, idle)

	idle, _ = tbl.idle(time.Now().Add(-time.Minute))
	assert.False(t, idle)
}
