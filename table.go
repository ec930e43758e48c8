// Ten Candles table
//
// Every table is one elevated loop that owns the candles. Players connect
// over WebSockets, keep a mirror of the candles, and roll locally; the
// failures they roll, and every re-roll or repeat, are forwarded to the
// table loop which settles them against the ledger of record.
//
// Features:
// - WebSockets per table ID: /table/:tableid and /table/:tableid/ws
// - First connection to a table becomes the GM
// - The GM seat is released after the player timeout if the GM leaves
// - Only the GM can extinguish, relight or reset candles, or set the penalty
// - Players identified by cookie (playerID) and may edit their own characters
// - Tables auto-reaped after configurable idle timeout
// - Random 8-char table IDs via crypto/rand, with server-side collision check
// - Per-client action throttling
// - Notices and narration in the language each player asked for
// - In-browser QR button to share the current table, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"sync"
	"time"

	"github.com/Seednode/tencandles/authority"
	"github.com/Seednode/tencandles/dice"
	"github.com/Seednode/tencandles/i18n"
	"github.com/Seednode/tencandles/ledger"
	"github.com/Seednode/tencandles/resolution"
	"github.com/Seednode/tencandles/sheet"
	"github.com/Seednode/tencandles/traits"
)

const tableIDLength = 8

// A forwarded intent, still serialized, and the client that sent it.
type delivery struct {
	client *Client
	data   []byte
}

// An action from the GM, run inside the table loop.
type action struct {
	client *Client
	msg    ClientMessage
}

type Table struct {
	id  string
	cfg *Config

	ctx    context.Context
	cancel context.CancelFunc

	store    *sheet.Watched
	ledger   *ledger.Authority
	traits   *traits.Manager
	listener *authority.Listener
	router   *authority.Router
	elevated *resolution.Protocol
	dice     dice.Source
	unwatch  func()

	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	intents  chan delivery
	actions  chan action
	done     chan struct{}
	once     sync.Once

	mu sync.RWMutex

	createdAt  time.Time
	lastActive time.Time
	gmPlayerID string // cookie/playerID of the GM seat, empty while vacant
}

var _ resolution.Reporter = (*Table)(nil)

func newTable(ctx context.Context, cfg *Config, tableID string, store documentStore, src dice.Source) (*Table, error) {
	ctx, cancel := context.WithCancel(ctx)

	now := time.Now()
	t := &Table{
		id:         tableID,
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
		store:      sheet.Watch(store),
		dice:       src,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		intents:    make(chan delivery, 64),
		actions:    make(chan action, 16),
		done:       make(chan struct{}),
		createdAt:  now,
		lastActive: now,
	}

	a, err := ledger.NewAuthority(ctx, tableID, cfg.candles, store, t.broadcastLedger)
	if err != nil {
		cancel()
		return nil, err
	}

	t.ledger = a
	t.traits = traits.New(t.store)
	t.listener = authority.NewListener(resolution.NewSettler(a, t.store, t.traits, src, t))
	t.router = authority.NewElevated("table-"+tableID, t.listener)
	t.elevated = resolution.NewProtocol(a, src, t.router, t.store, t)
	t.unwatch = t.store.Subscribe(func(sheet.Change) {
		t.broadcastCharacters()
	})

	return t, nil
}

func (t *Table) run() {
	for {
		select {
		case c := <-t.register:
			t.handleRegister(c)

		case c := <-t.unreg:
			t.handleUnregister(c)

		case d := <-t.intents:
			t.handleIntent(d)

		case a := <-t.actions:
			t.dispatch(a.client, a.msg, true)

		case <-t.done:
			return
		}
	}
}

func (t *Table) handleRegister(c *Client) {
	views, err := t.characterViews()
	if err != nil {
		logf(t.cfg, "TABLE: %s failed to list characters: %v", t.id, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastActive = time.Now()

	// First connection becomes GM
	if t.gmPlayerID == "" {
		t.gmPlayerID = c.playerID
		logf(t.cfg, "TABLE: %s seated GM %s", t.id, c.playerID)
	}

	t.clients[c] = true

	l, version := t.ledger.Snapshot()
	c.mirror.Update(l, version)

	t.sendLocked(c, SessionInfoMessage{
		Type:     "session_info",
		TableID:  t.id,
		Origin:   c.origin,
		IsGM:     c.playerID == t.gmPlayerID,
		Language: c.printer.Tag().String(),
		Narrator: c.printer.Text(i18n.NarratorAlias),
	})
	t.sendLocked(c, renderLedger(c.mirror.Current(), c.mirror.Version()))
	t.sendLocked(c, t.charactersForLocked(views, c))
}

func (t *Table) handleUnregister(c *Client) {
	t.mu.Lock()
	t.lastActive = time.Now()

	if _, ok := t.clients[c]; ok {
		delete(t.clients, c)
		close(c.send)
	}
	wasGM := c.playerID == t.gmPlayerID
	stillHere := t.connectedLocked(c.playerID)
	t.mu.Unlock()

	// Anything the client already forwarded is still settled.
	t.listener.Forget(c.origin)

	if wasGM && !stillHere {
		go t.scheduleRelease(c.playerID, t.cfg.playerTimeout)
	}
}

// scheduleRelease frees the GM seat unless the GM has come back within d.
func (t *Table) scheduleRelease(playerID string, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-t.done:
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.gmPlayerID != playerID || t.connectedLocked(playerID) {
		return
	}

	t.gmPlayerID = ""
	t.lastActive = time.Now()

	logf(t.cfg, "TABLE: %s released GM seat of %s", t.id, playerID)
}

func (t *Table) handleIntent(d delivery) {
	t.touch()

	receipt, err := t.listener.Handle(t.ctx, d.data)
	if receipt.ID != "" {
		d.client.router.Acknowledge(receipt.ID)
	}

	switch {
	case receipt.Duplicate:
		logf(t.cfg, "TABLE: %s dropped duplicate %s from %s", t.id, receipt.ID, receipt.Origin)
	case err != nil:
		logf(t.cfg, "TABLE: %s refused %s from %s: %v", t.id, receipt.Kind, d.client.origin, err)
		t.notify(d.client, err)
	}
}

// publisher forwards a client's intents into the table loop.
func (t *Table) publisher(c *Client) authority.Publisher {
	return authority.PublisherFunc(func(ctx context.Context, msg authority.Message) error {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}

		select {
		case t.intents <- delivery{client: c, data: data}:
			return nil
		case <-t.done:
			return errTableClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// submit hands a GM action to the table loop.
func (t *Table) submit(c *Client, msg ClientMessage) bool {
	select {
	case t.actions <- action{client: c, msg: msg}:
		return true
	case <-t.done:
		return false
	}
}

func (t *Table) join(c *Client) bool {
	select {
	case t.register <- c:
		return true
	case <-t.done:
		return false
	}
}

func (t *Table) leave(c *Client) {
	select {
	case t.unreg <- c:
	case <-t.done:
	}
}

func (t *Table) isGM(c *Client) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return c.playerID != "" && c.playerID == t.gmPlayerID
}

func (t *Table) touch() {
	t.mu.Lock()
	t.lastActive = time.Now()
	t.mu.Unlock()
}

// idle reports whether the table has had no clients and no activity since
// cutoff.
func (t *Table) idle(cutoff time.Time) (bool, time.Duration) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.clients) == 0 && t.lastActive.Before(cutoff), time.Since(t.lastActive)
}

func (t *Table) connectedLocked(playerID string) bool {
	for c := range t.clients {
		if c.playerID == playerID {
			return true
		}
	}
	return false
}

// sendLocked queues msg for c, dropping a client that cannot keep up.
func (t *Table) sendLocked(c *Client, msg any) {
	if _, ok := t.clients[c]; !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(t.clients, c)
		close(c.send)
		logf(t.cfg, "TABLE: %s dropped slow client %s", t.id, c.origin)
	}
}

// reaches reports whether a message addressed to origin is for c. The
// table's own origin belongs to whoever holds the GM seat.
func (t *Table) reachesLocked(c *Client, origin string) bool {
	if origin == c.origin {
		return true
	}
	return origin == t.router.Origin() && c.playerID == t.gmPlayerID
}

// Report implements resolution.Reporter.
func (t *Table) Report(_ context.Context, r resolution.Report) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for c := range t.clients {
		t.sendLocked(c, renderReport(c.printer, r, t.reachesLocked(c, r.Origin)))
	}

	logf(t.cfg, "ROLL: %s %s %s rolled %d dice: %d successes, %d failures",
		t.id,
		r.CharacterName,
		r.Kind,
		r.PoolSize,
		r.Outcome.Successes,
		r.Outcome.Failures,
	)
}

// Notify implements resolution.Reporter.
func (t *Table) Notify(_ context.Context, origin string, n resolution.Notice) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for c := range t.clients {
		if origin == "" || t.reachesLocked(c, origin) {
			t.sendLocked(c, renderNotice(c.printer, n))
		}
	}
}

// notify tells c why its request was refused.
func (t *Table) notify(c *Client, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sendLocked(c, renderNotice(c.printer, noticeFor(err)))
}

func (t *Table) narrate(key string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for c := range t.clients {
		t.sendLocked(c, renderNarration(c.printer, key, args...))
	}
}

// broadcastLedger runs after every committed change to the candles.
func (t *Table) broadcastLedger(l ledger.Ledger, version uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for c := range t.clients {
		if c.mirror.Update(l, version) {
			t.sendLocked(c, renderLedger(l, version))
		}
	}

	logf(t.cfg, "LEDGER: %s v%d total=%d penalty=%d", t.id, version, l.Total, l.Penalty)
}

func (t *Table) characterViews() ([]CharacterView, error) {
	chars, err := t.store.ListCharacters(t.ctx, t.id)
	if err != nil {
		return nil, err
	}

	views := make([]CharacterView, 0, len(chars))
	for _, ch := range chars {
		items, err := t.store.ListItems(t.ctx, ch.ID)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []sheet.Item{}
		}

		views = append(views, CharacterView{
			Character:   ch,
			Items:       items,
			TotalWeight: sheet.TotalWeight(items),
		})
	}

	return views, nil
}

func (t *Table) charactersForLocked(views []CharacterView, c *Client) CharactersMessage {
	gm := c.playerID == t.gmPlayerID

	out := make([]CharacterView, len(views))
	for i, v := range views {
		v.Editable = v.CanEdit(c.playerID, gm)
		out[i] = v
	}

	return CharactersMessage{Type: "characters", Characters: out}
}

func (t *Table) broadcastCharacters() {
	views, err := t.characterViews()
	if err != nil {
		logf(t.cfg, "TABLE: %s failed to list characters: %v", t.id, err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for c := range t.clients {
		t.sendLocked(c, t.charactersForLocked(views, c))
	}
}

func (t *Table) sendCharacters(c *Client) {
	views, err := t.characterViews()
	if err != nil {
		logf(t.cfg, "TABLE: %s failed to list characters: %v", t.id, err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.sendLocked(c, t.charactersForLocked(views, c))
}

// close stops the table loop and disconnects all clients (used by reaper).
func (t *Table) close() {
	t.once.Do(func() {
		close(t.done)
		t.cancel()
		t.unwatch()

		t.mu.Lock()
		defer t.mu.Unlock()

		for c := range t.clients {
			close(c.send)
			_ = c.conn.Close()
			delete(t.clients, c)
		}
	})
}

// newTableID generates a crypto-random table ID.
func newTableID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	buf := make([]byte, tableIDLength)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}

	out := make([]byte, tableIDLength)
	for i := range out {
		out[i] = letters[int(buf[i])%len(letters)]
	}

	return string(out)
}

func validTableID(id string) bool {
	if id == "" || len(id) > 32 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
