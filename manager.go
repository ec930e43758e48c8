/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hako/durafmt"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/tencandles/dice"
	"github.com/Seednode/tencandles/i18n"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const playerCookieName = "tencandles_id"

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.Println("rand.Read error:", err)
		return ""
	}
	id := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// TableManager holds the open tables keyed by table ID, so each
// $path/$tableid is its own isolated session.
type TableManager struct {
	cfg   *Config
	ctx   context.Context
	store documentStore

	// newSource returns the dice for a new table.
	newSource func() (dice.Source, error)

	mu          sync.Mutex
	tables      map[string]*Table
	idleTimeout time.Duration
}

func newTableManager(ctx context.Context, cfg *Config, store documentStore) *TableManager {
	tm := &TableManager{
		cfg:   cfg,
		ctx:   ctx,
		store: store,
		newSource: func() (dice.Source, error) {
			return dice.NewRandomRoller()
		},
		tables:      make(map[string]*Table),
		idleTimeout: cfg.sessionTimeout,
	}
	if tm.idleTimeout > 0 {
		go tm.reaperLoop()
	}
	return tm
}

// getTable returns the open table with tableID, opening it from the store
// if needed.
func (tm *TableManager) getTable(tableID string) (*Table, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if t, ok := tm.tables[tableID]; ok {
		return t, nil
	}

	src, err := tm.newSource()
	if err != nil {
		return nil, err
	}

	t, err := newTable(tm.ctx, tm.cfg, tableID, tm.store, src)
	if err != nil {
		return nil, err
	}

	tm.tables[tableID] = t
	go t.run()

	logf(tm.cfg, "TABLE: Opened table %s", tableID)

	return t, nil
}

// newTableID generates a table ID that doesn't collide with an open table.
func (tm *TableManager) newTableID() string {
	for {
		id := newTableID()

		tm.mu.Lock()
		_, exists := tm.tables[id]
		tm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reaperLoop periodically closes tables that have been idle longer than
// idleTimeout. A reaped table reopens from the store on the next visit.
func (tm *TableManager) reaperLoop() {
	ticker := time.NewTicker(tm.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-tm.ctx.Done():
			tm.closeAll()
			return
		case <-ticker.C:
		}

		cutoff := time.Now().Add(-tm.idleTimeout)

		tm.mu.Lock()
		for id, t := range tm.tables {
			idle, since := t.idle(cutoff)
			if !idle {
				continue
			}

			delete(tm.tables, id)
			go t.close()

			logf(tm.cfg, "TABLE: Reaped table %s after %s idle", id, durafmt.Parse(since).LimitFirstN(2))
		}
		tm.mu.Unlock()
	}
}

func (tm *TableManager) closeAll() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	for id, t := range tm.tables {
		delete(tm.tables, id)
		t.close()
	}
}

// WebSocket handler that picks the table based on :tableid
func serveWSForManager(cfg *Config, tm *TableManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		tableID := ps.ByName("tableid")
		if !validTableID(tableID) {
			http.Error(w, "invalid table id", http.StatusBadRequest)
			return
		}

		playerID := getOrSetPlayerID(w, r)
		if playerID == "" {
			http.Error(w, "unable to assign player id", http.StatusInternalServerError)
			return
		}

		t, err := tm.getTable(tableID)
		if err != nil {
			logf(cfg, "TABLE: Failed to open table %s: %v", tableID, err)
			http.Error(w, "unable to open table", http.StatusInternalServerError)
			return
		}

		printer := i18n.For(i18n.Match(r.URL.Query().Get(i18n.LangParam), r.Header.Get("Accept-Language")))

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := newClient(cfg, t, conn, playerID, printer)

		if !t.join(client) {
			_ = conn.Close()
			return
		}

		logf(cfg, "SERVE: %s joined table %s from %s", playerID, tableID, realIP(r))

		go client.writePump()
		client.readPump(t)
	}
}

// QR handler: generates a PNG QR code for the current table URL using go-qrcode.
func qrHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !validTableID(ps.ByName("tableid")) {
			http.Error(w, "invalid table id", http.StatusBadRequest)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		// We are at /.../:tableid/qr; strip trailing "/qr" to get the table URL.
		path := strings.TrimSuffix(r.URL.Path, "/qr")

		url := scheme + "://" + r.Host + path

		const qrSize = 320
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)
		_, _ = w.Write(png)
	}
}

func serveTablePage(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !validTableID(ps.ByName("tableid")) {
			http.NotFound(w, r)
			return
		}

		data, err := assets.ReadFile("assets/tencandles/index.html")
		if err != nil {
			errs <- err
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		securityHeaders(cfg, w)

		_ = getOrSetPlayerID(w, r)

		if _, err := w.Write(data); err != nil {
			errs <- err
		}
	}
}

// redirectNewTable handles GET /path by generating a new random table ID
// and redirecting to /path/:tableid.
func redirectNewTable(cfg *Config, path string, tm *TableManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		tableID := tm.newTableID()
		logf(cfg, "TABLE: Created table %s%s/%s", cfg.prefix, path, tableID)
		http.Redirect(w, r, cfg.prefix+path+"/"+tableID, http.StatusTemporaryRedirect)
	}
}

// registerTables sets up routes so that:
//   - $path                  → redirects to a new random table (8-char ID)
//   - $path/:tableid         → HTML client
//   - $path/:tableid/ws      → WebSocket for that table
//   - $path/:tableid/qr      → PNG QR code for that table URL
func registerTables(ctx context.Context, cfg *Config, path string, mux *httprouter.Router, store documentStore, errs chan<- error) *TableManager {
	tm := newTableManager(ctx, cfg, store)

	mux.GET(cfg.prefix+path, redirectNewTable(cfg, path, tm))
	mux.GET(cfg.prefix+path+"/:tableid", serveTablePage(cfg, errs))
	mux.GET(cfg.prefix+path+"/:tableid/ws", serveWSForManager(cfg, tm))
	mux.GET(cfg.prefix+path+"/:tableid/qr", qrHandler(cfg))

	return tm
}
