package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"finwise/internal/finance"
	"finwise/internal/market"
	"finwise/internal/scenario"
)

var errSessionNotFound = errors.New("session not found")

// recording holds the stored record of a finished run. A failed save leaves
// it unset so a later call can try again.
type recording struct {
	saveMu sync.Mutex

	recMu  sync.Mutex
	record *finance.SimulationRecord
}

func (r *recording) recorded() *finance.SimulationRecord {
	r.recMu.Lock()
	defer r.recMu.Unlock()
	return r.record
}

// ensure runs save until it succeeds once. It reports whether this call did
// the recording.
func (r *recording) ensure(save func() (finance.SimulationRecord, error)) (bool, error) {
	r.saveMu.Lock()
	defer r.saveMu.Unlock()
	if r.recorded() != nil {
		return false, nil
	}
	rec, err := save()
	if err != nil {
		return false, err
	}
	r.recMu.Lock()
	r.record = &rec
	r.recMu.Unlock()
	return true, nil
}

type gameEntry struct {
	id    string
	owner string
	game  *scenario.Game

	lastUsed time.Time // guarded by the registry lock

	recording
}

func (e *gameEntry) finished() bool {
	_, err := e.game.Results()
	return err == nil
}

type marketEntry struct {
	id      string
	owner   string
	session *market.Session
	ctx     context.Context
	cancel  context.CancelFunc

	lastUsed time.Time // guarded by the registry lock

	startOnce sync.Once
	recording

	mu     sync.Mutex
	subs   map[chan market.View]struct{}
	closed bool
}

// subscribe registers a stream listener. It reports false once the session
// has stopped publishing.
func (e *marketEntry) subscribe() (chan market.View, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, false
	}
	ch := make(chan market.View, 8)
	e.subs[ch] = struct{}{}
	return ch, true
}

func (e *marketEntry) unsubscribe(ch chan market.View) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.subs[ch]; ok {
		delete(e.subs, ch)
		close(ch)
	}
}

// publish drops the update for listeners that are not keeping up.
func (e *marketEntry) publish(v market.View) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for ch := range e.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

func (e *marketEntry) closeSubs() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	for ch := range e.subs {
		delete(e.subs, ch)
		close(ch)
	}
}

// registry holds the server-hosted simulator sessions. Entries are only
// visible to the user who created them.
type registry struct {
	now func() time.Time

	mu      sync.Mutex
	games   map[string]*gameEntry
	markets map[string]*marketEntry
}

func newRegistry() *registry {
	return &registry{
		now:     time.Now,
		games:   make(map[string]*gameEntry),
		markets: make(map[string]*marketEntry),
	}
}

func (r *registry) addGame(e *gameEntry) {
	r.mu.Lock()
	e.lastUsed = r.now()
	r.games[e.id] = e
	r.mu.Unlock()
}

func (r *registry) game(id, owner string) (*gameEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.games[id]
	if !ok || e.owner != owner {
		return nil, errSessionNotFound
	}
	e.lastUsed = r.now()
	return e, nil
}

func (r *registry) removeGame(id, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.games[id]
	if !ok || e.owner != owner {
		return errSessionNotFound
	}
	delete(r.games, id)
	return nil
}

func (r *registry) addMarket(e *marketEntry) {
	r.mu.Lock()
	e.lastUsed = r.now()
	r.markets[e.id] = e
	r.mu.Unlock()
}

func (r *registry) market(id, owner string) (*marketEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.markets[id]
	if !ok || e.owner != owner {
		return nil, errSessionNotFound
	}
	e.lastUsed = r.now()
	return e, nil
}

// removeMarket drops the session and stops its timers.
func (r *registry) removeMarket(id, owner string) error {
	r.mu.Lock()
	e, ok := r.markets[id]
	if !ok || e.owner != owner {
		r.mu.Unlock()
		return errSessionNotFound
	}
	delete(r.markets, id)
	r.mu.Unlock()

	e.cancel()
	e.closeSubs()
	return nil
}

// sweep drops sessions nobody touched since idleBefore, and finished ones
// whose result is stored and that nobody touched since doneBefore. A running
// market is never dropped; its own clock ends it.
func (r *registry) sweep(idleBefore, doneBefore time.Time) (games, markets int) {
	r.mu.Lock()
	for id, e := range r.games {
		if expired(e.lastUsed, e.finished() && e.recorded() != nil, idleBefore, doneBefore) {
			delete(r.games, id)
			games++
		}
	}
	var stale []*marketEntry
	for id, e := range r.markets {
		stage := e.session.Stage()
		if stage == market.StageActive {
			continue
		}
		if expired(e.lastUsed, stage == market.StageResults && e.recorded() != nil, idleBefore, doneBefore) {
			delete(r.markets, id)
			stale = append(stale, e)
		}
	}
	r.mu.Unlock()

	for _, e := range stale {
		e.cancel()
		e.closeSubs()
	}
	return games, len(stale)
}

func expired(lastUsed time.Time, done bool, idleBefore, doneBefore time.Time) bool {
	return lastUsed.Before(idleBefore) || (done && lastUsed.Before(doneBefore))
}

func (r *registry) closeAll() {
	r.mu.Lock()
	entries := make([]*marketEntry, 0, len(r.markets))
	for id, e := range r.markets {
		entries = append(entries, e)
		delete(r.markets, id)
	}
	r.games = make(map[string]*gameEntry)
	r.mu.Unlock()

	for _, e := range entries {
		e.cancel()
		e.closeSubs()
	}
}
