package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"finwise/internal/finance"
	"finwise/internal/market"
	"finwise/internal/scenario"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	kindLifeScenario = "life-scenario"
	kindStockMarket  = "stock-market"

	streamWriteWait = 10 * time.Second
	recordTimeout   = 10 * time.Second
)

type gamePayload struct {
	ID      string                    `json:"id"`
	View    scenario.View             `json:"view"`
	Results *scenario.Results         `json:"results,omitempty"`
	Record  *finance.SimulationRecord `json:"record,omitempty"`
}

type marketPayload struct {
	ID      string                    `json:"id"`
	View    market.View               `json:"view"`
	Results *market.Results           `json:"results,omitempty"`
	Record  *finance.SimulationRecord `json:"record,omitempty"`
}

func gameView(e *gameEntry) gamePayload {
	out := gamePayload{ID: e.id, View: e.game.View(), Record: e.recorded()}
	if res, err := e.game.Results(); err == nil {
		out.Results = &res
	}
	return out
}

func marketView(e *marketEntry, v market.View) marketPayload {
	out := marketPayload{ID: e.id, View: v, Record: e.recorded()}
	if res, err := e.session.Results(); err == nil {
		out.Results = &res
	}
	return out
}

func (s *Server) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	uc, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return "", false
	}
	return uc.Email, true
}

// record stores a finished run for email.
func (s *Server) record(ctx context.Context, email string, in finance.SimulationResult) (finance.SimulationRecord, error) {
	user, err := s.auth.User(ctx, email)
	if err != nil {
		return finance.SimulationRecord{}, err
	}
	store, err := s.hub.Open(ctx, profileFor(user))
	if err != nil {
		return finance.SimulationRecord{}, err
	}
	return store.RecordSimulation(ctx, in)
}

func (s *Server) handleScenarios(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": scenario.Catalog()})
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	game, err := scenario.New(chi.URLParam(r, "id"), s.cfg.Tuning.ScenarioScoring())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	e := &gameEntry{id: uuid.NewString(), owner: owner, game: game}
	s.sessions.addGame(e)
	writeJSON(w, http.StatusCreated, gameView(e))
}

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	e, err := s.sessions.game(chi.URLParam(r, "id"), owner)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if _, err := e.game.Results(); err == nil && e.recorded() == nil {
		if err := s.finishGame(r.Context(), e); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, gameView(e))
}

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	e, err := s.sessions.game(chi.URLParam(r, "id"), owner)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := e.game.Start(); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gameView(e))
}

func (s *Server) handleChoose(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	e, err := s.sessions.game(chi.URLParam(r, "id"), owner)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var in struct {
		DecisionID string `json:"decision_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	outcome, err := e.game.Choose(strings.TrimSpace(in.DecisionID))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if outcome.Finished {
		if err := s.finishGame(r.Context(), e); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcome": outcome, "game": gameView(e)})
}

// finishGame records the results of a finished game into the owner's state.
// Once a save succeeds later calls do nothing.
func (s *Server) finishGame(ctx context.Context, e *gameEntry) error {
	res, err := e.game.Results()
	if err != nil {
		return err
	}
	did, err := e.ensure(func() (finance.SimulationRecord, error) {
		return s.record(ctx, e.owner, finance.SimulationResult{
			ReportID:     e.id,
			Kind:         kindLifeScenario,
			SimulationID: res.ScenarioID,
			Score:        res.Score,
			Feedback:     res.Feedback,
			XPEarned:     res.XPEarned,
		})
	})
	if err != nil {
		return err
	}
	if did {
		s.log.Info("life scenario recorded", "user", e.owner, "scenario", res.ScenarioID, "score", res.Score, "xp", res.XPEarned)
	}
	return nil
}

func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	if err := s.sessions.removeGame(chi.URLParam(r, "id"), owner); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleCreateMarket(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &marketEntry{
		id:      uuid.NewString(),
		owner:   owner,
		session: market.NewSession(s.cfg.Tuning.MarketConfig(), nil),
		ctx:     ctx,
		cancel:  cancel,
		subs:    make(map[chan market.View]struct{}),
	}
	s.sessions.addMarket(e)
	writeJSON(w, http.StatusCreated, marketView(e, e.session.View()))
}

func (s *Server) lookupMarket(w http.ResponseWriter, r *http.Request) (*marketEntry, bool) {
	owner, ok := s.owner(w, r)
	if !ok {
		return nil, false
	}
	e, err := s.sessions.market(chi.URLParam(r, "id"), owner)
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	return e, true
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookupMarket(w, r)
	if !ok {
		return
	}
	if e.session.Stage() == market.StageResults && e.recorded() == nil {
		if err := s.finishMarket(r.Context(), e); err != nil {
			writeDomainError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, marketView(e, e.session.View()))
}

func (s *Server) handleStartMarket(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookupMarket(w, r)
	if !ok {
		return
	}
	if err := e.session.Start(); err != nil {
		writeDomainError(w, err)
		return
	}
	e.startOnce.Do(func() { go s.runMarket(e) })
	writeJSON(w, http.StatusOK, marketView(e, e.session.View()))
}

// runMarket drives the session timers until it finishes or is deleted.
func (s *Server) runMarket(e *marketEntry) {
	market.Run(e.ctx, e.session, s.log, e.publish)
	if e.session.Stage() == market.StageResults {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := s.finishMarket(ctx, e); err != nil {
			s.log.Error("record market session", "user", e.owner, "session", e.id, "err", err)
		}
		cancel()
		e.publish(e.session.View())
	}
	e.closeSubs()
}

func (s *Server) finishMarket(ctx context.Context, e *marketEntry) error {
	res, err := e.session.Results()
	if err != nil {
		return err
	}
	did, err := e.ensure(func() (finance.SimulationRecord, error) {
		return s.record(ctx, e.owner, finance.SimulationResult{
			ReportID:     e.id,
			Kind:         kindStockMarket,
			SimulationID: kindStockMarket,
			Score:        res.Quality,
			FinalValue:   res.FinalValue.StringFixed(2),
			Feedback:     res.Feedback,
			XPEarned:     res.XPEarned,
		})
	})
	if err != nil {
		return err
	}
	if did {
		s.log.Info("market session recorded", "user", e.owner, "final_value", res.FinalValue.StringFixed(2), "quality", res.Quality)
	}
	return nil
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookupMarket(w, r)
	if !ok {
		return
	}
	var in struct {
		Symbol   string `json:"symbol"`
		Quantity int    `json:"quantity"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.Quantity == 0 {
		in.Quantity = e.session.Config().DefaultQty
	}
	lot, err := e.session.Buy(in.Symbol, in.Quantity)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	v := e.session.View()
	e.publish(v)
	writeJSON(w, http.StatusOK, map[string]any{"lot": lot, "session": marketView(e, v)})
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookupMarket(w, r)
	if !ok {
		return
	}
	var in struct {
		LotID string `json:"lot_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sale, err := e.session.Sell(strings.TrimSpace(in.LotID))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	v := e.session.View()
	e.publish(v)
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale, "session": marketView(e, v)})
}

func (s *Server) handleEndMarket(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookupMarket(w, r)
	if !ok {
		return
	}
	if e.session.Stage() != market.StageActive {
		writeDomainError(w, market.ErrWrongStage)
		return
	}
	e.session.End()
	if err := s.finishMarket(r.Context(), e); err != nil {
		writeDomainError(w, err)
		return
	}
	e.cancel()
	writeJSON(w, http.StatusOK, marketView(e, e.session.View()))
}

func (s *Server) handleDeleteMarket(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	if err := s.sessions.removeMarket(chi.URLParam(r, "id"), owner); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || s.cfg.CORSOrigin == "" || s.cfg.CORSOrigin == "*" {
				return true
			}
			return containsString(strings.Split(s.cfg.CORSOrigin, ","), origin)
		},
	}
}

// handleMarketStream pushes a snapshot after every tick, trade and price walk
// until the session stops or the client goes away.
func (s *Server) handleMarketStream(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookupMarket(w, r)
	if !ok {
		return
	}
	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	send := func(p marketPayload) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return conn.WriteJSON(p)
	}
	closeStream := func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session finished"),
			time.Now().Add(streamWriteWait))
	}

	ch, open := e.subscribe()
	if err := send(marketView(e, e.session.View())); err != nil {
		if open {
			e.unsubscribe(ch)
		}
		return
	}
	if !open {
		closeStream()
		return
	}
	defer e.unsubscribe(ch)

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case v, ok := <-ch:
			if !ok {
				_ = send(marketView(e, e.session.View()))
				closeStream()
				return
			}
			if err := send(marketView(e, v)); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					s.log.Debug("stream write failed", "session", e.id, "err", err)
				}
				return
			}
		}
	}
}
