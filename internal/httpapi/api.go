// Package httpapi exposes the offer lifecycle over HTTP. Mutating
// endpoints take the caller address in the request body; the server
// performs no authentication and is meant to sit behind one.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/holiman/uint256"

	"github.com/0xthrpw/remand/internal/asset"
	"github.com/0xthrpw/remand/internal/engine"
	"github.com/0xthrpw/remand/internal/offer"
	"github.com/0xthrpw/remand/internal/store"
)

// Server serves the offer API.
type Server struct {
	engine *engine.Engine
	store  *store.Store
	logger *slog.Logger
}

// New creates a server over an engine and its store.
func New(eng *engine.Engine, st *store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: eng, store: st, logger: logger}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/offers", s.handleListOffers)
	r.Post("/offers", s.handleCreate)
	r.Get("/offers/{key}", s.handleGetOffer)
	r.Get("/offers/{key}/assets", s.handleGetAssets)
	r.Post("/offers/{key}/accept", s.transition(func(ctx transitionCtx) error {
		return s.engine.Accept(ctx.r.Context(), ctx.caller, ctx.key)
	}))
	r.Post("/offers/{key}/rescind", s.transition(func(ctx transitionCtx) error {
		return s.engine.Rescind(ctx.r.Context(), ctx.caller, ctx.key)
	}))
	r.Post("/offers/{key}/repay", s.transition(func(ctx transitionCtx) error {
		return s.engine.Repay(ctx.r.Context(), ctx.caller, ctx.key)
	}))
	r.Post("/offers/{key}/remand", s.transition(func(ctx transitionCtx) error {
		return s.engine.Remand(ctx.r.Context(), ctx.caller, ctx.key)
	}))
	r.Get("/events", s.handleEvents)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// assetBody is one bundle entry in a request or response.
type assetBody struct {
	Kind     string `json:"kind"`
	Contract string `json:"contract"`
	ID       uint64 `json:"id,omitempty"`
	Amount   string `json:"amount,omitempty"`
}

// createRequest is the payload of POST /offers.
type createRequest struct {
	Caller   string `json:"caller"`
	Owner    string `json:"owner"`
	Target   string `json:"target"`
	Term     int64  `json:"term"`
	Deadline int64  `json:"deadline"`

	Ask        []assetBody `json:"ask"`
	Collateral []assetBody `json:"collateral"`
	Fee        []assetBody `json:"fee"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}

	caller, err := asset.ParseAddress(req.Caller)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "BadRequest", "caller: "+err.Error())
		return
	}
	o, err := buildOffer(&req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
		return
	}

	key, err := s.engine.Create(r.Context(), caller, o)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

func buildOffer(req *createRequest) (*offer.Offer, error) {
	owner, err := asset.ParseAddress(req.Owner)
	if err != nil {
		return nil, errors.New("owner: " + err.Error())
	}
	target, err := asset.ParseTarget(req.Target)
	if err != nil {
		return nil, errors.New("target: " + err.Error())
	}

	ask, err := buildBundle(req.Ask)
	if err != nil {
		return nil, errors.New("ask: " + err.Error())
	}
	collateral, err := buildBundle(req.Collateral)
	if err != nil {
		return nil, errors.New("collateral: " + err.Error())
	}
	fee, err := buildBundle(req.Fee)
	if err != nil {
		return nil, errors.New("fee: " + err.Error())
	}

	return &offer.Offer{
		Owner:      owner,
		Target:     target,
		Term:       req.Term,
		Deadline:   req.Deadline,
		Ask:        ask,
		Collateral: collateral,
		Fee:        fee,
	}, nil
}

func buildBundle(entries []assetBody) (asset.Bundle, error) {
	b := make(asset.Bundle, 0, len(entries))
	for _, e := range entries {
		kind, err := asset.ParseKind(e.Kind)
		if err != nil {
			return nil, err
		}
		contract, err := asset.ParseAddress(e.Contract)
		if err != nil {
			return nil, err
		}
		ref := asset.Ref{Kind: kind, Contract: contract, ID: e.ID}
		if kind != asset.Unique {
			amount, err := uint256.FromDecimal(e.Amount)
			if err != nil {
				return nil, err
			}
			ref.Quantity = amount
		}
		b = append(b, ref)
	}
	return b, nil
}

// transitionCtx carries the parsed pieces of a transition request.
type transitionCtx struct {
	r      *http.Request
	caller asset.Address
	key    string
}

// callerRequest is the payload of the transition endpoints.
type callerRequest struct {
	Caller string `json:"caller"`
}

// transition wraps a lifecycle operation in request parsing and the
// shared success/error rendering.
func (s *Server) transition(fn func(transitionCtx) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req callerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "BadRequest", err.Error())
			return
		}
		caller, err := asset.ParseAddress(req.Caller)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "BadRequest", "caller: "+err.Error())
			return
		}

		key := chi.URLParam(r, "key")
		if err := fn(transitionCtx{r: r, caller: caller, key: key}); err != nil {
			s.writeEngineError(w, err)
			return
		}

		o, err := s.engine.GetOffer(r.Context(), key)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{
			"key":   o.Key,
			"state": string(o.State),
		})
	}
}

// offerResponse is the JSON shape of an offer.
type offerResponse struct {
	Key        string      `json:"key"`
	Seq        int64       `json:"seq"`
	Owner      string      `json:"owner"`
	Target     string      `json:"target"`
	Term       int64       `json:"term"`
	Deadline   int64       `json:"deadline"`
	AcceptedAt int64       `json:"accepted_at,omitempty"`
	AcceptedBy string      `json:"accepted_by,omitempty"`
	State      string      `json:"state"`
	Ask        []assetBody `json:"ask"`
	Collateral []assetBody `json:"collateral"`
	Fee        []assetBody `json:"fee"`
}

func renderBundle(b asset.Bundle) []assetBody {
	out := make([]assetBody, 0, len(b))
	for _, ref := range b {
		out = append(out, assetBody{
			Kind:     ref.Kind.String(),
			Contract: string(ref.Contract),
			ID:       ref.ID,
			Amount:   ref.Amount().Dec(),
		})
	}
	return out
}

func renderOffer(o *offer.Offer) offerResponse {
	return offerResponse{
		Key:        o.Key,
		Seq:        o.Seq,
		Owner:      string(o.Owner),
		Target:     o.Target.String(),
		Term:       o.Term,
		Deadline:   o.Deadline,
		AcceptedAt: o.AcceptedAt,
		AcceptedBy: string(o.AcceptedBy),
		State:      string(o.State),
		Ask:        renderBundle(o.Ask),
		Collateral: renderBundle(o.Collateral),
		Fee:        renderBundle(o.Fee),
	}
}

func (s *Server) handleGetOffer(w http.ResponseWriter, r *http.Request) {
	o, err := s.engine.GetOffer(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, renderOffer(o))
}

func (s *Server) handleGetAssets(w http.ResponseWriter, r *http.Request) {
	ask, collateral, fee, err := s.engine.GetOfferAssets(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]assetBody{
		"ask":        renderBundle(ask),
		"collateral": renderBundle(collateral),
		"fee":        renderBundle(fee),
	})
}

func (s *Server) handleListOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := s.store.ListOffers(r.Context())
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	out := make(map[string]string, len(offers))
	for key, state := range offers {
		out[key] = string(state)
	}
	s.writeJSON(w, http.StatusOK, out)
}

// eventResponse is the JSON shape of one event record.
type eventResponse struct {
	Seq      int64  `json:"seq"`
	Kind     string `json:"kind"`
	OfferKey string `json:"offer_key"`
	Actor    string `json:"actor"`
	At       int64  `json:"at"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ListEvents(r.Context(), r.URL.Query().Get("offer"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, eventResponse{
			Seq:      ev.Seq,
			Kind:     ev.Kind,
			OfferKey: ev.OfferKey,
			Actor:    string(ev.Actor),
			At:       ev.At,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}
