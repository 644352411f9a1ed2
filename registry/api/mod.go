// Package api exposes the registry of ballots over HTTP. The principals are
// given in the request bodies: the authentication of the callers is left to
// the layer in front of the server.
//
// Routes:
//
//	GET  /backend
//	GET  /ballots?space={space}
//	POST /ballots
//	GET  /ballots/{id}
//	POST /ballots/{id}/votes
//	GET  /ballots/{id}/voters/{voter}
//	POST /ballots/{id}/cancel
//	POST /ballots/{id}/reveal
//	POST /ballots/{id}/retry
//	POST /ballots/{id}/callback
//	GET  /scheduler/scan
//	POST /scheduler/apply
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"go.dedis.ch/ballotbox"
	"go.dedis.ch/ballotbox/accumulator"
	"go.dedis.ch/ballotbox/ballot"
	"go.dedis.ch/ballotbox/registry"
)

// Service is the set of registry operations served by the API.
type Service interface {
	Create(creator string, params ballot.Params) (string, error)
	Cancel(id, caller string) error
	Cast(id, voter string, sel accumulator.Selection) error
	Ballot(id string) (*ballot.Ballot, error)
	State(id string) (ballot.State, error)
	List(space string) []*ballot.Ballot
	HasVoted(id, principal string) (bool, error)
	RequestReveal(id string) error
	RetryReveal(id, caller string) error
	OnRevealCallback(id string, totals []uint64, proof []byte) error
	Scan() registry.ScanResult
	Apply(batch []string) int
}

// BackendInfo describes the accumulator backend to the voters so that they
// can encrypt their selections.
type BackendInfo struct {
	Name      string `json:"name"`
	PublicKey string `json:"publicKey,omitempty"`
}

// API serves the registry.
type API struct {
	service Service
	backend BackendInfo
	logger  zerolog.Logger
	router  *chi.Mux
}

// Option is the type of option to set some fields of the API.
type Option func(*API)

// WithBackendInfo is an option to set the description of the backend.
func WithBackendInfo(info BackendInfo) Option {
	return func(a *API) {
		a.backend = info
	}
}

// WithLogger is an option to set the logger of the API.
func WithLogger(l zerolog.Logger) Option {
	return func(a *API) {
		a.logger = l
	}
}

// NewAPI creates the API of the service.
func NewAPI(service Service, opts ...Option) *API {
	a := &API{
		service: service,
		logger:  ballotbox.Logger.With().Str("module", "api").Logger(),
	}

	for _, opt := range opts {
		opt(a)
	}

	a.initRouter()

	return a
}

// Router returns the handler of the API.
func (a *API) Router() http.Handler {
	return a.router
}

func (a *API) initRouter() {
	a.router = chi.NewRouter()

	a.router.Get("/backend", a.getBackend)

	a.router.Route("/ballots", func(r chi.Router) {
		r.Get("/", a.listBallots)
		r.Post("/", a.createBallot)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.getBallot)
			r.Post("/votes", a.castVote)
			r.Get("/voters/{voter}", a.hasVoted)
			r.Post("/cancel", a.cancelBallot)
			r.Post("/reveal", a.requestReveal)
			r.Post("/retry", a.retryReveal)
			r.Post("/callback", a.revealCallback)
		})
	})

	a.router.Get("/scheduler/scan", a.scan)
	a.router.Post("/scheduler/apply", a.apply)
}

// BallotView is the public representation of a ballot.
type BallotView struct {
	ID            string         `json:"id"`
	Space         string         `json:"space"`
	Creator       string         `json:"creator"`
	Title         string         `json:"title"`
	BodyReference string         `json:"body,omitempty"`
	Mode          ballot.Mode    `json:"mode"`
	Choices       []string       `json:"choices"`
	Abstain       bool           `json:"abstain"`
	WindowStart   time.Time      `json:"start"`
	WindowEnd     time.Time      `json:"end"`
	BasisPoints   uint32         `json:"bps"`
	State         string         `json:"state"`
	Voters        int            `json:"voters"`
	CreatedAt     time.Time      `json:"createdAt"`
	Result        *ballot.Result `json:"result,omitempty"`
}

// NewBallotView returns the view of the ballot in the given state.
func NewBallotView(b *ballot.Ballot, state ballot.State) BallotView {
	return BallotView{
		ID:            b.ID,
		Space:         b.Space,
		Creator:       b.Creator,
		Title:         b.Title,
		BodyReference: b.BodyReference,
		Mode:          b.Mode,
		Choices:       b.Choices,
		Abstain:       b.Abstain,
		WindowStart:   b.WindowStart,
		WindowEnd:     b.WindowEnd,
		BasisPoints:   b.BasisPoints,
		State:         state.String(),
		Voters:        b.VoterCount(),
		CreatedAt:     b.CreatedAt,
		Result:        b.Result,
	}
}

// CreateRequest is the body of a ballot creation.
type CreateRequest struct {
	Creator string        `json:"creator"`
	Params  ballot.Params `json:"params"`
}

// CreateResponse is the answer to a ballot creation.
type CreateResponse struct {
	ID string `json:"id"`
}

// CastRequest is the body of a vote.
type CastRequest struct {
	Voter   string               `json:"voter"`
	Entries []accumulator.Handle `json:"entries"`
	Proof   []byte               `json:"proof"`
}

// CallerRequest is the body of the operations restricted to some principals.
type CallerRequest struct {
	Caller string `json:"caller"`
}

// CallbackRequest is the result of a reveal delivered by the facility.
type CallbackRequest struct {
	Totals []uint64 `json:"totals"`
	Proof  []byte   `json:"proof"`
}

// VotedResponse tells if a principal voted.
type VotedResponse struct {
	Voted bool `json:"voted"`
}

// ApplyRequest is the batch of a scan to apply.
type ApplyRequest struct {
	Batch []string `json:"batch"`
}

// ApplyResponse is the number of ballots advanced by an apply.
type ApplyResponse struct {
	Advanced int `json:"advanced"`
}

// GET /backend
func (a *API) getBackend(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.backend)
}

// GET /ballots?space={space}
func (a *API) listBallots(w http.ResponseWriter, r *http.Request) {
	ballots := a.service.List(r.URL.Query().Get("space"))

	views := make([]BallotView, 0, len(ballots))
	for _, b := range ballots {
		state, err := a.service.State(b.ID)
		if err != nil {
			a.writeError(w, errorFrom(err))
			return
		}

		views = append(views, NewBallotView(b, state))
	}

	a.writeJSON(w, http.StatusOK, views)
}

// POST /ballots
func (a *API) createBallot(w http.ResponseWriter, r *http.Request) {
	req := CreateRequest{}
	if !a.decode(w, r, &req) {
		return
	}

	id, err := a.service.Create(req.Creator, req.Params)
	if err != nil {
		a.writeError(w, errorFrom(err))
		return
	}

	a.logger.Info().Str("id", id).Str("space", req.Params.Space).Msg("ballot created")

	a.writeJSON(w, http.StatusCreated, CreateResponse{ID: id})
}

// GET /ballots/{id}
func (a *API) getBallot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	b, err := a.service.Ballot(id)
	if err != nil {
		a.writeError(w, errorFrom(err))
		return
	}

	state, err := a.service.State(id)
	if err != nil {
		a.writeError(w, errorFrom(err))
		return
	}

	a.writeJSON(w, http.StatusOK, NewBallotView(b, state))
}

// POST /ballots/{id}/votes
func (a *API) castVote(w http.ResponseWriter, r *http.Request) {
	req := CastRequest{}
	if !a.decode(w, r, &req) {
		return
	}

	sel := accumulator.Selection{
		Entries: req.Entries,
		Proof:   req.Proof,
	}

	err := a.service.Cast(chi.URLParam(r, "id"), req.Voter, sel)
	if err != nil {
		a.writeError(w, errorFrom(err))
		return
	}

	a.writeJSON(w, http.StatusOK, VotedResponse{Voted: true})
}

// GET /ballots/{id}/voters/{voter}
func (a *API) hasVoted(w http.ResponseWriter, r *http.Request) {
	voted, err := a.service.HasVoted(chi.URLParam(r, "id"), chi.URLParam(r, "voter"))
	if err != nil {
		a.writeError(w, errorFrom(err))
		return
	}

	a.writeJSON(w, http.StatusOK, VotedResponse{Voted: voted})
}

// POST /ballots/{id}/cancel
func (a *API) cancelBallot(w http.ResponseWriter, r *http.Request) {
	req := CallerRequest{}
	if !a.decode(w, r, &req) {
		return
	}

	err := a.service.Cancel(chi.URLParam(r, "id"), req.Caller)
	if err != nil {
		a.writeError(w, errorFrom(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// POST /ballots/{id}/reveal
func (a *API) requestReveal(w http.ResponseWriter, r *http.Request) {
	err := a.service.RequestReveal(chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, errorFrom(err))
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// POST /ballots/{id}/retry
func (a *API) retryReveal(w http.ResponseWriter, r *http.Request) {
	req := CallerRequest{}
	if !a.decode(w, r, &req) {
		return
	}

	err := a.service.RetryReveal(chi.URLParam(r, "id"), req.Caller)
	if err != nil {
		a.writeError(w, errorFrom(err))
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// POST /ballots/{id}/callback
func (a *API) revealCallback(w http.ResponseWriter, r *http.Request) {
	req := CallbackRequest{}
	if !a.decode(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")

	err := a.service.OnRevealCallback(id, req.Totals, req.Proof)
	if err != nil {
		a.writeError(w, errorFrom(err))
		return
	}

	a.logger.Info().Str("id", id).Msg("reveal delivered")

	w.WriteHeader(http.StatusNoContent)
}

// GET /scheduler/scan
func (a *API) scan(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.service.Scan())
}

// POST /scheduler/apply
func (a *API) apply(w http.ResponseWriter, r *http.Request) {
	req := ApplyRequest{}
	if !a.decode(w, r, &req) {
		return
	}

	a.writeJSON(w, http.StatusOK, ApplyResponse{Advanced: a.service.Apply(req.Batch)})
}

func (a *API) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil {
		a.writeError(w, ErrMalformedBody.Withf("could not decode request body: %v", err))
		return false
	}

	return true
}

func (a *API) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	jdata, err := json.Marshal(data)
	if err != nil {
		a.writeError(w, ErrMarshalingServerJSONFailed.WithErr(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_, err = w.Write(jdata)
	if err != nil {
		a.logger.Warn().Err(err).Msg("failed to write http response")
	}
}

func (a *API) writeError(w http.ResponseWriter, e Error) {
	if e.HTTPstatus >= http.StatusInternalServerError {
		a.logger.Error().Err(e.Err).Int("code", e.Code).Msg("request failed")
	} else {
		a.logger.Debug().Err(e.Err).Int("code", e.Code).Msg("request rejected")
	}

	msg, err := json.Marshal(e)
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPstatus)
	w.Write(msg)
}
