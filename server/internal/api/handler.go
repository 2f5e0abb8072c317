package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/aicebreaker/aicebreaker/server/internal/event"
	"github.com/aicebreaker/aicebreaker/server/internal/ledger"
	"github.com/aicebreaker/aicebreaker/server/internal/registry"
)

// maxUpload bounds multipart bodies for the submission endpoints.
const maxUpload = 8 << 20

// Directory is the identity registry as seen by the REST API.
type Directory interface {
	Register(key, displayName, secret string, balance float64) (registry.Identity, error)
	Lookup(key string) (registry.Identity, bool)
	AllIdentities() []registry.Identity
	ConnectedParticipants() []registry.Identity
}

// Broadcaster is the hub fan-out used by the REST API.
type Broadcaster interface {
	BroadcastGameResult(value string)
	RelayToObservers(ev event.Event)
}

// Countdown runs a blocking countdown of duration ticks.
type Countdown interface {
	Run(ctx context.Context, duration int) error
	MaxDuration() int
}

// Deps are the collaborators of Handler. Scorer defaults to NopScorer and
// Now to time.Now.
type Deps struct {
	Directory    Directory
	Hub          Broadcaster
	Countdown    Countdown
	Ledger       ledger.Ledger
	Scorer       EmotionScorer
	FrontendAddr string
	Now          func() time.Time
}

// Handler is the HTTP handler for all /api/* endpoints.
type Handler struct {
	deps Deps
	mux  *http.ServeMux

	mu         sync.Mutex
	lastResult *int
}

// New creates a Handler wired to deps and registers all routes.
func New(deps Deps) http.Handler {
	if deps.Scorer == nil {
		deps.Scorer = NopScorer{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	h := &Handler{deps: deps, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /api/broadcast_countdown", h.broadcastCountdown)
	h.mux.HandleFunc("POST /api/broadcast_game_result", h.broadcastGameResult)
	h.mux.HandleFunc("GET /api/clients", h.clients)
	h.mux.HandleFunc("GET /api/clients/connected", h.connectedClients)
	h.mux.HandleFunc("GET /api/create_user/{username}", h.createUser)
	h.mux.HandleFunc("GET /api/get_username/{key}", h.username)
	h.mux.HandleFunc("GET /api/get_balance/{key}", h.balance)
	h.mux.HandleFunc("POST /api/game-result", h.submitGameResult)
	h.mux.HandleFunc("POST /api/countdown-response", h.submitCountdownResponse)
	h.mux.HandleFunc("POST /api/save-last-result", h.saveLastResult)
	h.mux.HandleFunc("GET /api/last-result", h.getLastResult)
	h.mux.HandleFunc("POST /api/has-won", h.hasWon)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if origin := h.deps.FrontendAddr; origin != "" {
		hdr := w.Header()
		hdr.Set("Access-Control-Allow-Origin", origin)
		hdr.Set("Access-Control-Allow-Credentials", "true")
		hdr.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		hdr.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		hdr.Add("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	h.mux.ServeHTTP(w, r)
}

// --- broadcasts -------------------------------------------------------------

// broadcastCountdown handles POST /api/broadcast_countdown. It blocks until
// the countdown reaches 0.
func (h *Handler) broadcastCountdown(w http.ResponseWriter, r *http.Request) {
	var req CountdownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Duration == nil {
		jsonErr(w, http.StatusBadRequest, "duration is required")
		return
	}
	if d := *req.Duration; d < 0 || d > h.deps.Countdown.MaxDuration() {
		jsonErr(w, http.StatusBadRequest, "duration must be between 0 and "+strconv.Itoa(h.deps.Countdown.MaxDuration()))
		return
	}

	if err := h.deps.Countdown.Run(r.Context(), *req.Duration); err != nil {
		slog.Warn("api: countdown aborted", "err", err)
		jsonErr(w, http.StatusServiceUnavailable, "countdown aborted")
		return
	}
	jsonResp(w, http.StatusOK, MessageResponse{Message: "Countdown started"})
}

// broadcastGameResult handles POST /api/broadcast_game_result.
func (h *Handler) broadcastGameResult(w http.ResponseWriter, r *http.Request) {
	var req GameResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid body")
		return
	}
	h.deps.Hub.BroadcastGameResult(req.GameResult)
	jsonResp(w, http.StatusOK, MessageResponse{Message: "Game result broadcasted"})
}

// --- identities -------------------------------------------------------------

func (h *Handler) clients(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, ClientListResponse{Clients: nonNil(h.deps.Directory.AllIdentities())})
}

func (h *Handler) connectedClients(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, ClientListResponse{Clients: nonNil(h.deps.Directory.ConnectedParticipants())})
}

// createUser handles GET /api/create_user/{username}: it provisions a wallet
// and registers it under username.
func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("username")

	wallet, err := h.deps.Ledger.CreateWallet(r.Context())
	if err != nil {
		slog.Error("api: create wallet", "err", err)
		jsonErr(w, http.StatusBadGateway, "wallet creation failed")
		return
	}

	id, err := h.deps.Directory.Register(wallet.Address, name, wallet.Seed, wallet.Balance)
	switch {
	case errors.Is(err, registry.ErrDuplicateIdentity):
		jsonErr(w, http.StatusConflict, "wallet already registered")
		return
	case err != nil:
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	slog.Info("api: user created", "wallet", id.Key, "username", id.DisplayName)
	jsonResp(w, http.StatusOK, id)
}

func (h *Handler) username(w http.ResponseWriter, r *http.Request) {
	id, ok := h.deps.Directory.Lookup(r.PathValue("key"))
	if !ok {
		jsonErr(w, http.StatusNotFound, "username not found")
		return
	}
	jsonResp(w, http.StatusOK, UsernameResponse{Username: id.DisplayName})
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	bal, err := h.deps.Ledger.Balance(r.Context(), r.PathValue("key"))
	switch {
	case errors.Is(err, ledger.ErrUnknownAccount):
		jsonErr(w, http.StatusNotFound, "balance not found")
		return
	case err != nil:
		slog.Error("api: balance lookup", "err", err)
		jsonErr(w, http.StatusBadGateway, "balance lookup failed")
		return
	}
	jsonResp(w, http.StatusOK, BalanceResponse{Balance: bal})
}

// --- submissions ------------------------------------------------------------

// submitGameResult handles POST /api/game-result: a multipart form with
// wallet_address, gesture and an image file. The scored result is relayed to
// observers.
func (h *Handler) submitGameResult(w http.ResponseWriter, r *http.Request) {
	wallet, img, ok := h.readSubmission(w, r)
	if !ok {
		return
	}
	gesture := r.FormValue("gesture")
	if gesture == "" {
		jsonErr(w, http.StatusBadRequest, "gesture is required")
		return
	}

	score, err := h.deps.Scorer.Score(r.Context(), bytes.NewReader(img))
	if err != nil {
		slog.Error("api: emotion scoring", "wallet", wallet.Key, "err", err)
		jsonErr(w, http.StatusInternalServerError, "emotion scoring failed")
		return
	}

	h.deps.Hub.RelayToObservers(event.ParticipantResult{
		Wallet:       wallet.Key,
		Username:     wallet.DisplayName,
		Gesture:      gesture,
		Image:        base64.StdEncoding.EncodeToString(img),
		Emotions:     score.Emotions,
		EmotionScore: score.Score,
		Timestamp:    h.timestamp(),
	})

	jsonResp(w, http.StatusOK, SubmissionResponse{
		Status:        "success",
		WalletAddress: wallet.Key,
		Username:      wallet.DisplayName,
		Gesture:       gesture,
		Emotions:      score.Emotions,
		EmotionScore:  score.Score,
		ImageSize:     int64(len(img)),
	})
}

// submitCountdownResponse handles POST /api/countdown-response: a multipart
// form with wallet_address, an integer value and an image file.
func (h *Handler) submitCountdownResponse(w http.ResponseWriter, r *http.Request) {
	wallet, img, ok := h.readSubmission(w, r)
	if !ok {
		return
	}
	value, err := strconv.Atoi(r.FormValue("value"))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "value must be an integer")
		return
	}

	h.deps.Hub.RelayToObservers(event.CountdownResponse{
		Wallet:    wallet.Key,
		Value:     value,
		Timestamp: h.timestamp(),
	})

	jsonResp(w, http.StatusOK, CountdownAnswerResponse{
		Status:        "success",
		WalletAddress: wallet.Key,
		Value:         value,
		ImageSize:     int64(len(img)),
	})
}

// readSubmission parses the multipart form shared by the submission
// endpoints and resolves wallet_address. On failure it writes the error
// response and returns ok=false.
func (h *Handler) readSubmission(w http.ResponseWriter, r *http.Request) (registry.Identity, []byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid multipart form")
		return registry.Identity{}, nil, false
	}

	key := r.FormValue("wallet_address")
	if key == "" {
		jsonErr(w, http.StatusBadRequest, "wallet_address is required")
		return registry.Identity{}, nil, false
	}
	id, ok := h.deps.Directory.Lookup(key)
	if !ok {
		jsonErr(w, http.StatusNotFound, "client not found")
		return registry.Identity{}, nil, false
	}

	f, _, err := r.FormFile("image")
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "image is required")
		return registry.Identity{}, nil, false
	}
	defer f.Close()
	img, err := io.ReadAll(f)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "unreadable image")
		return registry.Identity{}, nil, false
	}
	return id, img, true
}

// --- master result ----------------------------------------------------------

// saveLastResult handles POST /api/save-last-result. The body is a bare JSON
// integer: 0 rock, 1 paper, 2 scissors.
func (h *Handler) saveLastResult(w http.ResponseWriter, r *http.Request) {
	v, ok := decodeGesture(w, r)
	if !ok {
		return
	}
	h.mu.Lock()
	h.lastResult = &v
	h.mu.Unlock()
	jsonResp(w, http.StatusOK, LastResultResponse{Status: "success", LastResult: &v})
}

func (h *Handler) getLastResult(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	last := h.lastResult
	h.mu.Unlock()
	jsonResp(w, http.StatusOK, LastResultResponse{LastResult: last})
}

// hasWon handles POST /api/has-won: it reports whether the posted gesture
// matches the saved master result.
func (h *Handler) hasWon(w http.ResponseWriter, r *http.Request) {
	v, ok := decodeGesture(w, r)
	if !ok {
		return
	}
	h.mu.Lock()
	last := h.lastResult
	h.mu.Unlock()
	if last == nil {
		jsonErr(w, http.StatusBadRequest, "no master result recorded")
		return
	}
	jsonResp(w, http.StatusOK, HasWonResponse{HasWon: v == *last})
}

func decodeGesture(w http.ResponseWriter, r *http.Request) (int, bool) {
	var v int
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil || v < 0 || v > 2 {
		jsonErr(w, http.StatusBadRequest, "result must be 0, 1 or 2")
		return 0, false
	}
	return v, true
}

// --- helpers ----------------------------------------------------------------

func (h *Handler) timestamp() string {
	return h.deps.Now().UTC().Format(time.RFC3339)
}

func nonNil(ids []registry.Identity) []registry.Identity {
	if ids == nil {
		return []registry.Identity{}
	}
	return ids
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
