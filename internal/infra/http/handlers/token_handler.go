package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xavierca1/leadsync/internal/entity"
)

const oauthStateTTL = 10 * time.Minute

// TokenManager is satisfied by *usecase.TokenService.
type TokenManager interface {
	GetTokenStatus(ctx context.Context) (entity.TokenStatus, error)
	ForceRefresh(ctx context.Context) (entity.TokenStatus, error)
	ClearStoredTokens(ctx context.Context) error
	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (entity.TokenStatus, error)
}

// TokenHandler exposes token operations. Token values never leave the service.
type TokenHandler struct {
	tokens TokenManager

	mu     sync.Mutex
	states map[string]time.Time
	now    func() time.Time
}

func NewTokenHandler(tokens TokenManager) *TokenHandler {
	return &TokenHandler{
		tokens: tokens,
		states: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (h *TokenHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.tokens.GetTokenStatus(r.Context())
	if err != nil {
		writeUseCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *TokenHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	status, err := h.tokens.ForceRefresh(r.Context())
	if err != nil {
		writeUseCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *TokenHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.tokens.ClearStoredTokens(r.Context()); err != nil {
		writeUseCaseError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Authorize returns the consent URL the operator opens in a browser. The
// state it carries is accepted once by Callback.
func (h *TokenHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()

	h.mu.Lock()
	now := h.now()
	for s, exp := range h.states {
		if now.After(exp) {
			delete(h.states, s)
		}
	}
	h.states[state] = now.Add(oauthStateTTL)
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{
		"authorization_url": h.tokens.AuthorizationURL(state),
		"state":             state,
	})
}

func (h *TokenHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		writeErrorResponse(w, http.StatusBadRequest, "AUTHORIZATION_DENIED", errParam)
		return
	}
	if !h.consumeState(q.Get("state")) {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_STATE", "unknown or expired state")
		return
	}

	status, err := h.tokens.ExchangeCode(r.Context(), q.Get("code"))
	if err != nil {
		writeUseCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *TokenHandler) consumeState(state string) bool {
	if state == "" {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	exp, ok := h.states[state]
	delete(h.states, state)
	return ok && h.now().Before(exp)
}
