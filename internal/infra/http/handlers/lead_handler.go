package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/xavierca1/leadsync/internal/entity"
	"github.com/xavierca1/leadsync/internal/usecase"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxBodyBytes     = 64 << 10
)

type LeadCapturer interface {
	Execute(ctx context.Context, input usecase.CaptureLeadInput) (*usecase.CaptureLeadOutput, error)
}

type LeadReader interface {
	FindByID(ctx context.Context, id string) (*entity.Lead, error)
	List(ctx context.Context, filter entity.LeadFilter) ([]entity.Lead, error)
}

// LeadProcessor is satisfied by *usecase.BatchProcessor.
type LeadProcessor interface {
	ProcessLead(ctx context.Context, id string) (usecase.LeadOutcome, error)
	ProcessPendingLeads(ctx context.Context, limit int) (entity.BatchSummary, error)
	RequeueFailed(ctx context.Context, maxRetryCount int) (int64, error)
}

type LeadHandler struct {
	capture       LeadCapturer
	leads         LeadReader
	processor     LeadProcessor
	rateLimiter   *RateLimiter
	batchLimit    int
	maxRetryCount int
}

// NewLeadHandler limits public submissions to perMinute requests per client IP.
func NewLeadHandler(capture LeadCapturer, leads LeadReader, processor LeadProcessor, perMinute, batchLimit, maxRetryCount int) *LeadHandler {
	return &LeadHandler{
		capture:       capture,
		leads:         leads,
		processor:     processor,
		rateLimiter:   NewRateLimiter(perMinute, time.Minute),
		batchLimit:    batchLimit,
		maxRetryCount: maxRetryCount,
	}
}

type CaptureLeadResponse struct {
	Success bool              `json:"success"`
	ID      string            `json:"id,omitempty"`
	Status  entity.LeadStatus `json:"status,omitempty"`
	Message string            `json:"message,omitempty"`
}

func (h *LeadHandler) CaptureLead(w http.ResponseWriter, r *http.Request) {
	clientIP := getClientIP(r)
	if !h.rateLimiter.Allow(clientIP) {
		writeErrorResponse(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later.")
		return
	}

	var req usecase.CaptureLeadInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON")
		return
	}

	out, err := h.capture.Execute(r.Context(), req)
	if err != nil {
		writeUseCaseError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, CaptureLeadResponse{Success: true, ID: out.ID, Status: out.Status})
}

func (h *LeadHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := entity.LeadFilter{Limit: defaultListLimit}

	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := entity.LeadStatus(strings.TrimSpace(s))
			if !status.Valid() {
				writeErrorResponse(w, http.StatusBadRequest, "INVALID_STATUS", "unknown status "+strconv.Quote(string(status)))
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	var ok bool
	if filter.Limit, ok = intParam(q.Get("limit"), defaultListLimit); !ok || filter.Limit < 1 {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
		return
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset, ok = intParam(q.Get("offset"), 0); !ok || filter.Offset < 0 {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_OFFSET", "offset must be a non-negative integer")
		return
	}

	leads, err := h.leads.List(r.Context(), filter)
	if err != nil {
		writeUseCaseError(w, r, &usecase.TechnicalError{Code: "DATABASE_ERROR", Message: "could not list leads", Err: err})
		return
	}
	if leads == nil {
		leads = []entity.Lead{}
	}
	writeJSON(w, http.StatusOK, leads)
}

func (h *LeadHandler) GetLead(w http.ResponseWriter, r *http.Request) {
	lead, err := h.leads.FindByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, entity.ErrLeadNotFound) {
		writeErrorResponse(w, http.StatusNotFound, "LEAD_NOT_FOUND", "lead not found")
		return
	}
	if err != nil {
		writeUseCaseError(w, r, &usecase.TechnicalError{Code: "DATABASE_ERROR", Message: "could not load lead", Err: err})
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// SyncLead forwards one lead immediately.
func (h *LeadHandler) SyncLead(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.processor.ProcessLead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeUseCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *LeadHandler) ProcessPending(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(r.URL.Query().Get("limit"), h.batchLimit)
	if !ok {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
		return
	}

	summary, err := h.processor.ProcessPendingLeads(r.Context(), limit)
	if err != nil {
		writeUseCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *LeadHandler) RequeueFailed(w http.ResponseWriter, r *http.Request) {
	maxRetry, ok := intParam(r.URL.Query().Get("max_retry_count"), h.maxRetryCount)
	if !ok || maxRetry < 1 {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_MAX_RETRY_COUNT", "max_retry_count must be a positive integer")
		return
	}

	n, err := h.processor.RequeueFailed(r.Context(), maxRetry)
	if err != nil {
		writeUseCaseError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"requeued": n})
}

func intParam(raw string, def int) (int, bool) {
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// getClientIP reads only RemoteAddr. Forwarding headers are honoured solely
// through the router's RealIP middleware, which runs when the proxy is trusted.
func getClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows limit requests per window for each IP.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit < 1 {
		limit = 1
	}
	return &RateLimiter{
		visitors:  make(map[string]*visitor),
		limit:     rate.Every(window / time.Duration(limit)),
		burst:     limit,
		idle:      window * 2,
		lastSweep: time.Now(),
	}
}

func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastSweep) > rl.idle {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > rl.idle {
				delete(rl.visitors, k)
			}
		}
		rl.lastSweep = now
	}

	v, exists := rl.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}
