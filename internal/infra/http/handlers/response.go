package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/xavierca1/leadsync/internal/usecase"
)

type ErrorResponse struct {
	Error   string                     `json:"error"`
	Message string                     `json:"message"`
	Fields  []usecase.ValidationError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// writeUseCaseError maps usecase errors onto HTTP statuses. Technical details
// are logged, never returned.
func writeUseCaseError(w http.ResponseWriter, r *http.Request, err error) {
	var de *usecase.DomainError
	if errors.As(err, &de) {
		status := http.StatusBadRequest
		switch de.Code {
		case "LEAD_NOT_FOUND":
			status = http.StatusNotFound
		case "NO_REFRESH_TOKEN":
			status = http.StatusConflict
		}
		writeJSON(w, status, ErrorResponse{Error: de.Code, Message: de.Message, Fields: de.Fields})
		return
	}

	if errors.Is(err, usecase.ErrBatchInProgress) {
		writeErrorResponse(w, http.StatusConflict, "BATCH_IN_PROGRESS", "another batch run is in progress")
		return
	}

	var te *usecase.TechnicalError
	if errors.As(err, &te) {
		zap.L().Error("request failed", zap.String("path", r.URL.Path), zap.String("code", te.Code), zap.Error(err))
		status := http.StatusInternalServerError
		if te.Code == "REFRESH_FAILED" {
			status = http.StatusBadGateway
		}
		writeErrorResponse(w, status, te.Code, te.Message)
		return
	}

	zap.L().Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
}
