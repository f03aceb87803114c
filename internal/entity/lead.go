package entity

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

type LeadSource string

const (
	LeadSourceWebForm LeadSource = "web-form"
	LeadSourceChatbot LeadSource = "chatbot"
)

func (s LeadSource) Valid() bool {
	return s == LeadSourceWebForm || s == LeadSourceChatbot
}

type LeadStatus string

const (
	LeadStatusPending    LeadStatus = "pending"
	LeadStatusProcessing LeadStatus = "processing"
	LeadStatusSent       LeadStatus = "sent"
	LeadStatusFailed     LeadStatus = "failed"
)

func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusPending, LeadStatusProcessing, LeadStatusSent, LeadStatusFailed:
		return true
	}
	return false
}

// ErrLeadNotFound is returned by repositories when no lead has the given id.
var ErrLeadNotFound = eris.New("lead not found")

// Lead is a prospective customer inquiry captured from the web form or the chatbot.
type Lead struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone,omitempty"`
	Message      string     `json:"message"`
	ProductName  string     `json:"product_name,omitempty"`
	Source       LeadSource `json:"source"`
	Status       LeadStatus `json:"status"`
	ExternalID   *string    `json:"external_id"`
	ErrorMessage *string    `json:"error_message"`
	RetryCount   int        `json:"retry_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

type LeadFilter struct {
	Statuses []LeadStatus
	Limit    int
	Offset   int
}

type LeadRepositoryInterface interface {
	Create(ctx context.Context, lead *Lead) error
	FindByID(ctx context.Context, id string) (*Lead, error)
	List(ctx context.Context, filter LeadFilter) ([]Lead, error)

	// FindPending returns up to limit pending leads, oldest first.
	FindPending(ctx context.Context, limit int) ([]Lead, error)

	// ClaimForProcessing moves a lead from pending to processing. It reports
	// false when the lead was no longer pending.
	ClaimForProcessing(ctx context.Context, id string) (bool, error)
	MarkSent(ctx context.Context, id, externalID string) error
	MarkFailed(ctx context.Context, id, errorMessage string) error
	// ReleaseClaim returns a processing lead to pending without counting an attempt.
	ReleaseClaim(ctx context.Context, id string) error

	// RequeueFailed moves failed leads with retry_count below maxRetryCount
	// back to pending and returns how many were moved.
	RequeueFailed(ctx context.Context, maxRetryCount int) (int64, error)
}
