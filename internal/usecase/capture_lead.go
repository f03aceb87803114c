package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xavierca1/leadsync/internal/entity"
)

type CaptureLeadInput struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	Message     string `json:"message"`
	ProductName string `json:"product_name,omitempty"`
	Source      string `json:"source,omitempty"`
}

type CaptureLeadOutput struct {
	ID     string            `json:"id"`
	Status entity.LeadStatus `json:"status"`
}

// CaptureLeadUseCase stores a submitted lead as pending. CRM delivery happens
// afterwards; the submitter never waits for it.
type CaptureLeadUseCase struct {
	Repo      entity.LeadRepositoryInterface
	Publisher LeadPublisher
	now       func() time.Time
}

// NewCaptureLeadUseCase accepts a nil publisher; pending leads are then picked up by the batch run.
func NewCaptureLeadUseCase(repo entity.LeadRepositoryInterface, publisher LeadPublisher) *CaptureLeadUseCase {
	return &CaptureLeadUseCase{
		Repo:      repo,
		Publisher: publisher,
		now:       time.Now,
	}
}

func (uc *CaptureLeadUseCase) Execute(ctx context.Context, input CaptureLeadInput) (*CaptureLeadOutput, error) {
	if errs := ValidateCaptureLeadInput(input); len(errs) > 0 {
		return nil, &DomainError{Code: "VALIDATION_ERROR", Message: "invalid lead", Fields: errs}
	}

	source := entity.LeadSource(input.Source)
	if source == "" {
		source = entity.LeadSourceWebForm
	}

	now := uc.now().UTC()
	lead := &entity.Lead{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(input.Name),
		Email:       strings.TrimSpace(input.Email),
		Phone:       strings.TrimSpace(input.Phone),
		Message:     strings.TrimSpace(input.Message),
		ProductName: strings.TrimSpace(input.ProductName),
		Source:      source,
		Status:      entity.LeadStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.Repo.Create(ctx, lead); err != nil {
		return nil, &TechnicalError{Code: "DATABASE_ERROR", Message: "failed to store lead", Err: err}
	}

	if uc.Publisher != nil {
		if err := uc.Publisher.PublishLeadCaptured(ctx, lead.ID); err != nil {
			// The lead is durable; the next batch run forwards it.
			zap.L().Warn("lead stored but not queued", zap.String("lead_id", lead.ID), zap.Error(err))
		}
	}

	zap.L().Info("lead captured", zap.String("lead_id", lead.ID), zap.String("source", string(source)))
	return &CaptureLeadOutput{ID: lead.ID, Status: lead.Status}, nil
}
