package zoho

import "github.com/xavierca1/leadsync/internal/entity"

type createLeadsRequest struct {
	Data    []entity.ExternalLead `json:"data"`
	Trigger []string              `json:"trigger,omitempty"`
}

type recordResult struct {
	Code    string `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Details struct {
		ID string `json:"id"`
	} `json:"details"`
}

type createLeadsResponse struct {
	Data []recordResult `json:"data"`
}

// apiError is the body Zoho returns on request-level failures.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}
