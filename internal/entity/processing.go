package entity

// FailureKind classifies why a send attempt did not succeed.
type FailureKind int

const (
	FailureNone FailureKind = iota
	// FailureTransient is worth retrying: 5xx, 429, network errors, 2xx without an id.
	FailureTransient
	// FailureTerminal will not succeed on retry without intervention.
	FailureTerminal
	// FailurePrecondition means no valid access token could be obtained.
	FailurePrecondition
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureTransient:
		return "transient"
	case FailureTerminal:
		return "terminal"
	case FailurePrecondition:
		return "precondition"
	default:
		return "unknown"
	}
}

// ProcessingResult is the outcome of one send attempt or of a whole retry cycle.
type ProcessingResult struct {
	Success    bool        `json:"success"`
	ExternalID string      `json:"external_id,omitempty"`
	Error      string      `json:"error,omitempty"`
	Failure    FailureKind `json:"-"`
	StatusCode int         `json:"status_code,omitempty"`
	Attempts   int         `json:"attempts,omitempty"`
}

func (r ProcessingResult) Retryable() bool {
	return !r.Success && r.Failure == FailureTransient
}

func Succeeded(externalID string) ProcessingResult {
	return ProcessingResult{Success: true, ExternalID: externalID, Failure: FailureNone}
}

func Failed(kind FailureKind, statusCode int, msg string) ProcessingResult {
	return ProcessingResult{Failure: kind, StatusCode: statusCode, Error: msg}
}

// BatchSummary aggregates the outcome of one batch run.
type BatchSummary struct {
	Processed  int      `json:"processed"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors"`
}
