package dto

// GenerateRequestDTO is the submit payload for both media kinds.
type GenerateRequestDTO struct {
	Prompt string `json:"prompt" binding:"required" example:"a red fox in the snow, watercolor"`
}

// GenerateResponseDTO is the success shape of a generation. MediaURI is a
// self-contained base64 data URI; Debug carries the per-call records for the
// dev-tools panel.
type GenerateResponseDTO struct {
	RequestID    string `json:"request_id"`
	PredictionID string `json:"prediction_id,omitempty"`
	MediaType    string `json:"media_type"`
	MediaURI     string `json:"media_uri"`
	ContentType  string `json:"content_type"`
	SizeBytes    int    `json:"size_bytes"`
	Debug        any    `json:"debug,omitempty"`
}

// GenerateErrorDTO is the failure shape of a generation. RequestID (and
// PredictionID when the provider got that far) cross-reference the debug
// panel; Details carries the provider body or exception message.
type GenerateErrorDTO struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id"`
	Debug     any    `json:"debug,omitempty"`
}

// ErrorResponseDTO is the generic error shape of the non-generation
// endpoints.
type ErrorResponseDTO struct {
	Error string `json:"error"`
}

// ProviderStatusDTO reports the connection-test outcome.
type ProviderStatusDTO struct {
	Success bool `json:"success"`
	Status  int  `json:"status,omitempty"`
	Error   any  `json:"error,omitempty"`
	Debug   any  `json:"debug,omitempty"`
}
