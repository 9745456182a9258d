package models

// Status is the logical outcome carried by every envelope.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
)

const (
	SourceImageUpload  = "image_upload"
	SourceBase64Upload = "base64_upload"
)

const DefaultMIMEType = "image/jpeg"

// AnalysisRequest is the normalized form of an incoming upload.
// It lives for one request only.
type AnalysisRequest struct {
	ImageBytes []byte
	MIMEType   string
	PromptText string
	Source     string
}

// AnalyseJSONRequest represents the JSON variant of the analyse endpoint.
// Either base64 or image carries the picture, optionally as a data URL.
type AnalyseJSONRequest struct {
	Base64     string `json:"base64,omitempty" example:"data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAA..."`
	Image      string `json:"image,omitempty" example:"iVBORw0KGgoAAAANSUhEUgAA..."`
	MIMEType   string `json:"mimeType,omitempty" example:"image/png"`
	Prompt     string `json:"prompt,omitempty" example:"Analyse this aviator history screenshot"`
	PromptText string `json:"promptText,omitempty"`
}

// AnalysisEnvelope is the only response shape of the gateway.
type AnalysisEnvelope struct {
	Status  Status `json:"status" example:"ok"`
	Analyse any    `json:"analyse" swaggertype:"object"`
	Source  string `json:"source" example:"image_upload"`
	Message string `json:"message,omitempty"`
	// Predictions is set, always empty, on partial envelopes only.
	Predictions *[]any `json:"predictions,omitempty" swaggertype:"array,object"`
}

// PartialPayload is the analyse field of every partial envelope.
type PartialPayload struct {
	Message     string `json:"message" example:"quota exceeded"`
	Predictions []any  `json:"predictions" swaggertype:"array,object"`
}

// StreamChunk is one incremental piece of model text on the streaming endpoint.
type StreamChunk struct {
	Delta string `json:"delta"`
}

// NewEnvelope is the single constructor every entry point goes through.
func NewEnvelope(status Status, source string, payload any) AnalysisEnvelope {
	if source == "" {
		source = SourceImageUpload
	}
	env := AnalysisEnvelope{
		Status:  status,
		Analyse: payload,
		Source:  source,
	}
	if p, ok := payload.(PartialPayload); ok {
		env.Message = p.Message
		empty := []any{}
		env.Predictions = &empty
	}
	return env
}

func NewOKEnvelope(source string, payload any) AnalysisEnvelope {
	return NewEnvelope(StatusOK, source, payload)
}

func NewPartialEnvelope(source, message string) AnalysisEnvelope {
	return NewEnvelope(StatusPartial, source, PartialPayload{
		Message:     message,
		Predictions: []any{},
	})
}
