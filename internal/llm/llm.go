// Package llm wraps the multimodal generation backends behind one capability.
package llm

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by Ready and by every call when the backend has
// no usable credential.
var ErrNotConfigured = errors.New("model credentials are not configured")

// Input is what a backend receives for one analysis.
type Input struct {
	PromptText string
	MIMEType   string
	ImageBytes []byte
}

type Model interface {
	// Name is the provider label used in logs and metrics.
	Name() string
	Ready() error
	Generate(ctx context.Context, in Input) (string, error)
	// Stream calls onDelta for every text chunk and returns the full text.
	// An error from onDelta stops the stream and is returned as is.
	Stream(ctx context.Context, in Input, onDelta func(delta string) error) (string, error)
}
