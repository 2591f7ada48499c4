package image

import (
	"context"

	"contentpipe/internal/domain"
)

// GenerateRequest describes a normalized request passed to any image provider.
type GenerateRequest struct {
	Prompt         string
	NegativePrompt string
	Kind           domain.Kind
	RequestID      string
}

// Image is a generated picture, returned as raw bytes ready for storage.
type Image struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

// Generator is the contract implemented by all image providers.
type Generator interface {
	GenerateImage(ctx context.Context, req GenerateRequest) (Image, error)
}
