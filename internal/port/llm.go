package port

import "context"

// Describer generates a natural-language description of an image using a
// vision-capable model. Implementations pin sampling temperature to zero.
type Describer interface {
	// Describe returns a description of the image bytes.
	Describe(ctx context.Context, image []byte, mimeType string) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
