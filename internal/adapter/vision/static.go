package vision

import (
	"context"
	"fmt"
	"sync"
)

// StaticDescriber returns canned descriptions keyed by image bytes, falling
// back to a fixed sentence. It backs the "mock" provider and tests.
type StaticDescriber struct {
	mu       sync.RWMutex
	byImage  map[string]string
	fallback string
}

func NewStaticDescriber(fallback string) *StaticDescriber {
	return &StaticDescriber{byImage: make(map[string]string), fallback: fallback}
}

// Set registers the description returned for image.
func (d *StaticDescriber) Set(image []byte, description string) {
	d.mu.Lock()
	d.byImage[string(image)] = description
	d.mu.Unlock()
}

func (d *StaticDescriber) Describe(_ context.Context, image []byte, mimeType string) (string, error) {
	d.mu.RLock()
	text, ok := d.byImage[string(image)]
	d.mu.RUnlock()
	if ok {
		return text, nil
	}
	if d.fallback != "" {
		return d.fallback, nil
	}
	return fmt.Sprintf("An image of type %s (%d bytes).", mimeType, len(image)), nil
}

func (d *StaticDescriber) ModelName() string { return "static" }
