package converter

import (
	"errors"
	"fmt"
)

// ErrNotRegistered is returned when no converter is bound to a capability.
// This is a configuration error: retrying cannot fix a missing binding.
var ErrNotRegistered = errors.New("converter: capability not registered")

// Registry maps capabilities to converter implementations. It is built once
// at startup, validated for completeness, and read-only afterwards, so it is
// shared across all workers without locking.
type Registry struct {
	converters map[Capability]Converter
	comparer   Comparer
}

// NewRegistry builds the default registry with every capability bound.
// The AI upscaler talks to an external backend and is injected.
func NewRegistry(ai Converter) *Registry {
	return &Registry{
		converters: map[Capability]Converter{
			Grayscale:               grayscaleConverter{},
			ColorToGray:             grayscaleConverter{},
			RemoveWatermark:         watermarkRemover{},
			RemoveBackground:        backgroundRemover{},
			AIUpscale:               ai,
			NearestNeighbourUpscale: nearestNeighbourUpscaler{},
			Resize:                  resizeConverter{},
			Rotate:                  rotateConverter{},
			Compress:                compressConverter{},
			Crop:                    cropConverter{},
		},
		comparer: histogramComparer{},
	}
}

// Validate checks that every declared capability has a binding. Call it at
// startup so resolution at request time cannot fail on configuration.
func (r *Registry) Validate() error {
	for _, c := range Capabilities() {
		if c == Compare {
			if r.comparer == nil {
				return fmt.Errorf("%w: %s", ErrNotRegistered, c)
			}
			continue
		}
		if r.converters[c] == nil {
			return fmt.Errorf("%w: %s", ErrNotRegistered, c)
		}
	}
	return nil
}

// Resolve returns the converter bound to a capability.
func (r *Registry) Resolve(c Capability) (Converter, error) {
	conv, ok := r.converters[c]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, c)
	}
	return conv, nil
}

// Comparer returns the registered image comparer.
func (r *Registry) Comparer() (Comparer, error) {
	if r.comparer == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, Compare)
	}
	return r.comparer, nil
}
