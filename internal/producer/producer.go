// Package producer defines the external vector producer contract and clients
// for it. The producer turns document text into a fixed-dimension vector;
// everything about how (model, host, batching) is the collaborator's concern.
package producer

import (
	"context"
	"errors"
	"fmt"
)

// Producer produces vector representations for text.
type Producer interface {
	Produce(ctx context.Context, text string) ([]float32, error)
	ProduceBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Error wraps a failed producer call so callers can classify it.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("producer call failed: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsProducerError reports whether err originated from a producer call.
func IsProducerError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}
