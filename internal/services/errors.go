package services

import (
	"errors"
	"fmt"
)

var (
	ErrEmailNotConfigured = errors.New("email credentials not configured")
	ErrTelegramAPI        = errors.New("telegram api error")
)

// PanicError carries a recovered panic out of a notifier or the pipeline.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
