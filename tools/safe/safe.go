package safe

import (
	"github.com/HighK/chatrelay/logger"
)

// Go starts a goroutine that recovers from panics, so one misbehaving
// background cycle cannot take the whole relay down.
func Go(name string, f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe] %s panicked: %v", name, r)
			}
		}()
		f()
	}()
}

// DefaultString returns the dereferenced value of a string pointer, or
// the fallback if the pointer is nil.
func DefaultString(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

// DefaultInt64 returns the dereferenced value of an int64 pointer, or
// the fallback if the pointer is nil.
func DefaultInt64(i *int64, fallback int64) int64 {
	if i == nil {
		return fallback
	}
	return *i
}
