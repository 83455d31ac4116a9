package speech

import (
	"context"
	"errors"
)

// ErrPermissionDenied is returned when dictation was not allowed
var ErrPermissionDenied = errors.New("microphone permission denied")

// Permission grants access to the recording device
type Permission interface {
	Request(ctx context.Context) (bool, error)
}

// PermissionFunc adapts a function to Permission
type PermissionFunc func(ctx context.Context) (bool, error)

func (f PermissionFunc) Request(ctx context.Context) (bool, error) { return f(ctx) }

// AlwaysGranted is used where the recognizer owns the device itself
var AlwaysGranted Permission = PermissionFunc(func(context.Context) (bool, error) { return true, nil })

// Require asks p and turns a refusal into ErrPermissionDenied
func Require(ctx context.Context, p Permission) error {
	if p == nil {
		return nil
	}
	ok, err := p.Request(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPermissionDenied
	}
	return nil
}
