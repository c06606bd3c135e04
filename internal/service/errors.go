package service

import (
	"errors"
)

// Ошибки сервиса
var (
	ErrInvalidTargetURL = errors.New("invalid target url")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidRequest   = errors.New("invalid request")
)

// TargetError target URL маршрута не прошёл проверку при редиректе.
// AllowedSchemes действовавший на момент проверки список схем.
type TargetError struct {
	Err            error
	AllowedSchemes []string
}

func (e *TargetError) Error() string { return e.Err.Error() }

func (e *TargetError) Unwrap() error { return e.Err }
