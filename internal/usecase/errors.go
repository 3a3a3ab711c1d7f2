package usecase

import (
	"errors"

	"github.com/ahlev/Parlaybot/internal/domain/pick"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("pick not found")
	ErrAlreadyExists         = errors.New("pick already exists")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInvalidLeague         = pick.ErrInvalidLeague
	ErrPersistenceFailure    = errors.New("persistence failure")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
