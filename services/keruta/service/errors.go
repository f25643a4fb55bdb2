package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrTaskNotFound       = fmt.Errorf("task %w", ErrNotFound)
	ErrJobNotFound        = fmt.Errorf("job %w", ErrNotFound)
	ErrRepositoryNotFound = fmt.Errorf("repository %w", ErrNotFound)

	ErrInvalidStatus = errors.New("invalid status")
	ErrInvalidInput  = errors.New("invalid input")
)
