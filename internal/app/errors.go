package service

import (
	"errors"
	"fmt"

	"github.com/okian/velopick/internal/domain/model"
)

var (
	// ErrRegistrationClosed is returned for predictions submitted at or
	// after the race's registration deadline.
	ErrRegistrationClosed = errors.New("registration closed")
	// ErrPredictionsHidden guards other users' predictions until the
	// deadline has passed.
	ErrPredictionsHidden = errors.New("predictions are hidden until registration closes")
	// ErrNoResult is returned when a race has no committed result yet.
	ErrNoResult = errors.New("race has no result")
	// ErrQueueFull is returned when the recompute queue rejects a job.
	ErrQueueFull = errors.New("recompute queue full")
	// ErrNotStarted is returned by operations that need the background
	// components before Start was called.
	ErrNotStarted = errors.New("service not started")

	ErrUnknownRider = fmt.Errorf("%w: unknown rider", model.ErrValidation)
	ErrNotInPool    = fmt.Errorf("%w: rider not in candidate pool", model.ErrValidation)
	ErrNotContender = fmt.Errorf("%w: rider is not a head-to-head contender", model.ErrValidation)
)
