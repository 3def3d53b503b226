package scoring

import (
	"errors"
	"fmt"

	"github.com/okian/velopick/internal/domain/model"
)

// Input errors all wrap model.ErrValidation.
var (
	ErrDuplicateRider     = fmt.Errorf("%w: duplicate rider", model.ErrValidation)
	ErrDuplicatePosition  = fmt.Errorf("%w: duplicate position", model.ErrValidation)
	ErrPositionOutOfRange = fmt.Errorf("%w: position out of range", model.ErrValidation)
	ErrWrongPickCount     = fmt.Errorf("%w: wrong number of top picks", model.ErrValidation)
	ErrTooManyPicks       = fmt.Errorf("%w: too many ranked candidates", model.ErrValidation)
	ErrEmptyRider         = fmt.Errorf("%w: empty rider id", model.ErrValidation)
)

// Configuration errors.
var (
	ErrUnknownVariant = errors.New("unknown rule variant")
	ErrInvalidRules   = errors.New("invalid rules")
)
