package market

import (
	"errors"
	"fmt"
)

// Classes de erro. Os demais erros embrulham uma delas com %w.
var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrTransientOracle = errors.New("transient oracle error")
	ErrInternal        = errors.New("internal error")
)

var (
	ErrInvalidOutcome = fmt.Errorf("%w: invalid outcome", ErrValidation)
	ErrInvalidSide    = fmt.Errorf("%w: invalid side", ErrValidation)
	ErrInvalidStake   = fmt.Errorf("%w: stake must be positive", ErrValidation)
	ErrMarketNotDue   = fmt.Errorf("%w: market has not reached closing date yet", ErrValidation)
	ErrMarketTerminal = fmt.Errorf("%w: market already resolved", ErrValidation)
	ErrMarketClosed   = fmt.Errorf("%w: market is not accepting bets", ErrValidation)

	ErrAlreadySettled = fmt.Errorf("%w: market already settled", ErrConflict)
	ErrMarketDisputed = fmt.Errorf("%w: market is disputed", ErrConflict)
	ErrLeaseHeld      = fmt.Errorf("%w: resolution lease already held", ErrConflict)
)

// Class é a classificação de um erro na taxonomia do núcleo de resolução
type Class string

const (
	ClassNone       Class = ""
	ClassValidation Class = "validation"
	ClassNotFound   Class = "not_found"
	ClassConflict   Class = "conflict"
	ClassTransient  Class = "transient_oracle"
	ClassInternal   Class = "internal"
)

// Classify mapeia err para sua classe; qualquer erro desconhecido é interno
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrValidation):
		return ClassValidation
	case errors.Is(err, ErrNotFound):
		return ClassNotFound
	case errors.Is(err, ErrConflict):
		return ClassConflict
	case errors.Is(err, ErrTransientOracle):
		return ClassTransient
	default:
		return ClassInternal
	}
}

// Transient embrulha err como falha transitória do oráculo
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrTransientOracle, err)
}
