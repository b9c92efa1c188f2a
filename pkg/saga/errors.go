package saga

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopagent/cartwright/pkg/budget"
	"github.com/shopagent/cartwright/pkg/checkout"
)

// Kind classifies why a saga run failed.
type Kind string

const (
	KindInvalidInput     Kind = "invalid_input"
	KindStageTimeout     Kind = "stage_timeout"
	KindProvider         Kind = "provider_error"
	KindNoOffers         Kind = "no_offers"
	KindTokenBudgetBlock Kind = "token_budget_block"
	KindAdmission        Kind = "admission_error"
)

// Error is the failure a saga run returns. Stage is the event name of the
// failing stage; empty for pre-flight input validation.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Kind, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// reason is the annotation string attached to failure stage events.
func (e *Error) reason() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

// KindOf extracts the kind from a run error. Errors that never passed
// through a stage map to the provider kind.
func KindOf(err error) Kind {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Kind
	}
	return KindProvider
}

// AdmissionStep returns the failing admission step code when err is a
// checkout rejection, or "" otherwise.
func AdmissionStep(err error) checkout.Step {
	var aerr *checkout.AdmissionError
	if errors.As(err, &aerr) {
		return aerr.Step
	}
	return ""
}

// classify wraps err as a saga error, inferring the kind when the stage
// function returned a plain error.
func classify(err error, stage string) *Error {
	var serr *Error
	if errors.As(err, &serr) {
		if serr.Stage == "" {
			serr.Stage = stage
		}
		return serr
	}

	kind := KindProvider
	var aerr *checkout.AdmissionError
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = KindStageTimeout
	case errors.Is(err, budget.ErrTokenBudgetBlock):
		kind = KindTokenBudgetBlock
	case errors.As(err, &aerr):
		kind = KindAdmission
	}
	return &Error{Kind: kind, Stage: stage, Err: err}
}
