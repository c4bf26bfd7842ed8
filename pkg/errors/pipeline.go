package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Category groups pipeline errors by who has to act on them.
type Category int

const (
	// CategoryUnknown is any error outside the pipeline taxonomy.
	CategoryUnknown Category = iota
	// CategoryInput covers malformed or incomplete user input.
	CategoryInput
	// CategoryContract covers predict-time input that does not match the training contract.
	CategoryContract
	// CategoryDispatch covers caller configuration faults detected before fitting.
	CategoryDispatch
	// CategoryEstimator covers faults raised by the underlying estimator.
	CategoryEstimator
)

func (c Category) String() string {
	switch c {
	case CategoryInput:
		return "input"
	case CategoryContract:
		return "contract"
	case CategoryDispatch:
		return "dispatch"
	case CategoryEstimator:
		return "estimator"
	default:
		return "unknown"
	}
}

// CategoryOf reports the category of the first pipeline error found in err's chain.
func CategoryOf(err error) Category {
	if err == nil {
		return CategoryUnknown
	}
	var (
		empty      *EmptyInputError
		malformed  *MalformedInputError
		target     *TargetNotFoundError
		drop       *ColumnDropError
		missing    *MissingFeatureError
		unknownCat *UnknownCategoryError
		mismatch   *TypeMismatchError
		pairing    *ContractMismatchError
		algo       *UnknownAlgorithmError
		compat     *IncompatibleTargetError
		training   *TrainingFailedError
		inference  *InferenceError
	)
	switch {
	case errors.As(err, &empty), errors.As(err, &malformed), errors.As(err, &target),
		errors.As(err, &drop), errors.As(err, &missing):
		return CategoryInput
	case errors.As(err, &unknownCat), errors.As(err, &mismatch), errors.As(err, &pairing):
		return CategoryContract
	case errors.As(err, &algo), errors.As(err, &compat):
		return CategoryDispatch
	case errors.As(err, &training), errors.As(err, &inference):
		return CategoryEstimator
	}
	return CategoryUnknown
}

// EmptyInputError is returned when uploaded bytes contain no columns or no rows.
type EmptyInputError struct {
	Reason string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("tabml: empty input: %s", e.Reason)
}

// MarshalZerologObject adds structured fields to a zerolog event.
func (e *EmptyInputError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("reason", e.Reason).Str("type", "EmptyInputError")
}

// NewEmptyInputError creates an EmptyInputError with a stack trace.
func NewEmptyInputError(reason string) error {
	return errors.WithStack(&EmptyInputError{Reason: reason})
}

// MalformedInputError is returned when bytes cannot be parsed as delimited text.
type MalformedInputError struct {
	Line   int // 1-based; 0 when not tied to a line
	Reason string
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("tabml: malformed input at line %d: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("tabml: malformed input: %s", e.Reason)
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds structured fields to a zerolog event.
func (e *MalformedInputError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("line", e.Line).Str("reason", e.Reason).Str("type", "MalformedInputError")
}

// NewMalformedInputError creates a MalformedInputError with a stack trace.
func NewMalformedInputError(line int, reason string, cause error) error {
	return errors.WithStack(&MalformedInputError{Line: line, Reason: reason, Err: cause})
}

// TargetNotFoundError is returned when the requested target is not a table column.
type TargetNotFoundError struct {
	Column    string
	Available []string
}

func (e *TargetNotFoundError) Error() string {
	return fmt.Sprintf("tabml: target column %q not found (available: %s)", e.Column, strings.Join(e.Available, ", "))
}

// MarshalZerologObject adds structured fields to a zerolog event.
func (e *TargetNotFoundError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("column", e.Column).Strs("available", e.Available).Str("type", "TargetNotFoundError")
}

// NewTargetNotFoundError creates a TargetNotFoundError with a stack trace.
func NewTargetNotFoundError(column string, available []string) error {
	return errors.WithStack(&TargetNotFoundError{Column: column, Available: available})
}

// ColumnDropError is returned when a drop list names the target or an absent column.
type ColumnDropError struct {
	Columns []string
	Reason  string
}

func (e *ColumnDropError) Error() string {
	return fmt.Sprintf("tabml: cannot drop columns [%s]: %s", strings.Join(e.Columns, ", "), e.Reason)
}

// MarshalZerologObject adds structured fields to a zerolog event.
func (e *ColumnDropError) MarshalZerologObject(event *zerolog.Event) {
	event.Strs("columns", e.Columns).Str("reason", e.Reason).Str("type", "ColumnDropError")
}

// NewColumnDropError creates a ColumnDropError with a stack trace.
func NewColumnDropError(columns []string, reason string) error {
	return errors.WithStack(&ColumnDropError{Columns: columns, Reason: reason})
}

// MissingFeatureError names every contract feature absent from a prediction record.
type MissingFeatureError struct {
	Columns []string
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("tabml: missing features: %s", strings.Join(e.Columns, ", "))
}

// MarshalZerologObject adds structured fields to a zerolog event.
func (e *MissingFeatureError) MarshalZerologObject(event *zerolog.Event) {
	event.Strs("columns", e.Columns).Str("type", "MissingFeatureError")
}

// NewMissingFeatureError creates a MissingFeatureError with a stack trace.
func NewMissingFeatureError(columns []string) error {
	return errors.WithStack(&MissingFeatureError{Columns: columns})
}

// UnknownCategoryError is returned when a categorical value was never seen during training.
type UnknownCategoryError struct {
	Column string
	Value  string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("tabml: unknown category %q in column %q", e.Value, e.Column)
}

// MarshalZerologObject adds structured fields to a zerolog event.
func (e *UnknownCategoryError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("column", e.Column).Str("value", e.Value).Str("type", "UnknownCategoryError")
}

// NewUnknownCategoryError creates an UnknownCategoryError with a stack trace.
func NewUnknownCategoryError(column, value string) error {
	return errors.WithStack(&UnknownCategoryError{Column: column, Value: value})
}

// TypeMismatchError is returned when a record value has the wrong Go type for its feature.
type TypeMismatchError struct {
	Column   string
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("tabml: column %q expects a %s value, got %s", e.Column, e.Expected, e.Got)
}

// MarshalZerologObject adds structured fields to a zerolog event.
func (e *TypeMismatchError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("column", e.Column).
		Str("expected", e.Expected).
		Str("got", e.Got).
		Str("type", "TypeMismatchError")
}

// NewTypeMismatchError creates a TypeMismatchError with a stack trace.
func NewTypeMismatchError(column, expected, got string) error {
	return errors.WithStack(&TypeMismatchError{Column: column, Expected: expected, Got: got})
}

// ContractMismatchError is returned when a contract and an artifact come from different training runs.
type ContractMismatchError struct {
	ContractRun string
	ArtifactRun string
}

func (e *ContractMismatchError) Error() string {
	return fmt.Sprintf("tabml: contract from run %s cannot be paired with artifact from run %s", e.ContractRun, e.ArtifactRun)
}

// MarshalZerologObject adds structured fields to a zerolog event.
func (e *ContractMismatchError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("contract_run", e.ContractRun).
		Str("artifact_run", e.ArtifactRun).
		Str("type", "ContractMismatchError")
}

// NewContractMismatchError creates a ContractMismatchError with a stack trace.
func NewContractMismatchError(contractRun, artifactRun string) error {
	return errors.WithStack(&ContractMismatchError{ContractRun: contractRun, ArtifactRun: artifactRun})
}

// UnknownAlgorithmError is returned for an algorithm identifier outside the supported set.
type UnknownAlgorithmError struct {
	Algorithm string
	Supported []string
}

func (e *UnknownAlgorithmError) Error() string {
	return fmt.Sprintf("tabml: unknown algorithm %q (supported: %s)", e.Algorithm, strings.Join(e.Supported, ", "))
}

// MarshalZerologObject adds structured fields to a zerolog event.
func (e *UnknownAlgorithmError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("algorithm", e.Algorithm).Strs("supported", e.Supported).Str("type", "UnknownAlgorithmError")
}

// NewUnknownAlgorithmError creates an UnknownAlgorithmError with a stack trace.
func NewUnknownAlgorithmError(algorithm string, supported []string) error {
	return errors.WithStack(&UnknownAlgorithmError{Algorithm: algorithm, Supported: supported})
}

// IncompatibleTargetError is returned when an algorithm cannot model the target's kind.
type IncompatibleTargetError struct {
	Algorithm  string
	TargetKind string
	Capability string
}

func (e *IncompatibleTargetError) Error() string {
	return fmt.Sprintf("tabml: algorithm %q is %s and cannot be trained on a %s target", e.Algorithm, e.Capability, e.TargetKind)
}

// MarshalZerologObject adds structured fields to a zerolog event.
func (e *IncompatibleTargetError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("algorithm", e.Algorithm).
		Str("target_kind", e.TargetKind).
		Str("capability", e.Capability).
		Str("type", "IncompatibleTargetError")
}

// NewIncompatibleTargetError creates an IncompatibleTargetError with a stack trace.
func NewIncompatibleTargetError(algorithm, targetKind, capability string) error {
	return errors.WithStack(&IncompatibleTargetError{Algorithm: algorithm, TargetKind: targetKind, Capability: capability})
}

// TrainingFailedError wraps an estimator fault raised while fitting.
// The message is generic; the cause is only reachable through Unwrap.
type TrainingFailedError struct {
	Algorithm string
	Cause     error
}

func (e *TrainingFailedError) Error() string {
	return fmt.Sprintf("tabml: training %s model failed", e.Algorithm)
}

func (e *TrainingFailedError) Unwrap() error {
	return e.Cause
}

// MarshalZerologObject adds structured fields to a zerolog event.
func (e *TrainingFailedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("algorithm", e.Algorithm).Str("type", "TrainingFailedError")
	if e.Cause != nil {
		event.Str("cause", e.Cause.Error())
	}
}

// NewTrainingFailedError creates a TrainingFailedError with a stack trace.
func NewTrainingFailedError(algorithm string, cause error) error {
	return errors.WithStack(&TrainingFailedError{Algorithm: algorithm, Cause: cause})
}

// InferenceError wraps an estimator fault raised while predicting.
type InferenceError struct {
	Cause error
}

func (e *InferenceError) Error() string {
	return "tabml: inference failed"
}

func (e *InferenceError) Unwrap() error {
	return e.Cause
}

// MarshalZerologObject adds structured fields to a zerolog event.
func (e *InferenceError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("type", "InferenceError")
	if e.Cause != nil {
		event.Str("cause", e.Cause.Error())
	}
}

// NewInferenceError creates an InferenceError with a stack trace.
func NewInferenceError(cause error) error {
	return errors.WithStack(&InferenceError{Cause: cause})
}
