package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the classification of a build failure.
type ErrorType int

const (
	// ErrorTypeInput - bad caller input, nothing was created
	ErrorTypeInput ErrorType = iota
	// ErrorTypeSlide - one slide failed, the build carries on
	ErrorTypeSlide
	// ErrorTypePackaging - the package itself could not be produced
	ErrorTypePackaging
	// ErrorTypeUnknown - not produced by this package
	ErrorTypeUnknown
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeInput:
		return "input"
	case ErrorTypeSlide:
		return "slide"
	case ErrorTypePackaging:
		return "packaging"
	default:
		return "unknown"
	}
}

// InputError is returned before any package is created when the request
// itself cannot be built (no slides, unknown transition, ...).
type InputError struct {
	Err     error
	Field   string
	Message string
}

func (e *InputError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid input: %v", e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// Stage names the step of the per-slide pipeline that failed.
type Stage string

const (
	StageSource  Stage = "source"
	StageRaster  Stage = "raster"
	StageSlide   Stage = "slide"
	StageNotes   Stage = "notes"
	StageCommit  Stage = "commit"
	StageUnknown Stage = "unknown"
)

// SlideError is a per-slide, recoverable failure. It never escapes the slide
// loop; the builder converts it into a downgrade or a counted failure.
type SlideError struct {
	Err   error
	Index int
	Name  string
	Stage Stage
}

func (e *SlideError) Error() string {
	name := e.Name
	if name == "" {
		name = fmt.Sprintf("#%d", e.Index)
	}
	return fmt.Sprintf("slide %d (%s) %s: %v", e.Index, name, e.Stage, e.Err)
}

func (e *SlideError) Unwrap() error {
	return e.Err
}

// PackagingError aborts the whole build: skeleton creation, manifest write or
// final repack failed.
type PackagingError struct {
	Err error
	Op  string
}

func (e *PackagingError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("packaging failed: %v", e.Err)
	}
	return fmt.Sprintf("packaging failed: %s: %v", e.Op, e.Err)
}

func (e *PackagingError) Unwrap() error {
	return e.Err
}

// NewInputError creates an input error for the named field.
func NewInputError(field string, err error) *InputError {
	return &InputError{Err: err, Field: field}
}

// NewSlideError creates a per-slide error.
func NewSlideError(index int, name string, stage Stage, err error) *SlideError {
	return &SlideError{Err: err, Index: index, Name: name, Stage: stage}
}

// NewPackagingError wraps err as build-fatal.
func NewPackagingError(op string, err error) *PackagingError {
	return &PackagingError{Err: err, Op: op}
}

// IsInput reports whether err is a fatal input error.
func IsInput(err error) bool {
	var inputErr *InputError
	return errors.As(err, &inputErr)
}

// IsPackaging reports whether err aborted the build while packaging.
func IsPackaging(err error) bool {
	var packagingErr *PackagingError
	return errors.As(err, &packagingErr)
}

// IsRecoverable reports whether err only affects a single slide.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	if IsInput(err) || IsPackaging(err) {
		return false
	}
	var slideErr *SlideError
	return errors.As(err, &slideErr)
}

// Classify returns the ErrorType of err.
func Classify(err error) ErrorType {
	switch {
	case err == nil:
		return ErrorTypeUnknown
	case IsInput(err):
		return ErrorTypeInput
	case IsPackaging(err):
		return ErrorTypePackaging
	case IsRecoverable(err):
		return ErrorTypeSlide
	default:
		return ErrorTypeUnknown
	}
}

// FormatForUser renders err as a single line suitable for CLI and HTTP
// responses.
func FormatForUser(err error) string {
	if err == nil {
		return ""
	}
	switch Classify(err) {
	case ErrorTypeInput:
		return "Input error: " + err.Error()
	case ErrorTypePackaging:
		return "Build aborted: " + err.Error()
	case ErrorTypeSlide:
		return "Slide skipped: " + err.Error()
	default:
		return "Error: " + err.Error()
	}
}
