// Package errs defines the failure taxonomy shared by every pipeline.
package errs

import "github.com/cockroachdb/errors"

var (
	// ErrNotFound means a username or id did not resolve upstream, or a
	// requested row does not exist locally.
	ErrNotFound = errors.New("not found")

	// ErrTranslation means an upstream payload contained a value the
	// translator cannot interpret. Fatal to the current pipeline run.
	ErrTranslation = errors.New("untranslatable payload")

	// ErrValidation means a caller passed a malformed identifier where a
	// natural-key identifier was required. Raised before any remote call.
	ErrValidation = errors.New("invalid identifier")
)

// NotFoundf builds a formatted error classified as ErrNotFound.
func NotFoundf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotFound)
}

// Translationf builds a formatted error classified as ErrTranslation.
func Translationf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrTranslation)
}

// Validationf builds a formatted error classified as ErrValidation.
func Validationf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

// IsNotFound reports whether err carries the ErrNotFound mark.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsTranslation reports whether err carries the ErrTranslation mark.
func IsTranslation(err error) bool { return errors.Is(err, ErrTranslation) }

// IsValidation reports whether err carries the ErrValidation mark.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
