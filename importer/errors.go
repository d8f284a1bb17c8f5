package importer

import (
	"fmt"

	"github.com/pkg/errors"
)

// FormatError marks malformed or unsupported source data. Fatal for the
// branch or file being processed.
type FormatError struct {
	Msg string
}

func (e *FormatError) Error() string { return e.Msg }

func formatErrorf(format string, a ...interface{}) error {
	return errors.WithStack(&FormatError{Msg: fmt.Sprintf(format, a...)})
}

func IsFormatError(err error) bool {
	_, ok := errors.Cause(err).(*FormatError)
	return ok
}

// ConfigurationError marks caller options that contradict the source data.
// Fatal, raised at the point of detection.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return e.Msg }

func configErrorf(format string, a ...interface{}) error {
	return errors.WithStack(&ConfigurationError{Msg: fmt.Sprintf(format, a...)})
}

func IsConfigurationError(err error) bool {
	_, ok := errors.Cause(err).(*ConfigurationError)
	return ok
}

// InvariantError is the panic payload for broken internal contracts. It is
// never recovered inside the import core.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return e.Msg }

func invariant(cond bool, format string, a ...interface{}) {
	if !cond {
		panic(&InvariantError{Msg: fmt.Sprintf(format, a...)})
	}
}

// Diagnostics collects recoverable policy warnings for one import run.
type Diagnostics struct {
	Warnings []string
}

func (d *Diagnostics) Warnf(format string, a ...interface{}) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, a...))
}

func (d *Diagnostics) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Warnings)
}
