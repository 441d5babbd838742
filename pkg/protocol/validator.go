// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import (
	"fmt"
	"time"
)

// AnomalyType represents different types of message anomalies
type AnomalyType int

const (
	AnomalyOutOfRange AnomalyType = iota
	AnomalyInvalidValue
	AnomalyInvalidDate
	AnomalyMissingField
)

func (a AnomalyType) String() string {
	switch a {
	case AnomalyOutOfRange:
		return "out of range"
	case AnomalyInvalidValue:
		return "invalid value"
	case AnomalyInvalidDate:
		return "invalid date"
	case AnomalyMissingField:
		return "missing field"
	default:
		return fmt.Sprintf("AnomalyType(%d)", int(a))
	}
}

// ValidationError represents a message validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateMessage checks field ranges and cross-field consistency.
// Returns a slice of validation errors (empty if the message is valid).
// Decoded messages are delivered even when anomalies are found.
func ValidateMessage(m *Message) []ValidationError {
	errors := []ValidationError{}

	for _, spec := range required[m.kind] {
		n, err := m.Int(spec.name)
		if err != nil {
			errors = append(errors, ValidationError{
				Type:    AnomalyMissingField,
				Message: err.Error(),
				Details: map[string]interface{}{"field": spec.name},
			})
			continue
		}
		if n < spec.min || n > spec.max {
			typ := AnomalyOutOfRange
			if spec.name == FieldStatus {
				typ = AnomalyInvalidValue
			}
			errors = append(errors, ValidationError{
				Type:    typ,
				Message: fmt.Sprintf("%s=%d outside %d-%d", spec.name, n, spec.min, spec.max),
				Details: map[string]interface{}{"field": spec.name, "value": n, "min": spec.min, "max": spec.max},
			})
		}
	}

	switch m.kind {
	case KindSetDateTime:
		if len(errors) == 0 {
			errors = append(errors, validateDateTime(m)...)
		}
	case KindGetProgram:
		if name, _ := m.ProgramName(); name == "" {
			errors = append(errors, ValidationError{
				Type:    AnomalyMissingField,
				Message: "GetProgram without a program name",
				Details: map[string]interface{}{"field": FieldName},
			})
		}
	}

	return errors
}

// validateDateTime checks the day exists in the month and the weekday
// matches the date
func validateDateTime(m *Message) []ValidationError {
	dt, ok := m.DateTime()
	if !ok {
		return nil
	}

	t := dt.Time(time.UTC)
	if t.Day() != dt.Day {
		return []ValidationError{{
			Type:    AnomalyInvalidDate,
			Message: fmt.Sprintf("%04d-%02d has no day %d", dt.Year, dt.Month, dt.Day),
			Details: map[string]interface{}{"year": dt.Year, "month": dt.Month, "day": dt.Day},
		}}
	}
	if int(t.Weekday()) != dt.WeekDay {
		return []ValidationError{{
			Type:    AnomalyInvalidDate,
			Message: fmt.Sprintf("%s does not match %s (a %s)", time.Weekday(dt.WeekDay), t.Format("2006-01-02"), t.Weekday()),
			Details: map[string]interface{}{"weekday": dt.WeekDay, "expected": int(t.Weekday())},
		}}
	}
	return nil
}
