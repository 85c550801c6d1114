// pkg/errors/monitor_errors.go
package errors

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Error types, one per failure class the engine distinguishes. None of them
// stop the monitor or threat-feed loops.
const (
	TypeDegradedReading = "degraded_reading"
	TypePersistence     = "persistence"
	TypeAction          = "action"
	TypeThreatFeed      = "threat_feed"
	TypeConfiguration   = "configuration"
)

// MonitorError represents a structured error from a component
type MonitorError struct {
	Component   string                 `json:"component"`
	ErrorType   string                 `json:"error_type"`
	Message     string                 `json:"message"`
	Details     map[string]interface{} `json:"details,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	Severity    Severity               `json:"severity"`
	Recoverable bool                   `json:"recoverable"`
	Cause       error                  `json:"-"`
}

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Error implements the error interface
func (me *MonitorError) Error() string {
	if me.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s: %v", me.Component, me.ErrorType, me.Message, me.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", me.Component, me.ErrorType, me.Message)
}

// Unwrap returns the underlying cause
func (me *MonitorError) Unwrap() error {
	return me.Cause
}

// Log writes the error to logger at the level matching its severity.
func (me *MonitorError) Log(logger zerolog.Logger) {
	logEvent := levelFor(logger, me.Severity).
		Str("component", me.Component).
		Str("error_type", me.ErrorType).
		Bool("recoverable", me.Recoverable)

	if me.Details != nil {
		logEvent = logEvent.Interface("details", me.Details)
	}

	if me.Cause != nil {
		logEvent = logEvent.AnErr("cause", me.Cause)
	}

	logEvent.Msg(me.Message)
}

// levelFor maps severity to a log level. Critical is logged, never fatal.
func levelFor(logger zerolog.Logger, severity Severity) *zerolog.Event {
	switch severity {
	case SeverityCritical, SeverityHigh:
		return logger.Error()
	case SeverityMedium:
		return logger.Warn()
	case SeverityLow:
		return logger.Info()
	case SeverityInfo:
		return logger.Debug()
	default:
		return logger.Info()
	}
}

// Helper functions for creating common error types

func NewConfigError(component string, cause error, details map[string]interface{}) *MonitorError {
	return &MonitorError{
		Component:   component,
		ErrorType:   TypeConfiguration,
		Message:     "Configuration error occurred",
		Details:     details,
		Timestamp:   time.Now(),
		Severity:    SeverityHigh,
		Recoverable: false,
		Cause:       cause,
	}
}

func NewProbeError(signal string, strategy string, cause error) *MonitorError {
	return &MonitorError{
		Component: "probe",
		ErrorType: TypeDegradedReading,
		Message:   fmt.Sprintf("Probe strategy failed: %s", strategy),
		Details: map[string]interface{}{
			"signal":   signal,
			"strategy": strategy,
		},
		Timestamp:   time.Now(),
		Severity:    SeverityInfo,
		Recoverable: true,
		Cause:       cause,
	}
}

func NewPersistenceError(path string, operation string, cause error) *MonitorError {
	return &MonitorError{
		Component: "store",
		ErrorType: TypePersistence,
		Message:   fmt.Sprintf("Baseline %s failed", operation),
		Details: map[string]interface{}{
			"path":      path,
			"operation": operation,
		},
		Timestamp:   time.Now(),
		Severity:    SeverityMedium,
		Recoverable: true,
		Cause:       cause,
	}
}

func NewActionError(action string, target string, cause error) *MonitorError {
	return &MonitorError{
		Component: "actions",
		ErrorType: TypeAction,
		Message:   fmt.Sprintf("Action failed: %s", action),
		Details: map[string]interface{}{
			"action": action,
			"target": target,
		},
		Timestamp:   time.Now(),
		Severity:    SeverityMedium,
		Recoverable: true,
		Cause:       cause,
	}
}

func NewFeedError(source string, cause error) *MonitorError {
	return &MonitorError{
		Component: "threatfeed",
		ErrorType: TypeThreatFeed,
		Message:   fmt.Sprintf("Threat feed unavailable: %s", source),
		Details: map[string]interface{}{
			"source": source,
		},
		Timestamp:   time.Now(),
		Severity:    SeverityLow,
		Recoverable: true,
		Cause:       cause,
	}
}
