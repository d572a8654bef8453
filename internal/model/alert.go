package model

import "time"

// Severity grades an alert from informational to legal/ToS critical.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Alert is one notification produced by the pipeline monitor or the
// compliance scheduler. Delivery transport is an external collaborator.
type Alert struct {
	Severity  Severity
	Message   string
	Source    SourceID
	Component string
	Timestamp time.Time
}
