// Package types defines the shared data model for attention monitoring and
// voice intervention.
package types

import (
	"encoding/json"
	"time"
)

// Confidence expresses how certain the vision oracle is about a judgment.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Judgment is the structured output of one screen analysis. It is immutable
// once produced; each oracle call supersedes the previous Judgment entirely.
type Judgment struct {
	ActivityDescription string     `json:"activity_detected"`
	OnTask              bool       `json:"is_on_task"`
	Confidence          Confidence `json:"confidence"`
	Reasoning           string     `json:"reasoning"`
	SourceApp           string     `json:"app_or_website"`
	NeedsIntervention   bool       `json:"needs_intervention"`

	// DistractionCount and Timestamp are stamped by the caller after the
	// oracle responds; they are not part of the wire format the model emits.
	DistractionCount int       `json:"distraction_count,omitempty"`
	Timestamp        time.Time `json:"timestamp,omitempty"`
}

// UnmarshalJudgment parses the oracle's JSON payload. Unknown confidence
// values are normalized to low rather than rejected.
func UnmarshalJudgment(data []byte) (Judgment, error) {
	var j Judgment
	if err := json.Unmarshal(data, &j); err != nil {
		return Judgment{}, err
	}
	switch j.Confidence {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
	default:
		j.Confidence = ConfidenceLow
	}
	return j, nil
}
