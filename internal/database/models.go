package database

import (
	"encoding/json"
	"fmt"
	"time"

	"object-detection-sensor/internal/detection"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CheckRecord is one poll tick as stored in the check history.
type CheckRecord struct {
	gorm.Model
	StartedAt      time.Time      `gorm:"index" json:"started_at"`
	DurationMs     int64          `json:"duration_ms"`
	Verdict        string         `gorm:"index" json:"verdict"`
	Uploaded       bool           `json:"uploaded"`
	State          string         `json:"state"`
	Status         string         `json:"status"`
	NumberOfChecks int            `json:"number_of_checks"`
	Detections     datatypes.JSON `gorm:"type:json" json:"detections"` // {"Cat": 1}
	Labels         datatypes.JSON `gorm:"type:json" json:"labels"`
	AnnotatedPath  string         `json:"annotated_path,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// NewCheckRecord builds a history record from a tick result and the error Update returned.
func NewCheckRecord(res detection.Result, tickErr error) (*CheckRecord, error) {
	detections, err := json.Marshal(res.State.Detections)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal detections: %w", err)
	}
	labels := res.Labels
	if labels == nil {
		labels = []detection.Label{}
	}
	labelJSON, err := json.Marshal(labels)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal labels: %w", err)
	}

	rec := &CheckRecord{
		StartedAt:      res.StartedAt,
		DurationMs:     res.Duration.Milliseconds(),
		Verdict:        res.Verdict.String(),
		Uploaded:       res.Uploaded,
		State:          res.State.State,
		Status:         res.State.Status,
		NumberOfChecks: res.State.NumberOfChecks,
		Detections:     datatypes.JSON(detections),
		Labels:         datatypes.JSON(labelJSON),
		AnnotatedPath:  res.AnnotatedPath,
	}
	if tickErr != nil {
		rec.Error = tickErr.Error()
	}
	return rec, nil
}
