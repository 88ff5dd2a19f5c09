package report

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Event announces that a report finished generating.
type Event struct {
	Version      int       `json:"version"`
	ReportID     string    `json:"report_id"`
	PropertyType string    `json:"property_type"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Groups       []string  `json:"groups"`
	FailedGroups []string  `json:"failed_groups,omitempty"`
	CompletedAt  time.Time `json:"completed_at"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	if strings.TrimSpace(e.ReportID) == "" {
		return fmt.Errorf("report_id is required")
	}
	if e.CompletedAt.IsZero() {
		return fmt.Errorf("completed_at is required")
	}
	return nil
}

type Notifier interface {
	ReportCompleted(ctx context.Context, ev Event) error
}

type NopNotifier struct{}

func (NopNotifier) ReportCompleted(context.Context, Event) error { return nil }
