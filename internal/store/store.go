package store

import (
	"context"
	"errors"

	"github.com/seantiz/faultline/internal/model"
)

// ErrInvalidTransition is returned when a run status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// RunStats holds aggregate run statistics.
type RunStats struct {
	Total          int            `json:"total"`
	CountByStatus  map[string]int `json:"count_by_status"`
	CountByVerdict map[string]int `json:"count_by_verdict"`
	ActsByVerdict  map[string]int `json:"acts_by_verdict"`
	AvgDurationMS  float64        `json:"avg_duration_ms"`
}

// Store defines the persistence operations for scenario runs.
type Store interface {
	CreateRun(ctx context.Context, r *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*model.Run, int, error)
	UpdateRunStatus(ctx context.Context, id, status string) error
	UpdateRun(ctx context.Context, r *model.Run) error
	SaveActResults(ctx context.Context, runID string, acts []model.ActResult) error
	GetActResults(ctx context.Context, runID string) ([]model.ActResult, error)
	InsertEvent(ctx context.Context, e *model.Event) error
	GetEvents(ctx context.Context, runID string) ([]model.Event, error)
	GetRunStats(ctx context.Context) (*RunStats, error)
	Close() error
}
