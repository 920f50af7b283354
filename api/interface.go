package api

import (
	"context"

	"github.com/feedwatch/metrics-alerting/common"
)

// RunStore defines the interface for persisting and querying run outcomes
type RunStore interface {
	// SaveRun appends one run outcome to the journal
	SaveRun(ctx context.Context, record common.RunRecord) error

	// LatestRun returns the most recently started run outcome
	LatestRun(ctx context.Context) (*common.RunRecord, error)

	// Runs returns up to limit run outcomes, most recent first
	Runs(ctx context.Context, limit int) ([]common.RunRecord, error)

	// Close shuts down the database connection
	Close() error

	IsInterfaceNil() bool
}
