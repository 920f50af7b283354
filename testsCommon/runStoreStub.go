package testsCommon

import (
	"context"

	"github.com/feedwatch/metrics-alerting/common"
)

// RunStoreStub -
type RunStoreStub struct {
	SaveRunHandler   func(ctx context.Context, record common.RunRecord) error
	LatestRunHandler func(ctx context.Context) (*common.RunRecord, error)
	RunsHandler      func(ctx context.Context, limit int) ([]common.RunRecord, error)
	CloseHandler     func() error
}

// SaveRun -
func (stub *RunStoreStub) SaveRun(ctx context.Context, record common.RunRecord) error {
	if stub.SaveRunHandler != nil {
		return stub.SaveRunHandler(ctx, record)
	}

	return nil
}

// LatestRun -
func (stub *RunStoreStub) LatestRun(ctx context.Context) (*common.RunRecord, error) {
	if stub.LatestRunHandler != nil {
		return stub.LatestRunHandler(ctx)
	}

	return &common.RunRecord{}, nil
}

// Runs -
func (stub *RunStoreStub) Runs(ctx context.Context, limit int) ([]common.RunRecord, error) {
	if stub.RunsHandler != nil {
		return stub.RunsHandler(ctx, limit)
	}

	return nil, nil
}

// Close -
func (stub *RunStoreStub) Close() error {
	if stub.CloseHandler != nil {
		return stub.CloseHandler()
	}

	return nil
}

// IsInterfaceNil -
func (stub *RunStoreStub) IsInterfaceNil() bool {
	return stub == nil
}
