package testsCommon

import (
	"context"

	"github.com/feedwatch/metrics-alerting/common"
)

// DataSourceStub -
type DataSourceStub struct {
	FetchSnapshotHandler func(ctx context.Context) (common.Snapshot, error)
}

// FetchSnapshot -
func (stub *DataSourceStub) FetchSnapshot(ctx context.Context) (common.Snapshot, error) {
	if stub.FetchSnapshotHandler != nil {
		return stub.FetchSnapshotHandler(ctx)
	}

	return common.Snapshot{}, nil
}

// IsInterfaceNil -
func (stub *DataSourceStub) IsInterfaceNil() bool {
	return stub == nil
}
