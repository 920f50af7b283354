package factory

import (
	"context"

	"github.com/feedwatch/metrics-alerting/common"
)

// Engine defines the alert engine's operations
type Engine interface {
	Process(ctx context.Context) (common.RunReport, error)
	IsInterfaceNil() bool
}

// Server defines the operation of an entity able to serve requests
type Server interface {
	Start()
	Address() string
	Close() error
}
