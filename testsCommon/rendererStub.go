package testsCommon

import (
	"github.com/feedwatch/metrics-alerting/common"
	"github.com/feedwatch/metrics-alerting/detector"
)

// RendererStub -
type RendererStub struct {
	RenderLineChartHandler func(series common.MetricSeries, envelope detector.Envelope, title string) ([]byte, error)
}

// RenderLineChart -
func (stub *RendererStub) RenderLineChart(series common.MetricSeries, envelope detector.Envelope, title string) ([]byte, error) {
	if stub.RenderLineChartHandler != nil {
		return stub.RenderLineChartHandler(series, envelope, title)
	}

	return []byte("png"), nil
}

// IsInterfaceNil -
func (stub *RendererStub) IsInterfaceNil() bool {
	return stub == nil
}
