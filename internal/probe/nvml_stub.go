//go:build !cuda

package probe

import "devicequery/internal/logging"

// stubNVML reports NVML as unavailable in builds without CUDA support.
type stubNVML struct{}

func newPlatformNVML(_ *logging.Logger) NVML {
	return stubNVML{}
}

func (stubNVML) Collect() NVMLEvidence {
	return NVMLEvidence{Err: "NVML disabled: rebuild with -tags cuda"}
}
