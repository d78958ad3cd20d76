//go:build cuda

package probe

import (
	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"devicequery/internal/cuda"
	"devicequery/internal/logging"
)

// realNVML collects evidence through the go-nvml bindings. Collect is a
// full init/shutdown cycle; the probe needs it at most once per process.
type realNVML struct {
	logger *logging.Logger
}

func newPlatformNVML(logger *logging.Logger) NVML {
	return realNVML{logger: logger}
}

func (r realNVML) Collect() NVMLEvidence {
	evidence := NVMLEvidence{}

	ret := nvml.Init()
	if ret != nvml.SUCCESS {
		evidence.Err = nvml.ErrorString(ret)
		return evidence
	}
	defer func() {
		if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
			r.logger.Warn("probe.nvml.shutdown.failed", "NVML shutdown reported an error", map[string]interface{}{
				"error": nvml.ErrorString(ret),
			})
		}
	}()

	evidence.OK = true

	if version, ret := nvml.SystemGetDriverVersion(); ret == nvml.SUCCESS {
		evidence.DriverVersion = version
	} else {
		r.logger.Warn("probe.nvml.driver_version.failed", "Failed to get driver version", map[string]interface{}{
			"error": nvml.ErrorString(ret),
		})
	}

	if raw, ret := nvml.SystemGetCudaDriverVersion(); ret == nvml.SUCCESS {
		evidence.CUDAVersion = cuda.VersionFromRaw(raw)
	} else {
		r.logger.Warn("probe.nvml.cuda_version.failed", "Failed to get CUDA version", map[string]interface{}{
			"error": nvml.ErrorString(ret),
		})
	}

	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		r.logger.Warn("probe.nvml.count.failed", "Failed to get device count", map[string]interface{}{
			"error": nvml.ErrorString(ret),
		})
		return evidence
	}

	for i := 0; i < count; i++ {
		dev, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			r.logger.Warn("probe.nvml.handle.failed", "Failed to get device handle", map[string]interface{}{
				"index": i,
				"error": nvml.ErrorString(ret),
			})
			continue
		}

		d := NVMLDevice{Index: i}
		if name, ret := dev.GetName(); ret == nvml.SUCCESS {
			d.Name = name
		}
		if mem, ret := dev.GetMemoryInfo(); ret == nvml.SUCCESS {
			d.MemoryBytes = mem.Total
		}
		evidence.Devices = append(evidence.Devices, d)
	}

	return evidence
}
