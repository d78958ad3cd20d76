// Package cuda wraps the CUDA driver API behind narrow interfaces so
// the capability pipeline can run against a fake driver in tests. The
// real binding is only compiled with the cuda build tag.
package cuda

import (
	"errors"
	"fmt"
)

var (
	// ErrInitFailed indicates the driver could not be loaded or initialized.
	ErrInitFailed = errors.New("driver initialization failed")
	// ErrNoSuchDevice indicates a device index outside the enumerated range.
	ErrNoSuchDevice = errors.New("no such device")
	// ErrUnsupported indicates an attribute the device/driver combination
	// does not report. Callers recover from it locally; it never aborts a run.
	ErrUnsupported = errors.New("attribute not supported")
	// ErrSessionClosed indicates use of a session after Close.
	ErrSessionClosed = errors.New("session is closed")
)

// Version is a decoded driver version.
type Version struct {
	Major int
	Minor int
}

// VersionFromRaw decodes the packed integer reported by the driver
// (12080 means 12.8).
func VersionFromRaw(raw int) Version {
	return Version{
		Major: raw / 1000,
		Minor: (raw % 1000) / 10,
	}
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Session is an open connection to the accelerator driver. It is
// read-only after Open and must be closed exactly once.
type Session interface {
	DeviceCount() (int, error)
	DeviceByIndex(index int) (Device, error)
	DriverVersion() Version
	Close() error
}

// Device is one enumerated accelerator device. Handles never outlive
// their session.
type Device interface {
	Name() (string, error)
	TotalMem() (uint64, error)
	Attribute(attr DeviceAttribute) (int, error)
	CanAccessPeer(peer Device) (bool, error)
}

// DeviceAttribute identifies one capability query. Values mirror the
// driver API CUdevice_attribute enum.
type DeviceAttribute int

const (
	MAX_THREADS_PER_BLOCK                DeviceAttribute = 1
	MAX_BLOCK_DIM_X                      DeviceAttribute = 2
	MAX_BLOCK_DIM_Y                      DeviceAttribute = 3
	MAX_BLOCK_DIM_Z                      DeviceAttribute = 4
	MAX_GRID_DIM_X                       DeviceAttribute = 5
	MAX_GRID_DIM_Y                       DeviceAttribute = 6
	MAX_GRID_DIM_Z                       DeviceAttribute = 7
	MAX_SHARED_MEMORY_PER_BLOCK          DeviceAttribute = 8
	TOTAL_CONSTANT_MEMORY                DeviceAttribute = 9
	WARP_SIZE                            DeviceAttribute = 10
	MAX_PITCH                            DeviceAttribute = 11
	MAX_REGISTERS_PER_BLOCK              DeviceAttribute = 12
	CLOCK_RATE                           DeviceAttribute = 13
	TEXTURE_ALIGNMENT                    DeviceAttribute = 14
	GPU_OVERLAP                          DeviceAttribute = 15
	MULTIPROCESSOR_COUNT                 DeviceAttribute = 16
	KERNEL_EXEC_TIMEOUT                  DeviceAttribute = 17
	INTEGRATED                           DeviceAttribute = 18
	CAN_MAP_HOST_MEMORY                  DeviceAttribute = 19
	COMPUTE_MODE                         DeviceAttribute = 20
	MAXIMUM_TEXTURE1D_WIDTH              DeviceAttribute = 21
	MAXIMUM_TEXTURE2D_WIDTH              DeviceAttribute = 22
	MAXIMUM_TEXTURE2D_HEIGHT             DeviceAttribute = 23
	MAXIMUM_TEXTURE3D_WIDTH              DeviceAttribute = 24
	MAXIMUM_TEXTURE3D_HEIGHT             DeviceAttribute = 25
	MAXIMUM_TEXTURE3D_DEPTH              DeviceAttribute = 26
	MAXIMUM_TEXTURE2D_LAYERED_WIDTH      DeviceAttribute = 27
	MAXIMUM_TEXTURE2D_LAYERED_HEIGHT     DeviceAttribute = 28
	MAXIMUM_TEXTURE2D_LAYERED_LAYERS     DeviceAttribute = 29
	SURFACE_ALIGNMENT                    DeviceAttribute = 30
	ECC_ENABLED                          DeviceAttribute = 32
	PCI_BUS_ID                           DeviceAttribute = 33
	PCI_DEVICE_ID                        DeviceAttribute = 34
	MEMORY_CLOCK_RATE                    DeviceAttribute = 36
	GLOBAL_MEMORY_BUS_WIDTH              DeviceAttribute = 37
	L2_CACHE_SIZE                        DeviceAttribute = 38
	MAX_THREADS_PER_MULTIPROCESSOR       DeviceAttribute = 39
	ASYNC_ENGINE_COUNT                   DeviceAttribute = 40
	UNIFIED_ADDRESSING                   DeviceAttribute = 41
	MAXIMUM_TEXTURE1D_LAYERED_WIDTH      DeviceAttribute = 42
	MAXIMUM_TEXTURE1D_LAYERED_LAYERS     DeviceAttribute = 43
	PCI_DOMAIN_ID                        DeviceAttribute = 50
	COMPUTE_CAPABILITY_MAJOR             DeviceAttribute = 75
	COMPUTE_CAPABILITY_MINOR             DeviceAttribute = 76
	MAX_SHARED_MEMORY_PER_MULTIPROCESSOR DeviceAttribute = 81
	MANAGED_MEMORY                       DeviceAttribute = 83
	COMPUTE_PREEMPTION_SUPPORTED         DeviceAttribute = 90
	COOPERATIVE_LAUNCH                   DeviceAttribute = 95
	COOPERATIVE_MULTI_DEVICE_LAUNCH      DeviceAttribute = 96
)

var attributeNames = map[DeviceAttribute]string{
	MAX_THREADS_PER_BLOCK:                "max_threads_per_block",
	MAX_BLOCK_DIM_X:                      "max_block_dim_x",
	MAX_BLOCK_DIM_Y:                      "max_block_dim_y",
	MAX_BLOCK_DIM_Z:                      "max_block_dim_z",
	MAX_GRID_DIM_X:                       "max_grid_dim_x",
	MAX_GRID_DIM_Y:                       "max_grid_dim_y",
	MAX_GRID_DIM_Z:                       "max_grid_dim_z",
	MAX_SHARED_MEMORY_PER_BLOCK:          "max_shared_memory_per_block",
	TOTAL_CONSTANT_MEMORY:                "total_constant_memory",
	WARP_SIZE:                            "warp_size",
	MAX_PITCH:                            "max_pitch",
	MAX_REGISTERS_PER_BLOCK:              "max_registers_per_block",
	CLOCK_RATE:                           "clock_rate",
	TEXTURE_ALIGNMENT:                    "texture_alignment",
	GPU_OVERLAP:                          "gpu_overlap",
	MULTIPROCESSOR_COUNT:                 "multiprocessor_count",
	KERNEL_EXEC_TIMEOUT:                  "kernel_exec_timeout",
	INTEGRATED:                           "integrated",
	CAN_MAP_HOST_MEMORY:                  "can_map_host_memory",
	COMPUTE_MODE:                         "compute_mode",
	MAXIMUM_TEXTURE1D_WIDTH:              "maximum_texture1d_width",
	MAXIMUM_TEXTURE2D_WIDTH:              "maximum_texture2d_width",
	MAXIMUM_TEXTURE2D_HEIGHT:             "maximum_texture2d_height",
	MAXIMUM_TEXTURE3D_WIDTH:              "maximum_texture3d_width",
	MAXIMUM_TEXTURE3D_HEIGHT:             "maximum_texture3d_height",
	MAXIMUM_TEXTURE3D_DEPTH:              "maximum_texture3d_depth",
	MAXIMUM_TEXTURE2D_LAYERED_WIDTH:      "maximum_texture2d_layered_width",
	MAXIMUM_TEXTURE2D_LAYERED_HEIGHT:     "maximum_texture2d_layered_height",
	MAXIMUM_TEXTURE2D_LAYERED_LAYERS:     "maximum_texture2d_layered_layers",
	SURFACE_ALIGNMENT:                    "surface_alignment",
	ECC_ENABLED:                          "ecc_enabled",
	PCI_BUS_ID:                           "pci_bus_id",
	PCI_DEVICE_ID:                        "pci_device_id",
	MEMORY_CLOCK_RATE:                    "memory_clock_rate",
	GLOBAL_MEMORY_BUS_WIDTH:              "global_memory_bus_width",
	L2_CACHE_SIZE:                        "l2_cache_size",
	MAX_THREADS_PER_MULTIPROCESSOR:       "max_threads_per_multiprocessor",
	ASYNC_ENGINE_COUNT:                   "async_engine_count",
	UNIFIED_ADDRESSING:                   "unified_addressing",
	MAXIMUM_TEXTURE1D_LAYERED_WIDTH:      "maximum_texture1d_layered_width",
	MAXIMUM_TEXTURE1D_LAYERED_LAYERS:     "maximum_texture1d_layered_layers",
	PCI_DOMAIN_ID:                        "pci_domain_id",
	COMPUTE_CAPABILITY_MAJOR:             "compute_capability_major",
	COMPUTE_CAPABILITY_MINOR:             "compute_capability_minor",
	MAX_SHARED_MEMORY_PER_MULTIPROCESSOR: "max_shared_memory_per_multiprocessor",
	MANAGED_MEMORY:                       "managed_memory",
	COMPUTE_PREEMPTION_SUPPORTED:         "compute_preemption_supported",
	COOPERATIVE_LAUNCH:                   "cooperative_launch",
	COOPERATIVE_MULTI_DEVICE_LAUNCH:      "cooperative_multi_device_launch",
}

func (a DeviceAttribute) String() string {
	if name, ok := attributeNames[a]; ok {
		return name
	}
	return fmt.Sprintf("attribute_%d", int(a))
}
