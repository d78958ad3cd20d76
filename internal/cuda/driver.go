//go:build cuda

package cuda

/*
#cgo LDFLAGS: -lcuda
#include <stddef.h>
#include <cuda.h>

static CUresult devq_init(void) {
	return cuInit(0);
}

static CUresult devq_driver_version(int *version) {
	return cuDriverGetVersion(version);
}

static CUresult devq_device_count(int *count) {
	return cuDeviceGetCount(count);
}

static CUresult devq_device_get(CUdevice *dev, int ordinal) {
	return cuDeviceGet(dev, ordinal);
}

static CUresult devq_device_name(char *name, int len, CUdevice dev) {
	return cuDeviceGetName(name, len, dev);
}

static CUresult devq_device_total_mem(size_t *bytes, CUdevice dev) {
	return cuDeviceTotalMem(bytes, dev);
}

static CUresult devq_device_attribute(int *value, int attr, CUdevice dev) {
	return cuDeviceGetAttribute(value, (CUdevice_attribute)attr, dev);
}

static CUresult devq_can_access_peer(int *can, CUdevice dev, CUdevice peer) {
	return cuDeviceCanAccessPeer(can, dev, peer);
}

static const char *devq_error_string(CUresult result) {
	const char *msg = NULL;
	if (cuGetErrorString(result, &msg) != CUDA_SUCCESS || msg == NULL) {
		return "unrecognized CUDA error";
	}
	return msg;
}
*/
import "C"

import (
	"fmt"

	"devicequery/internal/logging"
)

// session implements Session on top of the real driver. The driver API
// has no deinitialization call, so Close only fences further use.
type session struct {
	version Version
	logger  *logging.Logger
	closed  bool
}

// Open initializes the CUDA driver and reads the driver version once.
func Open(logger *logging.Logger) (Session, error) {
	if ret := C.devq_init(); ret != C.CUDA_SUCCESS {
		return nil, fmt.Errorf("%w: %s", ErrInitFailed, errorString(ret))
	}

	s := &session{logger: logger}

	var raw C.int
	if ret := C.devq_driver_version(&raw); ret != C.CUDA_SUCCESS {
		// Not fatal: the report renders version 0.0
		logger.Warn("cuda.driver.version.failed", "Failed to read driver version", map[string]interface{}{
			"error": errorString(ret),
		})
	} else {
		s.version = VersionFromRaw(int(raw))
	}

	return s, nil
}

func (s *session) DeviceCount() (int, error) {
	if s.closed {
		return 0, ErrSessionClosed
	}

	var count C.int
	if ret := C.devq_device_count(&count); ret != C.CUDA_SUCCESS {
		return 0, fmt.Errorf("failed to count devices: %s", errorString(ret))
	}
	return int(count), nil
}

func (s *session) DeviceByIndex(index int) (Device, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}

	var dev C.CUdevice
	ret := C.devq_device_get(&dev, C.int(index))
	if ret == C.CUDA_ERROR_INVALID_DEVICE {
		return nil, fmt.Errorf("%w: index %d", ErrNoSuchDevice, index)
	}
	if ret != C.CUDA_SUCCESS {
		return nil, fmt.Errorf("failed to get device %d: %s", index, errorString(ret))
	}
	return deviceHandle{dev: dev}, nil
}

func (s *session) DriverVersion() Version {
	return s.version
}

func (s *session) Close() error {
	s.closed = true
	return nil
}

// deviceHandle implements Device for one CUdevice ordinal.
type deviceHandle struct {
	dev C.CUdevice
}

func (d deviceHandle) Name() (string, error) {
	var buf [256]C.char
	if ret := C.devq_device_name(&buf[0], C.int(len(buf)), d.dev); ret != C.CUDA_SUCCESS {
		return "", fmt.Errorf("failed to read device name: %s", errorString(ret))
	}
	return C.GoString(&buf[0]), nil
}

func (d deviceHandle) TotalMem() (uint64, error) {
	var bytes C.size_t
	if ret := C.devq_device_total_mem(&bytes, d.dev); ret != C.CUDA_SUCCESS {
		return 0, fmt.Errorf("failed to read total memory: %s", errorString(ret))
	}
	return uint64(bytes), nil
}

func (d deviceHandle) Attribute(attr DeviceAttribute) (int, error) {
	var value C.int
	ret := C.devq_device_attribute(&value, C.int(attr), d.dev)
	// Older drivers answer unknown attribute enums with CUDA_ERROR_INVALID_VALUE
	if ret == C.CUDA_ERROR_NOT_SUPPORTED || ret == C.CUDA_ERROR_INVALID_VALUE {
		return 0, ErrUnsupported
	}
	if ret != C.CUDA_SUCCESS {
		return 0, fmt.Errorf("failed to query %s: %s", attr, errorString(ret))
	}
	return int(value), nil
}

func (d deviceHandle) CanAccessPeer(peer Device) (bool, error) {
	other, ok := peer.(deviceHandle)
	if !ok {
		return false, fmt.Errorf("peer device is not a driver handle")
	}

	var can C.int
	if ret := C.devq_can_access_peer(&can, d.dev, other.dev); ret != C.CUDA_SUCCESS {
		return false, fmt.Errorf("failed to query peer access: %s", errorString(ret))
	}
	return can != 0, nil
}

func errorString(ret C.CUresult) string {
	return fmt.Sprintf("%s (code %d)", C.GoString(C.devq_error_string(ret)), int(ret))
}
