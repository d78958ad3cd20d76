package device

import (
	"devicequery/internal/cuda"
)

// fakeSession implements cuda.Session for testing
type fakeSession struct {
	devices    []*fakeDevice
	countErr   error
	failIndex  int
	failErr    error
	version    cuda.Version
	closed     bool
	closeCount int
}

// newFakeSession creates a session fake with sane defaults
func newFakeSession(devices ...*fakeDevice) *fakeSession {
	return &fakeSession{
		devices:   devices,
		failIndex: -1,
		version:   cuda.VersionFromRaw(12080),
	}
}

func (f *fakeSession) DeviceCount() (int, error) {
	if f.closed {
		return 0, cuda.ErrSessionClosed
	}
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.devices), nil
}

func (f *fakeSession) DeviceByIndex(index int) (cuda.Device, error) {
	if f.closed {
		return nil, cuda.ErrSessionClosed
	}
	if f.failIndex == index && f.failErr != nil {
		return nil, f.failErr
	}
	if index < 0 || index >= len(f.devices) {
		return nil, cuda.ErrNoSuchDevice
	}
	return f.devices[index], nil
}

func (f *fakeSession) DriverVersion() cuda.Version {
	return f.version
}

// Close fences further use, like the real binding. Repeated calls
// stay nil and are counted so tests can pin close-once ownership.
func (f *fakeSession) Close() error {
	f.closed = true
	f.closeCount++
	return nil
}

// fakeDevice implements cuda.Device for testing
type fakeDevice struct {
	name        string
	nameErr     error
	totalMem    uint64
	totalMemErr error
	attrs       map[cuda.DeviceAttribute]int
	attrErrs    map[cuda.DeviceAttribute]error
	unsupported map[cuda.DeviceAttribute]bool
	peers       map[*fakeDevice]bool
	peerErr     error
	attrCalls   int
}

func (d *fakeDevice) Name() (string, error) {
	if d.nameErr != nil {
		return "", d.nameErr
	}
	return d.name, nil
}

func (d *fakeDevice) TotalMem() (uint64, error) {
	if d.totalMemErr != nil {
		return 0, d.totalMemErr
	}
	return d.totalMem, nil
}

func (d *fakeDevice) Attribute(attr cuda.DeviceAttribute) (int, error) {
	d.attrCalls++
	if err, ok := d.attrErrs[attr]; ok {
		return 0, err
	}
	if d.unsupported[attr] {
		return 0, cuda.ErrUnsupported
	}
	if v, ok := d.attrs[attr]; ok {
		return v, nil
	}
	return 0, cuda.ErrUnsupported
}

func (d *fakeDevice) CanAccessPeer(peer cuda.Device) (bool, error) {
	if d.peerErr != nil {
		return false, d.peerErr
	}
	other, ok := peer.(*fakeDevice)
	if !ok {
		return false, nil
	}
	return d.peers[other], nil
}

// l40sAttrs returns the full attribute map of an NVIDIA L40S
func l40sAttrs() map[cuda.DeviceAttribute]int {
	return map[cuda.DeviceAttribute]int{
		cuda.COMPUTE_CAPABILITY_MAJOR:             8,
		cuda.COMPUTE_CAPABILITY_MINOR:             9,
		cuda.MULTIPROCESSOR_COUNT:                 142,
		cuda.CLOCK_RATE:                           2520000,
		cuda.MEMORY_CLOCK_RATE:                    9001000,
		cuda.GLOBAL_MEMORY_BUS_WIDTH:              384,
		cuda.L2_CACHE_SIZE:                        100663296,
		cuda.MAXIMUM_TEXTURE1D_WIDTH:              131072,
		cuda.MAXIMUM_TEXTURE2D_WIDTH:              131072,
		cuda.MAXIMUM_TEXTURE2D_HEIGHT:             65536,
		cuda.MAXIMUM_TEXTURE3D_WIDTH:              16384,
		cuda.MAXIMUM_TEXTURE3D_HEIGHT:             16384,
		cuda.MAXIMUM_TEXTURE3D_DEPTH:              16384,
		cuda.MAXIMUM_TEXTURE1D_LAYERED_WIDTH:      32768,
		cuda.MAXIMUM_TEXTURE1D_LAYERED_LAYERS:     2048,
		cuda.MAXIMUM_TEXTURE2D_LAYERED_WIDTH:      32768,
		cuda.MAXIMUM_TEXTURE2D_LAYERED_HEIGHT:     32768,
		cuda.MAXIMUM_TEXTURE2D_LAYERED_LAYERS:     2048,
		cuda.TOTAL_CONSTANT_MEMORY:                65536,
		cuda.MAX_SHARED_MEMORY_PER_BLOCK:          49152,
		cuda.MAX_SHARED_MEMORY_PER_MULTIPROCESSOR: 102400,
		cuda.MAX_REGISTERS_PER_BLOCK:              65536,
		cuda.WARP_SIZE:                            32,
		cuda.MAX_THREADS_PER_MULTIPROCESSOR:       1536,
		cuda.MAX_THREADS_PER_BLOCK:                1024,
		cuda.MAX_BLOCK_DIM_X:                      1024,
		cuda.MAX_BLOCK_DIM_Y:                      1024,
		cuda.MAX_BLOCK_DIM_Z:                      64,
		cuda.MAX_GRID_DIM_X:                       2147483647,
		cuda.MAX_GRID_DIM_Y:                       65535,
		cuda.MAX_GRID_DIM_Z:                       65535,
		cuda.MAX_PITCH:                            2147483647,
		cuda.TEXTURE_ALIGNMENT:                    512,
		cuda.GPU_OVERLAP:                          1,
		cuda.ASYNC_ENGINE_COUNT:                   2,
		cuda.KERNEL_EXEC_TIMEOUT:                  0,
		cuda.INTEGRATED:                           0,
		cuda.CAN_MAP_HOST_MEMORY:                  1,
		cuda.SURFACE_ALIGNMENT:                    1,
		cuda.ECC_ENABLED:                          1,
		cuda.UNIFIED_ADDRESSING:                   1,
		cuda.MANAGED_MEMORY:                       1,
		cuda.COMPUTE_PREEMPTION_SUPPORTED:         1,
		cuda.COOPERATIVE_LAUNCH:                   1,
		cuda.COOPERATIVE_MULTI_DEVICE_LAUNCH:      0,
		cuda.PCI_DOMAIN_ID:                        0,
		cuda.PCI_BUS_ID:                           1,
		cuda.PCI_DEVICE_ID:                        0,
		cuda.COMPUTE_MODE:                         0,
	}
}

// l40sDevice builds a fake with the full L40S attribute set
func l40sDevice() *fakeDevice {
	return &fakeDevice{
		name:     "NVIDIA L40S",
		totalMem: 47576711168,
		attrs:    l40sAttrs(),
	}
}
