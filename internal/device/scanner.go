package device

import (
	"errors"
	"fmt"

	"devicequery/internal/cuda"
	"devicequery/internal/logging"
	"devicequery/internal/smcores"
)

// QueryError identifies the capability query that aborted a scan.
// Unsupported attributes never produce one; they degrade to N/A.
type QueryError struct {
	Attr string
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("capability query '%s' failed: %v", e.Attr, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Scanner resolves every enumerated device into a Report. Reports are
// all-or-nothing: any query failure other than an unsupported
// attribute aborts the whole scan.
type Scanner struct {
	session cuda.Session
	cores   *smcores.Table
	logger  *logging.Logger
}

// NewScanner creates a scanner over an open driver session.
func NewScanner(session cuda.Session, cores *smcores.Table, logger *logging.Logger) *Scanner {
	return &Scanner{
		session: session,
		cores:   cores,
		logger:  logger,
	}
}

// ScanAll resolves all devices in index order and builds the
// peer-access matrix when more than one device is visible.
func (s *Scanner) ScanAll() ([]Report, PeerMatrix, error) {
	count, err := s.session.DeviceCount()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	s.logger.Debug("scan.start", "Scanning devices", map[string]interface{}{
		"count": count,
	})

	reports := make([]Report, 0, count)
	handles := make([]cuda.Device, 0, count)

	for i := 0; i < count; i++ {
		dev, err := s.session.DeviceByIndex(i)
		if err != nil {
			// The driver reported this index; failing to fetch it means the
			// enumeration itself cannot be trusted.
			return nil, nil, fmt.Errorf("device %d within reported count of %d: %w", i, count, err)
		}

		report, err := s.resolve(i, dev)
		if err != nil {
			return nil, nil, fmt.Errorf("device %d: %w", i, err)
		}

		reports = append(reports, report)
		handles = append(handles, dev)
	}

	var peers PeerMatrix
	if count > 1 {
		peers = s.peerMatrix(handles)
	}

	return reports, peers, nil
}

// resolve runs the fixed query sequence against a single device.
func (s *Scanner) resolve(index int, dev cuda.Device) (Report, error) {
	report := Report{Index: index}

	name, err := dev.Name()
	if err != nil {
		return report, &QueryError{Attr: "name", Err: err}
	}
	report.Name = name

	totalMem, err := dev.TotalMem()
	if err != nil {
		return report, &QueryError{Attr: "total_mem", Err: err}
	}
	report.TotalMemBytes = totalMem

	q := &querier{dev: dev, index: index, logger: s.logger}

	report.Capability.Major = q.attr(cuda.COMPUTE_CAPABILITY_MAJOR)
	report.Capability.Minor = q.attr(cuda.COMPUTE_CAPABILITY_MINOR)
	report.MPCount = q.attr(cuda.MULTIPROCESSOR_COUNT)
	report.ClockKHz = q.attr(cuda.CLOCK_RATE)
	report.MemClockKHz = q.attr(cuda.MEMORY_CLOCK_RATE)
	report.BusWidthBits = q.attr(cuda.GLOBAL_MEMORY_BUS_WIDTH)
	report.L2CacheBytes = q.attr(cuda.L2_CACHE_SIZE)
	report.Tex1D = q.attr(cuda.MAXIMUM_TEXTURE1D_WIDTH)
	report.Tex2D = Dim2{
		X: q.attr(cuda.MAXIMUM_TEXTURE2D_WIDTH),
		Y: q.attr(cuda.MAXIMUM_TEXTURE2D_HEIGHT),
	}
	report.Tex3D = Dim3{
		X: q.attr(cuda.MAXIMUM_TEXTURE3D_WIDTH),
		Y: q.attr(cuda.MAXIMUM_TEXTURE3D_HEIGHT),
		Z: q.attr(cuda.MAXIMUM_TEXTURE3D_DEPTH),
	}
	report.TexLayered1D = Layered1D{
		Width:  q.attr(cuda.MAXIMUM_TEXTURE1D_LAYERED_WIDTH),
		Layers: q.attr(cuda.MAXIMUM_TEXTURE1D_LAYERED_LAYERS),
	}
	report.TexLayered2D = Layered2D{
		Width:  q.attr(cuda.MAXIMUM_TEXTURE2D_LAYERED_WIDTH),
		Height: q.attr(cuda.MAXIMUM_TEXTURE2D_LAYERED_HEIGHT),
		Layers: q.attr(cuda.MAXIMUM_TEXTURE2D_LAYERED_LAYERS),
	}
	report.ConstMemBytes = q.attr(cuda.TOTAL_CONSTANT_MEMORY)
	report.SharedPerBlockBytes = q.attr(cuda.MAX_SHARED_MEMORY_PER_BLOCK)
	report.SharedPerMPBytes = q.attr(cuda.MAX_SHARED_MEMORY_PER_MULTIPROCESSOR)
	report.RegsPerBlock = q.attr(cuda.MAX_REGISTERS_PER_BLOCK)
	report.WarpSize = q.attr(cuda.WARP_SIZE)
	report.ThreadsPerMP = q.attr(cuda.MAX_THREADS_PER_MULTIPROCESSOR)
	report.ThreadsPerBlock = q.attr(cuda.MAX_THREADS_PER_BLOCK)
	report.MaxBlockDim = Dim3{
		X: q.attr(cuda.MAX_BLOCK_DIM_X),
		Y: q.attr(cuda.MAX_BLOCK_DIM_Y),
		Z: q.attr(cuda.MAX_BLOCK_DIM_Z),
	}
	report.MaxGridDim = Dim3{
		X: q.attr(cuda.MAX_GRID_DIM_X),
		Y: q.attr(cuda.MAX_GRID_DIM_Y),
		Z: q.attr(cuda.MAX_GRID_DIM_Z),
	}
	report.MaxPitchBytes = q.attr(cuda.MAX_PITCH)
	report.TextureAlignBytes = q.attr(cuda.TEXTURE_ALIGNMENT)
	report.GPUOverlap = q.attr(cuda.GPU_OVERLAP)
	report.AsyncEngines = q.attr(cuda.ASYNC_ENGINE_COUNT)
	report.KernelTimeout = q.attr(cuda.KERNEL_EXEC_TIMEOUT)
	report.Integrated = q.attr(cuda.INTEGRATED)
	report.CanMapHostMemory = q.attr(cuda.CAN_MAP_HOST_MEMORY)
	report.SurfaceAlignment = q.attr(cuda.SURFACE_ALIGNMENT)
	report.ECCEnabled = q.attr(cuda.ECC_ENABLED)
	report.UnifiedAddressing = q.attr(cuda.UNIFIED_ADDRESSING)
	report.ManagedMemory = q.attr(cuda.MANAGED_MEMORY)
	report.ComputePreemption = q.attr(cuda.COMPUTE_PREEMPTION_SUPPORTED)
	report.CooperativeLaunch = q.attr(cuda.COOPERATIVE_LAUNCH)
	report.CoopMultiDevice = q.attr(cuda.COOPERATIVE_MULTI_DEVICE_LAUNCH)
	report.PCIDomainID = q.attr(cuda.PCI_DOMAIN_ID)
	report.PCIBusID = q.attr(cuda.PCI_BUS_ID)
	report.PCIDeviceID = q.attr(cuda.PCI_DEVICE_ID)
	report.ComputeMode = q.attr(cuda.COMPUTE_MODE)

	if q.err != nil {
		return report, q.err
	}

	if report.Capability.Major.Known() && report.Capability.Minor.Known() {
		major := int(report.Capability.Major.Int64())
		minor := int(report.Capability.Minor.Int64())
		if entry, ok := s.cores.Lookup(major, minor); ok {
			report.CoresPerMP = IntOf(int64(entry.Cores))
			report.Arch = entry.Arch
		} else {
			s.logger.Debug("scan.cores.unknown", "No core count for compute capability", map[string]interface{}{
				"device": index,
				"major":  major,
				"minor":  minor,
			})
		}
	}

	if report.MPCount.Known() && report.CoresPerMP.Known() {
		report.TotalCores = IntOf(report.MPCount.Int64() * report.CoresPerMP.Int64())
	}

	s.logger.Debug("scan.device.done", "Device resolved", map[string]interface{}{
		"device": index,
		"name":   report.Name,
		"arch":   report.Arch,
	})

	return report, nil
}

// peerMatrix asks every device pair about peer access. Query errors
// degrade to "no access" so one flaky pair cannot sink the report.
func (s *Scanner) peerMatrix(devices []cuda.Device) PeerMatrix {
	matrix := make(PeerMatrix, len(devices))
	for i, dev := range devices {
		matrix[i] = make([]bool, len(devices))
		for j, peer := range devices {
			if i == j {
				matrix[i][j] = true
				continue
			}

			access, err := dev.CanAccessPeer(peer)
			if err != nil {
				s.logger.Warn("scan.peer.failed", "Peer access query failed", map[string]interface{}{
					"device": i,
					"peer":   j,
					"error":  err.Error(),
				})
				continue
			}
			matrix[i][j] = access
		}
	}
	return matrix
}

// querier issues attribute queries with a sticky error: the first
// non-unsupported failure is kept and later queries short-circuit.
type querier struct {
	dev    cuda.Device
	index  int
	logger *logging.Logger
	err    *QueryError
}

func (q *querier) attr(attr cuda.DeviceAttribute) Value {
	if q.err != nil {
		return NA()
	}

	v, err := q.dev.Attribute(attr)
	if errors.Is(err, cuda.ErrUnsupported) {
		q.logger.Debug("scan.attribute.unsupported", "Attribute not supported", map[string]interface{}{
			"device":    q.index,
			"attribute": attr.String(),
		})
		return NA()
	}
	if err != nil {
		q.err = &QueryError{Attr: attr.String(), Err: err}
		return NA()
	}

	return IntOf(int64(v))
}
