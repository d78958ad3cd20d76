package device

// Capability is a device compute capability. Both halves come from
// fallible attribute queries.
type Capability struct {
	Major Value
	Minor Value
}

// Report is the immutable capability snapshot of one device. It is
// assembled once by the scanner and only read afterwards; every field
// that originates in a fallible attribute query is a Value so the
// formatter can render N/A without consulting the driver again.
type Report struct {
	Index         int
	Name          string
	Capability    Capability
	TotalMemBytes uint64

	MPCount    Value
	CoresPerMP Value
	Arch       string
	TotalCores Value

	ClockKHz     Value
	MemClockKHz  Value
	BusWidthBits Value
	L2CacheBytes Value

	Tex1D        Value
	Tex2D        Dim2
	Tex3D        Dim3
	TexLayered1D Layered1D
	TexLayered2D Layered2D

	ConstMemBytes       Value
	SharedPerBlockBytes Value
	SharedPerMPBytes    Value
	RegsPerBlock        Value
	WarpSize            Value
	ThreadsPerMP        Value
	ThreadsPerBlock     Value
	MaxBlockDim         Dim3
	MaxGridDim          Dim3
	MaxPitchBytes       Value
	TextureAlignBytes   Value

	GPUOverlap        Value
	AsyncEngines      Value
	KernelTimeout     Value
	Integrated        Value
	CanMapHostMemory  Value
	SurfaceAlignment  Value
	ECCEnabled        Value
	UnifiedAddressing Value
	ManagedMemory     Value
	ComputePreemption Value
	CooperativeLaunch Value
	CoopMultiDevice   Value

	PCIDomainID Value
	PCIBusID    Value
	PCIDeviceID Value
	ComputeMode Value
}

// PeerMatrix records pairwise peer-access capability for multi-GPU
// systems. m[i][j] answers whether device i can access device j's
// memory; the diagonal is always true.
type PeerMatrix [][]bool
