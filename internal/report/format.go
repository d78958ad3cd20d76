// Package report renders resolved device capability snapshots into the
// fixed text document operators read. Formatting is a pure function of
// its inputs; writing the document anywhere is the caller's job.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"devicequery/internal/cuda"
	"devicequery/internal/device"
)

// Summary is the outcome of one report run.
type Summary struct {
	DeviceCount int
	Pass        bool
}

// Verdict returns the trailer verdict word.
func (s Summary) Verdict() string {
	if s.Pass {
		return "PASS"
	}
	return "FAIL"
}

// computeModeDescriptions mirrors the driver CUcomputemode enum.
var computeModeDescriptions = map[int64]string{
	0: "Default (multiple host threads can use ::cudaSetDevice() with device simultaneously)",
	1: "Exclusive (only one host thread in one process is able to use ::cudaSetDevice() with this device)",
	2: "Prohibited (no host thread can use ::cudaSetDevice() with this device)",
	3: "Exclusive Process (many threads in one process is able to use ::cudaSetDevice() with this device)",
}

// ComputeModeString maps a compute-mode enum value to its description.
func ComputeModeString(mode int64) string {
	if s, ok := computeModeDescriptions[mode]; ok {
		return s
	}
	return "Unknown"
}

// Format renders the report document for a sequence of device snapshots
// and derives the run summary. The verdict is PASS exactly when at least
// one device block was rendered; scan failures never reach this point.
func Format(driver cuda.Version, reports []device.Report, peers device.PeerMatrix) (string, Summary) {
	var b strings.Builder

	fmt.Fprintf(&b, "Detected %d CUDA Capable device(s)\n\n", len(reports))

	for _, r := range reports {
		writeDevice(&b, driver, r)
	}

	if len(peers) > 1 {
		writePeerMatrix(&b, peers)
	}

	fmt.Fprintf(&b, "deviceQuery, CUDA Driver = %d.%d\n\n", driver.Major, driver.Minor)

	summary := Summary{DeviceCount: len(reports), Pass: len(reports) > 0}
	fmt.Fprintf(&b, "Result = %s\n", summary.Verdict())

	return b.String(), summary
}

// writeDevice renders one device block. Lines whose attribute came back
// unsupported are dropped when the whole line depends on it; slots
// inside always-printed lines render N/A instead.
func writeDevice(b *strings.Builder, driver cuda.Version, r device.Report) {
	flag := func(label string, v device.Value) {
		if v.Known() {
			fmt.Fprintf(b, "%s%s\n", label, yesNo(v))
		}
	}

	fmt.Fprintf(b, "Device %d: %q\n", r.Index, r.Name)
	fmt.Fprintf(b, "  CUDA Driver Version:                           %d.%d\n", driver.Major, driver.Minor)
	fmt.Fprintf(b, "  CUDA Capability Major/Minor version number:    %s.%s\n",
		num(r.Capability.Major), num(r.Capability.Minor))
	fmt.Fprintf(b, "  Total amount of global memory:                 %.0f MBytes (%d bytes)\n",
		float64(r.TotalMemBytes)/(1024.0*1024.0), r.TotalMemBytes)

	if r.CoresPerMP.Known() {
		fmt.Fprintf(b, "  (%s) Multiprocessors, (%s) CUDA Cores/MP:    %s CUDA Cores\n",
			pad3(r.MPCount), pad3(r.CoresPerMP), num(r.TotalCores))
	} else {
		fmt.Fprintf(b, "  (%s) Multiprocessors (unknown CUDA Cores/MP for SM %s.%s)\n",
			pad3(r.MPCount), num(r.Capability.Major), num(r.Capability.Minor))
	}

	fmt.Fprintf(b, "  GPU Max Clock rate:                            %s MHz (%s GHz)\n",
		mhz(r.ClockKHz), ghz(r.ClockKHz))
	fmt.Fprintf(b, "  Memory Clock rate:                             %s Mhz\n", mhz(r.MemClockKHz))
	fmt.Fprintf(b, "  Memory Bus Width:                              %s-bit\n", num(r.BusWidthBits))
	if r.L2CacheBytes.Known() && r.L2CacheBytes.Int64() > 0 {
		fmt.Fprintf(b, "  L2 Cache Size:                                 %d bytes\n", r.L2CacheBytes.Int64())
	}
	fmt.Fprintf(b, "  Maximum Texture Dimension Size (x,y,z)         1D=(%s) 2D=(%s, %s) 3D=(%s, %s, %s)\n",
		num(r.Tex1D), num(r.Tex2D.X), num(r.Tex2D.Y), num(r.Tex3D.X), num(r.Tex3D.Y), num(r.Tex3D.Z))
	fmt.Fprintf(b, "  Maximum Layered 1D Texture Size, (num) layers  1D=(%s) %s layers\n",
		num(r.TexLayered1D.Width), num(r.TexLayered1D.Layers))
	fmt.Fprintf(b, "  Maximum Layered 2D Texture Size, (num) layers  2D=(%s, %s) %s layers\n",
		num(r.TexLayered2D.Width), num(r.TexLayered2D.Height), num(r.TexLayered2D.Layers))
	fmt.Fprintf(b, "  Total amount of constant memory:               %s bytes\n", num(r.ConstMemBytes))
	fmt.Fprintf(b, "  Total amount of shared memory per block:       %s bytes\n", num(r.SharedPerBlockBytes))
	fmt.Fprintf(b, "  Total shared memory per multiprocessor:        %s bytes\n", num(r.SharedPerMPBytes))
	fmt.Fprintf(b, "  Total number of registers available per block: %s\n", num(r.RegsPerBlock))
	fmt.Fprintf(b, "  Warp size:                                     %s\n", num(r.WarpSize))
	fmt.Fprintf(b, "  Maximum number of threads per multiprocessor:  %s\n", num(r.ThreadsPerMP))
	fmt.Fprintf(b, "  Maximum number of threads per block:           %s\n", num(r.ThreadsPerBlock))
	fmt.Fprintf(b, "  Max dimension size of a thread block (x,y,z):  (%s, %s, %s)\n",
		num(r.MaxBlockDim.X), num(r.MaxBlockDim.Y), num(r.MaxBlockDim.Z))
	fmt.Fprintf(b, "  Max dimension size of a grid size    (x,y,z):  (%s, %s, %s)\n",
		num(r.MaxGridDim.X), num(r.MaxGridDim.Y), num(r.MaxGridDim.Z))
	fmt.Fprintf(b, "  Maximum memory pitch:                          %s bytes\n", num(r.MaxPitchBytes))
	fmt.Fprintf(b, "  Texture alignment:                             %s bytes\n", num(r.TextureAlignBytes))

	if r.GPUOverlap.Known() {
		if r.GPUOverlap.Bool() {
			fmt.Fprintf(b, "  Concurrent copy and kernel execution:          Yes with %s copy engine(s)\n",
				num(r.AsyncEngines))
		} else {
			b.WriteString("  Concurrent copy and kernel execution:          No\n")
		}
	}

	flag("  Run time limit on kernels:                     ", r.KernelTimeout)
	flag("  Integrated GPU sharing Host Memory:            ", r.Integrated)
	flag("  Support host page-locked memory mapping:       ", r.CanMapHostMemory)
	flag("  Alignment requirement for Surfaces:            ", r.SurfaceAlignment)
	if r.ECCEnabled.Known() {
		ecc := "Disabled"
		if r.ECCEnabled.Bool() {
			ecc = "Enabled"
		}
		fmt.Fprintf(b, "  Device has ECC support:                        %s\n", ecc)
	}
	flag("  Device supports Unified Addressing (UVA):      ", r.UnifiedAddressing)
	flag("  Device supports Managed Memory:                ", r.ManagedMemory)
	flag("  Device supports Compute Preemption:            ", r.ComputePreemption)
	flag("  Supports Cooperative Kernel Launch:            ", r.CooperativeLaunch)
	flag("  Supports MultiDevice Co-op Kernel Launch:      ", r.CoopMultiDevice)

	fmt.Fprintf(b, "  Device PCI Domain ID / Bus ID / location ID:   %s / %s / %s\n",
		num(r.PCIDomainID), num(r.PCIBusID), num(r.PCIDeviceID))

	if r.ComputeMode.Known() {
		b.WriteString("  Compute Mode:\n")
		fmt.Fprintf(b, "     < %s >\n", ComputeModeString(r.ComputeMode.Int64()))
	}

	b.WriteString("\n")
}

// writePeerMatrix renders the pairwise peer-access table shown for
// multi-GPU systems.
func writePeerMatrix(b *strings.Builder, peers device.PeerMatrix) {
	b.WriteString("deviceQuery, Pair-to-Pair GPU Bandwidth Matrix (in GB/s)\n")
	b.WriteString("   D\\D")
	for j := range peers {
		fmt.Fprintf(b, "%6d", j)
	}
	b.WriteString("\n")

	for i, row := range peers {
		fmt.Fprintf(b, "   %3d", i)
		for _, access := range row {
			if access {
				b.WriteString("   Yes")
			} else {
				b.WriteString("   No")
			}
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}

func num(v device.Value) string {
	if !v.Known() {
		return "N/A"
	}
	return strconv.FormatInt(v.Int64(), 10)
}

func pad3(v device.Value) string {
	if !v.Known() {
		return "N/A"
	}
	return fmt.Sprintf("%03d", v.Int64())
}

func mhz(v device.Value) string {
	if !v.Known() {
		return "N/A"
	}
	return fmt.Sprintf("%.0f", float64(v.Int64())/1000.0)
}

func ghz(v device.Value) string {
	if !v.Known() {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", float64(v.Int64())/1e6)
}

func yesNo(v device.Value) string {
	if v.Bool() {
		return "Yes"
	}
	return "No"
}
