// Package probe explains failed driver initialization. It gathers
// evidence from NVML, the PCI bus, device nodes and procfs, then
// classifies the failure for the operator. The probe runs only after
// initialization already failed and never writes to stdout.
package probe

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/docker/go-units"

	"devicequery/internal/cuda"
	"devicequery/internal/logging"
)

// Class is the probe's overall diagnosis.
type Class string

const (
	// ClassDriverLoaded means the NVIDIA driver stack answered even though
	// CUDA initialization failed.
	ClassDriverLoaded Class = "driver-loaded"
	// ClassDriverMissing means NVIDIA hardware is visible on the PCI bus
	// but no driver responded.
	ClassDriverMissing Class = "driver-missing"
	// ClassNoHardware means no NVIDIA device is present on the PCI bus.
	ClassNoHardware Class = "no-hardware"
	// ClassInconclusive means the evidence does not support a single
	// explanation.
	ClassInconclusive Class = "inconclusive"
)

// NVMLDevice is one device as NVML reports it.
type NVMLDevice struct {
	Index       int
	Name        string
	MemoryBytes uint64
}

// NVMLEvidence is what the NVML stack reports about itself. OK is true
// when NVML initialized; Err carries its failure text otherwise.
type NVMLEvidence struct {
	OK            bool
	Err           string
	DriverVersion string
	CUDAVersion   cuda.Version
	Devices       []NVMLDevice
}

// PCIDevice is one NVIDIA graphics function found on the PCI bus.
type PCIDevice struct {
	Address string
	Vendor  string
	Product string
	Driver  string
}

// NVML collects evidence from the NVML library.
type NVML interface {
	Collect() NVMLEvidence
}

// PCI inventories NVIDIA graphics cards on the PCI bus.
type PCI interface {
	GraphicsCards() ([]PCIDevice, error)
}

// Finding is the probe outcome: the classified failure plus the raw
// evidence that led to it.
type Finding struct {
	Class        Class
	NVML         NVMLEvidence
	PCIDevices   []PCIDevice
	PCIErr       string
	DeviceNodes  []string
	KernelModule string
}

// Prober gathers failure evidence. The filesystem roots are injectable
// so tests can point the scans at fixtures.
type Prober struct {
	nvml     NVML
	pci      PCI
	devRoot  string
	procRoot string
	logger   *logging.Logger
}

// NewProber wires the real NVML and PCI collectors.
func NewProber(logger *logging.Logger) *Prober {
	return NewProberWith(newPlatformNVML(logger), ghwPCI{}, "/dev", "/proc", logger)
}

// NewProberWith creates a prober over explicit collaborators (for testing).
func NewProberWith(nvml NVML, pci PCI, devRoot, procRoot string, logger *logging.Logger) *Prober {
	return &Prober{
		nvml:     nvml,
		pci:      pci,
		devRoot:  devRoot,
		procRoot: procRoot,
		logger:   logger,
	}
}

// Run gathers all evidence sources and classifies the failure. Every
// source is consulted even when an earlier one already settles the
// classification, so the finding carries the full picture.
func (p *Prober) Run() Finding {
	p.logger.Info("probe.start", "Starting failure probe", nil)

	finding := Finding{}

	finding.NVML = p.nvml.Collect()
	if finding.NVML.OK {
		p.logger.Info("probe.nvml.ok", "NVML responded", map[string]interface{}{
			"driver_version": finding.NVML.DriverVersion,
			"cuda_version":   finding.NVML.CUDAVersion.String(),
			"device_count":   len(finding.NVML.Devices),
		})
	} else {
		p.logger.Warn("probe.nvml.failed", "NVML did not respond", map[string]interface{}{
			"error": finding.NVML.Err,
		})
	}

	cards, err := p.pci.GraphicsCards()
	if err != nil {
		finding.PCIErr = err.Error()
		p.logger.Warn("probe.pci.failed", "PCI scan failed", map[string]interface{}{
			"error": finding.PCIErr,
		})
	} else {
		finding.PCIDevices = cards
		p.logger.Info("probe.pci.scan", "PCI scan finished", map[string]interface{}{
			"nvidia_devices": len(cards),
		})
	}

	finding.DeviceNodes = p.deviceNodes()
	finding.KernelModule = p.kernelModule()

	finding.Class = classify(finding)
	p.logger.Info("probe.done", "Probe finished", map[string]interface{}{
		"class": string(finding.Class),
	})
	return finding
}

var deviceNodePattern = regexp.MustCompile(`^nvidia\d+$`)

// deviceNodes lists the nvidia control and per-GPU nodes under the dev
// root. A missing or unreadable root yields no evidence, not an error.
func (p *Prober) deviceNodes() []string {
	entries, err := os.ReadDir(p.devRoot)
	if err != nil {
		p.logger.Debug("probe.devnodes.unreadable", "Cannot list device nodes", map[string]interface{}{
			"root":  p.devRoot,
			"error": err.Error(),
		})
		return nil
	}

	var nodes []string
	for _, entry := range entries {
		name := entry.Name()
		if name == "nvidiactl" || deviceNodePattern.MatchString(name) {
			nodes = append(nodes, filepath.Join(p.devRoot, name))
		}
	}
	return nodes
}

// kernelModule returns the first line of the version banner the loaded
// nvidia kernel module exposes under proc, or "" when absent.
func (p *Prober) kernelModule() string {
	data, err := os.ReadFile(filepath.Join(p.procRoot, "driver", "nvidia", "version"))
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(string(data), "\n")
	return strings.TrimSpace(line)
}

// classify weighs the evidence. NVML, the kernel module banner or
// populated device nodes all prove a loaded driver. Without any of
// those, visible PCI hardware points at a missing driver and a clean
// PCI scan at missing hardware. A failed PCI scan with no other
// evidence stays inconclusive.
func classify(f Finding) Class {
	if f.NVML.OK || f.KernelModule != "" || len(f.DeviceNodes) > 0 {
		return ClassDriverLoaded
	}
	if f.PCIErr != "" {
		return ClassInconclusive
	}
	if len(f.PCIDevices) > 0 {
		return ClassDriverMissing
	}
	return ClassNoHardware
}

// Summary produces the one-line operator diagnosis.
func (f Finding) Summary() string {
	switch f.Class {
	case ClassDriverLoaded:
		if f.NVML.OK && f.NVML.DriverVersion != "" {
			return fmt.Sprintf("NVIDIA driver %s (CUDA %s) is loaded but CUDA initialization failed; check device permissions and container flags",
				f.NVML.DriverVersion, f.NVML.CUDAVersion)
		}
		return "NVIDIA kernel driver is loaded but the CUDA userspace stack did not respond; check the driver installation"
	case ClassDriverMissing:
		return fmt.Sprintf("found %d NVIDIA device(s) on the PCI bus but no loaded driver; install the NVIDIA driver", len(f.PCIDevices))
	case ClassNoHardware:
		return "no NVIDIA device is visible on the PCI bus"
	default:
		return "could not determine why CUDA initialization failed"
	}
}

// Details returns supporting evidence lines for the stderr diagnosis,
// one per observed fact.
func (f Finding) Details() []string {
	var lines []string

	if f.NVML.OK {
		for _, d := range f.NVML.Devices {
			lines = append(lines, fmt.Sprintf("NVML device %d: %s (%s)",
				d.Index, d.Name, units.BytesSize(float64(d.MemoryBytes))))
		}
	} else if f.NVML.Err != "" {
		lines = append(lines, "NVML: "+f.NVML.Err)
	}

	for _, card := range f.PCIDevices {
		desc := fmt.Sprintf("PCI %s: %s %s", card.Address, card.Vendor, card.Product)
		if card.Driver != "" {
			desc += " (driver " + card.Driver + ")"
		} else {
			desc += " (no driver bound)"
		}
		lines = append(lines, desc)
	}
	if f.PCIErr != "" {
		lines = append(lines, "PCI scan: "+f.PCIErr)
	}

	if f.KernelModule != "" {
		lines = append(lines, "Kernel module: "+f.KernelModule)
	}
	if len(f.DeviceNodes) > 0 {
		lines = append(lines, "Device nodes: "+strings.Join(f.DeviceNodes, ", "))
	}

	return lines
}
