// devicequery enumerates the GPUs the CUDA driver exposes and prints
// their capabilities as a fixed text report on stdout. All diagnostics
// go to stderr; the process exits 0 only when the report verdict is
// PASS.
package main

import (
	"fmt"
	"os"

	"devicequery/internal/cuda"
	"devicequery/internal/device"
	"devicequery/internal/logging"
	"devicequery/internal/probe"
	"devicequery/internal/report"
	"devicequery/internal/smcores"
)

func main() {
	os.Exit(run())
}

// run carries the whole invocation so the deferred session teardown
// fires before the process exits.
func run() int {
	if len(os.Args) > 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Prints the capabilities of every CUDA device; takes no arguments.")
		return 2
	}

	logger := logging.NewLogger(logging.ParseLevel(os.Getenv("DEVICEQUERY_LOG"), logging.LevelWarn))

	cores, err := smcores.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading core table: %v\n", err)
		return 1
	}

	session, err := cuda.Open(logger)
	if err != nil {
		logger.Error("cuda.init.failed", "CUDA driver initialization failed", map[string]interface{}{
			"error": err.Error(),
		})
		fmt.Fprintf(os.Stderr, "Failed to initialize CUDA driver: %v\n", err)
		explainInitFailure(logger)
		return 1
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Warn("cuda.close.failed", "Failed to close driver session", map[string]interface{}{
				"error": cerr.Error(),
			})
		}
	}()

	reports, peers, err := device.NewScanner(session, cores, logger).ScanAll()
	if err != nil {
		logger.Error("scan.failed", "Device capability scan failed", map[string]interface{}{
			"error": err.Error(),
		})
		fmt.Fprintf(os.Stderr, "Failed to query device capabilities: %v\n", err)
		return 1
	}

	text, summary := report.Format(session.DriverVersion(), reports, peers)
	fmt.Print(text)

	if !summary.Pass {
		return 1
	}
	return 0
}

// explainInitFailure runs the failure probe and prints its diagnosis to
// stderr. Stdout stays untouched on this path.
func explainInitFailure(logger *logging.Logger) {
	finding := probe.NewProber(logger).Run()
	fmt.Fprintln(os.Stderr, finding.Summary())
	for _, line := range finding.Details() {
		fmt.Fprintf(os.Stderr, "  %s\n", line)
	}
}
