package device

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"devicequery/internal/cuda"
	"devicequery/internal/logging"
	"devicequery/internal/smcores"
)

func testScanner(t *testing.T, session cuda.Session) *Scanner {
	t.Helper()

	table, err := smcores.Load()
	if err != nil {
		t.Fatalf("Failed to load core table: %v", err)
	}

	logger := logging.NewWriterLogger(logging.LevelError, &bytes.Buffer{})
	return NewScanner(session, table, logger)
}

func TestScanner_ScanAll_SingleDevice(t *testing.T) {
	session := newFakeSession(l40sDevice())
	scanner := testScanner(t, session)

	reports, peers, err := scanner.ScanAll()
	if err != nil {
		t.Fatalf("ScanAll() failed: %v", err)
	}

	if len(reports) != 1 {
		t.Fatalf("Expected 1 report, got %d", len(reports))
	}
	if peers != nil {
		t.Errorf("Expected no peer matrix for a single device, got %v", peers)
	}

	report := reports[0]
	if report.Name != "NVIDIA L40S" {
		t.Errorf("Expected name 'NVIDIA L40S', got %q", report.Name)
	}
	if report.TotalMemBytes != 47576711168 {
		t.Errorf("Expected 47576711168 bytes, got %d", report.TotalMemBytes)
	}
	if got := report.Capability.Major.Int64(); got != 8 {
		t.Errorf("Expected capability major 8, got %d", got)
	}
	if got := report.Capability.Minor.Int64(); got != 9 {
		t.Errorf("Expected capability minor 9, got %d", got)
	}
	if got := report.MPCount.Int64(); got != 142 {
		t.Errorf("Expected 142 multiprocessors, got %d", got)
	}
	if report.Arch != "Ada Lovelace" {
		t.Errorf("Expected arch 'Ada Lovelace', got %q", report.Arch)
	}
}

func TestScanner_TotalCores_Derivation(t *testing.T) {
	session := newFakeSession(l40sDevice())
	scanner := testScanner(t, session)

	reports, _, err := scanner.ScanAll()
	if err != nil {
		t.Fatalf("ScanAll() failed: %v", err)
	}

	report := reports[0]
	if !report.CoresPerMP.Known() || report.CoresPerMP.Int64() != 128 {
		t.Errorf("Expected 128 cores per multiprocessor, got %v (known=%v)", report.CoresPerMP.Int64(), report.CoresPerMP.Known())
	}
	if !report.TotalCores.Known() || report.TotalCores.Int64() != 18176 {
		t.Errorf("Expected 18176 total cores, got %v (known=%v)", report.TotalCores.Int64(), report.TotalCores.Known())
	}
}

func TestScanner_ScanAll_NoDevices(t *testing.T) {
	session := newFakeSession()
	scanner := testScanner(t, session)

	reports, peers, err := scanner.ScanAll()
	if err != nil {
		t.Fatalf("ScanAll() failed: %v", err)
	}
	if len(reports) != 0 {
		t.Errorf("Expected no reports, got %d", len(reports))
	}
	if peers != nil {
		t.Errorf("Expected no peer matrix, got %v", peers)
	}
}

func TestScanner_ScanAll_DeviceCountFailure(t *testing.T) {
	session := newFakeSession()
	session.countErr = errors.New("driver wedged")
	scanner := testScanner(t, session)

	_, _, err := scanner.ScanAll()
	if err == nil {
		t.Fatal("Expected an error")
	}
}

func TestScanner_ScanAll_IndexFailureInsideCount(t *testing.T) {
	session := newFakeSession(l40sDevice(), l40sDevice())
	session.failIndex = 1
	session.failErr = fmt.Errorf("%w: index 1", cuda.ErrNoSuchDevice)
	scanner := testScanner(t, session)

	_, _, err := scanner.ScanAll()
	if err == nil {
		t.Fatal("Expected an error")
	}
	if !errors.Is(err, cuda.ErrNoSuchDevice) {
		t.Errorf("Expected error wrapping ErrNoSuchDevice, got: %v", err)
	}
}

func TestScanner_DoesNotCloseTheSession(t *testing.T) {
	session := newFakeSession(l40sDevice())
	scanner := testScanner(t, session)

	if _, _, err := scanner.ScanAll(); err != nil {
		t.Fatalf("ScanAll() failed: %v", err)
	}
	if session.closeCount != 0 {
		t.Fatalf("Expected the scanner to leave the session open, Close called %d times", session.closeCount)
	}

	// Teardown belongs to the caller: one Close, nil on repeat
	if err := session.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if session.closeCount != 1 {
		t.Errorf("Expected one Close call, got %d", session.closeCount)
	}
	if err := session.Close(); err != nil {
		t.Errorf("Expected repeated Close to stay nil, got: %v", err)
	}
}

func TestScanner_ClosedSessionRejectsScan(t *testing.T) {
	session := newFakeSession(l40sDevice())
	scanner := testScanner(t, session)

	if err := session.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	if _, err := session.DeviceCount(); !errors.Is(err, cuda.ErrSessionClosed) {
		t.Errorf("DeviceCount() after Close: expected ErrSessionClosed, got: %v", err)
	}
	if _, err := session.DeviceByIndex(0); !errors.Is(err, cuda.ErrSessionClosed) {
		t.Errorf("DeviceByIndex(0) after Close: expected ErrSessionClosed, got: %v", err)
	}

	_, _, err := scanner.ScanAll()
	if !errors.Is(err, cuda.ErrSessionClosed) {
		t.Errorf("ScanAll() on a closed session: expected ErrSessionClosed, got: %v", err)
	}
}

func TestScanner_UnsupportedAttributeBecomesNA(t *testing.T) {
	dev := l40sDevice()
	dev.unsupported = map[cuda.DeviceAttribute]bool{
		cuda.L2_CACHE_SIZE: true,
		cuda.ECC_ENABLED:   true,
	}
	session := newFakeSession(dev)
	scanner := testScanner(t, session)

	reports, _, err := scanner.ScanAll()
	if err != nil {
		t.Fatalf("ScanAll() failed: %v", err)
	}

	report := reports[0]
	if report.L2CacheBytes.Known() {
		t.Error("Expected L2 cache size to be N/A")
	}
	if report.ECCEnabled.Known() {
		t.Error("Expected ECC flag to be N/A")
	}
	// Everything else still resolved
	if !report.WarpSize.Known() || report.WarpSize.Int64() != 32 {
		t.Errorf("Expected warp size 32, got %v", report.WarpSize.Int64())
	}
}

func TestScanner_QueryFailureAbortsScan(t *testing.T) {
	dev := l40sDevice()
	dev.attrErrs = map[cuda.DeviceAttribute]error{
		cuda.MULTIPROCESSOR_COUNT: errors.New("bus error"),
		cuda.CLOCK_RATE:           errors.New("bus error"),
	}
	session := newFakeSession(dev)
	scanner := testScanner(t, session)

	_, _, err := scanner.ScanAll()
	if err == nil {
		t.Fatal("Expected an error")
	}

	var queryErr *QueryError
	if !errors.As(err, &queryErr) {
		t.Fatalf("Expected a QueryError, got: %v", err)
	}
	// The first failing query in sequence order wins
	if queryErr.Attr != "multiprocessor_count" {
		t.Errorf("Expected failing attribute 'multiprocessor_count', got %q", queryErr.Attr)
	}
}

func TestScanner_QueryFailureStopsQuerying(t *testing.T) {
	dev := l40sDevice()
	dev.attrErrs = map[cuda.DeviceAttribute]error{
		cuda.MULTIPROCESSOR_COUNT: errors.New("bus error"),
	}
	session := newFakeSession(dev)
	scanner := testScanner(t, session)

	_, _, err := scanner.ScanAll()
	if err == nil {
		t.Fatal("Expected an error")
	}

	// Capability major, minor, then the failing multiprocessor count;
	// the sticky error keeps everything after that off the driver.
	if dev.attrCalls != 3 {
		t.Errorf("Expected 3 driver queries before the failure stuck, got %d", dev.attrCalls)
	}
}

func TestScanner_NameFailureAbortsScan(t *testing.T) {
	dev := l40sDevice()
	dev.nameErr = errors.New("bus error")
	session := newFakeSession(dev)
	scanner := testScanner(t, session)

	_, _, err := scanner.ScanAll()
	if err == nil {
		t.Fatal("Expected an error")
	}

	var queryErr *QueryError
	if !errors.As(err, &queryErr) {
		t.Fatalf("Expected a QueryError, got: %v", err)
	}
	if queryErr.Attr != "name" {
		t.Errorf("Expected failing attribute 'name', got %q", queryErr.Attr)
	}
}

func TestScanner_TotalMemFailureAbortsScan(t *testing.T) {
	dev := l40sDevice()
	dev.totalMemErr = errors.New("bus error")
	session := newFakeSession(dev)
	scanner := testScanner(t, session)

	_, _, err := scanner.ScanAll()
	if err == nil {
		t.Fatal("Expected an error")
	}

	var queryErr *QueryError
	if !errors.As(err, &queryErr) {
		t.Fatalf("Expected a QueryError, got: %v", err)
	}
	if queryErr.Attr != "total_mem" {
		t.Errorf("Expected failing attribute 'total_mem', got %q", queryErr.Attr)
	}
}

func TestScanner_UnknownCapabilityLeavesCoresUnknown(t *testing.T) {
	dev := l40sDevice()
	dev.attrs[cuda.COMPUTE_CAPABILITY_MAJOR] = 99
	dev.attrs[cuda.COMPUTE_CAPABILITY_MINOR] = 9
	session := newFakeSession(dev)
	scanner := testScanner(t, session)

	reports, _, err := scanner.ScanAll()
	if err != nil {
		t.Fatalf("ScanAll() failed: %v", err)
	}

	report := reports[0]
	if report.CoresPerMP.Known() {
		t.Error("Expected cores per multiprocessor to be unknown")
	}
	if report.TotalCores.Known() {
		t.Error("Expected total cores to be unknown")
	}
	if report.Arch != "" {
		t.Errorf("Expected no architecture name, got %q", report.Arch)
	}
}

func TestScanner_PeerMatrix(t *testing.T) {
	dev0 := l40sDevice()
	dev1 := l40sDevice()
	dev0.peers = map[*fakeDevice]bool{dev1: true}
	dev1.peers = map[*fakeDevice]bool{dev0: false}

	session := newFakeSession(dev0, dev1)
	scanner := testScanner(t, session)

	reports, peers, err := scanner.ScanAll()
	if err != nil {
		t.Fatalf("ScanAll() failed: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("Expected 2 reports, got %d", len(reports))
	}
	if peers == nil {
		t.Fatal("Expected a peer matrix for 2 devices")
	}

	want := PeerMatrix{
		{true, true},
		{false, true},
	}
	for i := range want {
		for j := range want[i] {
			if peers[i][j] != want[i][j] {
				t.Errorf("peers[%d][%d] = %v, want %v", i, j, peers[i][j], want[i][j])
			}
		}
	}
}

func TestScanner_PeerQueryErrorMeansNoAccess(t *testing.T) {
	dev0 := l40sDevice()
	dev1 := l40sDevice()
	dev0.peerErr = errors.New("link down")
	dev1.peers = map[*fakeDevice]bool{dev0: true}

	session := newFakeSession(dev0, dev1)
	scanner := testScanner(t, session)

	_, peers, err := scanner.ScanAll()
	if err != nil {
		t.Fatalf("ScanAll() failed: %v", err)
	}

	if peers[0][1] {
		t.Error("Expected failed peer query to report no access")
	}
	if !peers[1][0] {
		t.Error("Expected healthy peer query to report access")
	}
	if !peers[0][0] || !peers[1][1] {
		t.Error("Expected the diagonal to always report access")
	}
}
