package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	cpuServices "github.com/sisoputnfrba/tp-vm-Los-magiOS/cpu/services"
	ioServices "github.com/sisoputnfrba/tp-vm-Los-magiOS/io/services"
	kernelServices "github.com/sisoputnfrba/tp-vm-Los-magiOS/kernel/services"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/models"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/services"
)

const (
	pageSize   = 4096
	regionBase = 0x00400000
)

func newTestKernel(t *testing.T) *kernelServices.Kernel {
	t.Helper()
	cfg := models.Config{
		Version:             "1.0.0",
		MemorySize:          16 * pageSize,
		PageSize:            pageSize,
		BootPages:           2,
		ReservedKernelPages: 4,
		SwapSize:            16,
		MaxHeapPages:        8,
		MaxStackPages:       4,
		MinHeapPages:        2,
		MinStackPages:       2,
		TlbEntries:          4,
		TlbReplacement:      "FIFO",
		Cpus:                1,
	}
	disk, err := ioServices.OpenDisk(filepath.Join(t.TempDir(), "swap.bin"), int64(cfg.SwapSize*cfg.PageSize))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	t.Cleanup(func() { disk.Close() })

	mmu := cpuServices.NewMMU(cfg.Cpus, cfg.TlbEntries, pageSize, cfg.TlbReplacement)
	vm, err := services.Boot(cfg, disk, mmu)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	t.Cleanup(func() { vm.Close() })
	return kernelServices.NewKernel(vm, mmu)
}

func doPost(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func createProcess(t *testing.T, kernel *kernelServices.Kernel) uint {
	t.Helper()
	rec := doPost(t, CreateProcessHandler(kernel), models.ProcessRequest{
		Regions: []models.RegionRequest{{VAddr: regionBase, Size: 2 * pageSize, Perms: models.PermRead | models.PermWrite}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.ProcessResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	return resp.PID
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: PID 3", models.ErrNoProcess), http.StatusNotFound},
		{models.ErrSwapFull, http.StatusInsufficientStorage},
		{models.ErrNoMemory, http.StatusInsufficientStorage},
		{models.ErrBadAddress, http.StatusBadRequest},
		{models.ErrInvalid, http.StatusBadRequest},
		{errors.New("disco roto"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := statusFor(c.err); got != c.want {
			t.Errorf("Expected %d for %v, got %d", c.want, c.err, got)
		}
	}
}

func TestProcessLifecycle(t *testing.T) {
	kernel := newTestKernel(t)
	pid := createProcess(t, kernel)

	rec := doPost(t, WriteHandler(kernel), models.WriteRequest{PID: pid, Address: regionBase + 10, Data: []byte("hola")})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doPost(t, ReadMemoryHandler(kernel), models.ReadRequest{PID: pid, Address: regionBase + 10, Size: 4})
	var read models.ReadResponse
	json.NewDecoder(rec.Body).Decode(&read)
	if rec.Code != http.StatusOK || string(read.Data) != "hola" {
		t.Errorf("Expected to read %q, got %q (%d)", "hola", read.Data, rec.Code)
	}

	rec = doPost(t, SbrkHandler(kernel), models.SbrkRequest{PID: pid, Delta: pageSize})
	var sbrk models.SbrkResponse
	json.NewDecoder(rec.Body).Decode(&sbrk)
	if rec.Code != http.StatusOK || sbrk.OldBreak != regionBase+2*pageSize {
		t.Errorf("Expected old break 0x%08x, got 0x%08x (%d)", regionBase+2*pageSize, sbrk.OldBreak, rec.Code)
	}

	rec = doPost(t, ForkProcessHandler(kernel), models.PIDRequest{PID: pid})
	var child models.ProcessResponse
	json.NewDecoder(rec.Body).Decode(&child)
	if rec.Code != http.StatusOK || child.PID == pid {
		t.Errorf("Expected a new child, got %+v (%d)", child, rec.Code)
	}

	for _, p := range []uint{child.PID, pid} {
		if rec := doPost(t, EndProcessHandler(kernel), models.PIDRequest{PID: p}); rec.Code != http.StatusOK {
			t.Errorf("Expected 200 finishing %d, got %d", p, rec.Code)
		}
	}
	if rec := doPost(t, EndProcessHandler(kernel), models.PIDRequest{PID: pid}); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a finished process, got %d", rec.Code)
	}
}

func TestFaultHandler(t *testing.T) {
	kernel := newTestKernel(t)
	pid := createProcess(t, kernel)

	cases := []struct {
		req  models.FaultRequest
		want int
	}{
		{models.FaultRequest{PID: pid, Type: "WRITE", Address: regionBase}, http.StatusOK},
		{models.FaultRequest{PID: pid, Type: "READ", Address: regionBase + pageSize}, http.StatusOK},
		{models.FaultRequest{PID: pid, Type: "READ", Address: 0x10}, http.StatusBadRequest},
		{models.FaultRequest{PID: pid, Type: "READONLY", Address: regionBase}, http.StatusBadRequest},
		{models.FaultRequest{PID: pid, Type: "EXEC", Address: regionBase}, http.StatusBadRequest},
		{models.FaultRequest{PID: 42, Type: "READ", Address: regionBase}, http.StatusNotFound},
	}
	for _, c := range cases {
		rec := doPost(t, FaultHandler(kernel), c.req)
		if rec.Code != c.want {
			t.Errorf("Expected %d for %+v, got %d: %s", c.want, c.req, rec.Code, rec.Body.String())
		}
	}
}

func TestReadMemoryHandler_ThrowError(t *testing.T) {
	kernel := newTestKernel(t)
	pid := createProcess(t, kernel)

	if rec := doPost(t, ReadMemoryHandler(kernel), models.ReadRequest{PID: pid, Address: regionBase, Size: -1}); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for negative size, got %d", rec.Code)
	}
	if rec := doPost(t, ReadMemoryHandler(kernel), models.ReadRequest{PID: pid, Address: regionBase, Size: 1 << 40}); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a size past USERSTACK, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	ReadMemoryHandler(kernel)(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed JSON, got %d", rec.Code)
	}
}

func TestDumpMemoryHandler(t *testing.T) {
	kernel := newTestKernel(t)
	pid := createProcess(t, kernel)
	dumpPath := t.TempDir()

	doPost(t, WriteHandler(kernel), models.WriteRequest{PID: pid, Address: regionBase, Data: []byte("dump")})

	rec := doPost(t, DumpMemoryHandler(kernel, dumpPath), models.PIDRequest{PID: pid})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.DumpResponse
	json.NewDecoder(rec.Body).Decode(&resp)

	content, err := os.ReadFile(resp.File)
	if err != nil {
		t.Fatalf("Expected dump file, got: %v", err)
	}
	// Dos páginas de región y dos de stack.
	if len(content) != 4*pageSize || !bytes.HasPrefix(content, []byte("dump")) {
		t.Errorf("Expected 4 pages starting with the written data, got %d bytes", len(content))
	}
}

func TestMemoryStatusHandler(t *testing.T) {
	kernel := newTestKernel(t)
	createProcess(t, kernel)
	if err := kernel.Write(context.Background(), 1, regionBase, []byte{1}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	rec := httptest.NewRecorder()
	MemoryStatusHandler(kernel)(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var stats models.VMStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if stats.AddressSpaces != 1 || stats.Coremap.User != 1 || stats.ZeroFills != 1 {
		t.Errorf("Expected one address space with one page, got %+v", stats)
	}
}
