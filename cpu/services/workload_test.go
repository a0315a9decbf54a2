package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/sisoputnfrba/tp-vm-Los-magiOS/cpu/models"
	memoriaModel "github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/models"
)

// fakeMemory guarda la memoria de cada proceso en un mapa de direcciones a bytes.
type fakeMemory struct {
	mu       sync.Mutex
	nextPID  uint
	procs    map[uint]map[uint32]byte
	breaks   map[uint]uint32
	finished []uint
	// shared hace que un fork comparta la memoria con el padre.
	shared bool
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{procs: map[uint]map[uint32]byte{}, breaks: map[uint]uint32{}}
}

func (m *fakeMemory) CreateProcess(regions []memoriaModel.RegionRequest) (memoriaModel.ProcessResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPID++
	m.procs[m.nextPID] = map[uint32]byte{}
	m.breaks[m.nextPID] = regions[0].VAddr + regions[0].Size
	return memoriaModel.ProcessResponse{PID: m.nextPID, StackPointer: memoriaModel.UserStack}, nil
}

func (m *fakeMemory) Fork(pid uint) (memoriaModel.ProcessResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parent, ok := m.procs[pid]
	if !ok {
		return memoriaModel.ProcessResponse{}, memoriaModel.ErrNoProcess
	}
	m.nextPID++
	if m.shared {
		m.procs[m.nextPID] = parent
	} else {
		child := make(map[uint32]byte, len(parent))
		for k, v := range parent {
			child[k] = v
		}
		m.procs[m.nextPID] = child
	}
	m.breaks[m.nextPID] = m.breaks[pid]
	return memoriaModel.ProcessResponse{PID: m.nextPID}, nil
}

func (m *fakeMemory) Finish(pid uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.procs, pid)
	m.finished = append(m.finished, pid)
	return nil
}

func (m *fakeMemory) Sbrk(pid uint, delta int32) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.breaks[pid]
	m.breaks[pid] = uint32(int64(old) + int64(delta))
	return old, nil
}

func (m *fakeMemory) Write(pid uint, address uint32, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.procs[pid]
	if !ok {
		return memoriaModel.ErrNoProcess
	}
	for i, b := range data {
		mem[address+uint32(i)] = b
	}
	return nil
}

func (m *fakeMemory) Read(pid uint, address uint32, size int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.procs[pid]
	if !ok {
		return nil, memoriaModel.ErrNoProcess
	}
	out := make([]byte, size)
	for i := range out {
		out[i] = mem[address+uint32(i)]
	}
	return out, nil
}

func workloadConfig() *models.Config {
	return &models.Config{
		Workers:    3,
		Iterations: 4,
		HeapPages:  2,
		RegionBase: 0x400000,
		RegionSize: 256,
		ForkEvery:  2,
	}
}

func TestRunWorkload(t *testing.T) {
	mem := newFakeMemory()
	results, err := RunWorkload(context.Background(), mem, workloadConfig(), 64)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Pages != 2 || r.Verified != 8 {
			t.Errorf("Expected 2 pages and 8 verified reads, got %+v", r)
		}
	}
	// 3 procesos y 2 forks por proceso.
	if len(mem.finished) != 9 || len(mem.procs) != 0 {
		t.Errorf("Expected every process finished, got %d finished and %d alive", len(mem.finished), len(mem.procs))
	}
}

func TestRunWorkload_ForkSharesMemory(t *testing.T) {
	mem := newFakeMemory()
	mem.shared = true

	_, err := RunWorkload(context.Background(), mem, workloadConfig(), 64)
	if !errors.Is(err, models.ErrMismatch) {
		t.Errorf("Expected ErrMismatch when the child sees parent writes, got: %v", err)
	}
}

type failingMemory struct {
	*fakeMemory
}

func (failingMemory) Sbrk(pid uint, delta int32) (uint32, error) {
	return 0, fmt.Errorf("%w: heap", memoriaModel.ErrNoMemory)
}

func TestRunWorkload_PropagatesErrors(t *testing.T) {
	mem := failingMemory{newFakeMemory()}
	_, err := RunWorkload(context.Background(), mem, workloadConfig(), 64)
	if !errors.Is(err, memoriaModel.ErrNoMemory) {
		t.Errorf("Expected ErrNoMemory, got: %v", err)
	}
	if len(mem.finished) != 3 {
		t.Errorf("Expected processes finished after the failure, got %d", len(mem.finished))
	}
}

func TestRunWorkload_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RunWorkload(ctx, newFakeMemory(), workloadConfig(), 64)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}
