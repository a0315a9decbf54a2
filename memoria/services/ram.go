package services

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// PhysicalMemory es la memoria física simulada: una región anónima mapeada
// fuera del heap de Go, dividida en marcos de page_size bytes.
type PhysicalMemory struct {
	mem      []byte
	pageSize int
}

func NewPhysicalMemory(frames, pageSize int) (*PhysicalMemory, error) {
	mem, err := unix.Mmap(-1, 0, frames*pageSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("no se pudo mapear la memoria física (%d marcos): %w", frames, err)
	}
	return &PhysicalMemory{mem: mem, pageSize: pageSize}, nil
}

func (m *PhysicalMemory) Frame(n uint32) []byte {
	off := int(n) * m.pageSize
	return m.mem[off : off+m.pageSize : off+m.pageSize]
}

// Bytes devuelve el rango [paddr, paddr+n) de memoria física.
func (m *PhysicalMemory) Bytes(paddr uint32, n int) []byte {
	return m.mem[paddr : int(paddr)+n : int(paddr)+n]
}

func (m *PhysicalMemory) Zero(n uint32) {
	clear(m.Frame(n))
}

func (m *PhysicalMemory) Close() error {
	if m.mem == nil {
		return nil
	}
	err := unix.Munmap(m.mem)
	m.mem = nil
	return err
}
