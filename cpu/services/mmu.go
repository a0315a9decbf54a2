package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// CPU es un procesador simulado con su propia TLB. Mientras alguien lo tiene
// tomado con Acquire nadie más corre sobre él.
type CPU struct {
	ID      int
	tlb     *TLB
	current uint32 // espacio de direcciones activo, 0 si ninguno
}

func (c *CPU) TLB() *TLB {
	return c.tlb
}

func (c *CPU) Current() uint32 {
	return c.current
}

func (c *CPU) SetCurrent(id uint32) {
	c.current = id
}

type shootdownRequest struct {
	paddr uint32
	ack   chan struct{}
}

// MMU agrupa las CPUs y coordina los shootdowns: cada CPU tiene una goroutine
// que atiende pedidos de invalidación y confirma por el canal ack.
type MMU struct {
	cpus     []*CPU
	idle     chan *CPU
	requests []chan shootdownRequest

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewMMU(cpus, tlbEntries int, pageSize uint32, algorithm string) *MMU {
	m := &MMU{
		cpus:     make([]*CPU, cpus),
		idle:     make(chan *CPU, cpus),
		requests: make([]chan shootdownRequest, cpus),
	}
	for i := range m.cpus {
		m.cpus[i] = &CPU{ID: i, tlb: NewTLB(tlbEntries, pageSize, algorithm)}
		m.requests[i] = make(chan shootdownRequest)
		m.idle <- m.cpus[i]
	}
	return m
}

func (m *MMU) CPUs() []*CPU {
	return m.cpus
}

// Start levanta la goroutine de shootdown de cada CPU. Cancelar ctx equivale a Stop.
func (m *MMU) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.done = make(chan struct{})

	for i, cpu := range m.cpus {
		m.wg.Add(1)
		go func(cpu *CPU, requests <-chan shootdownRequest, done <-chan struct{}) {
			defer m.wg.Done()
			for {
				select {
				case req := <-requests:
					cpu.tlb.InvalidateFrame(req.paddr)
					req.ack <- struct{}{}
				case <-done:
					return
				}
			}
		}(cpu, m.requests[i], m.done)
	}

	go func(done <-chan struct{}) {
		select {
		case <-ctx.Done():
			m.Stop()
		case <-done:
		}
	}(m.done)
	slog.Debug(fmt.Sprintf("MMU iniciada con %d CPUs", len(m.cpus)))
}

func (m *MMU) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.done)
	m.mu.Unlock()
	m.wg.Wait()
}

// InvalidateFrame pide a todas las CPUs que borren las traducciones al marco
// de paddr y espera la confirmación de cada una. Si la MMU no está corriendo
// invalida directamente.
func (m *MMU) InvalidateFrame(paddr uint32) {
	m.mu.Lock()
	running, done := m.running, m.done
	m.mu.Unlock()

	if !running {
		for _, cpu := range m.cpus {
			cpu.tlb.InvalidateFrame(paddr)
		}
		return
	}

	ack := make(chan struct{}, len(m.cpus))
	sent := 0
	for i, cpu := range m.cpus {
		select {
		case m.requests[i] <- shootdownRequest{paddr: paddr, ack: ack}:
			sent++
		case <-done:
			cpu.tlb.InvalidateFrame(paddr)
		}
	}
	for ; sent > 0; sent-- {
		<-ack
	}
}

// Acquire toma una CPU libre, bloqueando hasta que haya una o se cancele ctx.
func (m *MMU) Acquire(ctx context.Context) (*CPU, error) {
	select {
	case cpu := <-m.idle:
		return cpu, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *MMU) Release(cpu *CPU) {
	m.idle <- cpu
}
