package services

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/sisoputnfrba/tp-vm-Los-magiOS/cpu/models"
)

// TLB es la caché de traducciones de una CPU. Guarda página virtual -> página
// física, sin identificador de proceso: al cambiar de proceso se vacía entera.
type TLB struct {
	mu        sync.Mutex
	entries   []models.TLBEntry
	pageMask  uint32
	algorithm string // "RANDOM" o "FIFO"
	next      int    // próxima víctima para FIFO
	rng       *rand.Rand
	hits      uint64
	misses    uint64
}

func NewTLB(size int, pageSize uint32, algorithm string) *TLB {
	if algorithm != "FIFO" {
		algorithm = "RANDOM"
	}
	return &TLB{
		entries:   make([]models.TLBEntry, size),
		pageMask:  pageSize - 1,
		algorithm: algorithm,
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

func (t *TLB) lookupLocked(vaddr uint32) (uint32, bool) {
	page := vaddr &^ t.pageMask
	for i := range t.entries {
		if t.entries[i].Valid && t.entries[i].VPage == page {
			t.hits++
			return t.entries[i].PPage | (vaddr & t.pageMask), true
		}
	}
	t.misses++
	return 0, false
}

// Lookup traduce vaddr si hay una entrada para su página.
func (t *TLB) Lookup(vaddr uint32) (uint32, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lookupLocked(vaddr)
}

// Access ejecuta fn con la dirección física de vaddr sin soltar el lock de la
// TLB, así ningún shootdown puede invalidar la entrada mientras se usa.
func (t *TLB) Access(vaddr uint32, fn func(paddr uint32)) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	paddr, ok := t.lookupLocked(vaddr)
	if !ok {
		return false
	}
	fn(paddr)
	return true
}

// Write instala la traducción vaddr -> paddr. Si la página ya estaba se
// reemplaza; si no, se usa una entrada libre o se pisa una según el algoritmo.
func (t *TLB) Write(vaddr, paddr uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.entries) == 0 {
		return
	}

	entry := models.TLBEntry{Valid: true, VPage: vaddr &^ t.pageMask, PPage: paddr &^ t.pageMask}

	free := -1
	for i := range t.entries {
		if t.entries[i].Valid && t.entries[i].VPage == entry.VPage {
			t.entries[i] = entry
			return
		}
		if !t.entries[i].Valid && free == -1 {
			free = i
		}
	}
	if free != -1 {
		t.entries[free] = entry
		return
	}

	var victim int
	if t.algorithm == "FIFO" {
		victim = t.next
		t.next = (t.next + 1) % len(t.entries)
	} else {
		victim = t.rng.IntN(len(t.entries))
	}
	slog.Debug(fmt.Sprintf("TLB reemplazo: Página 0x%08x por Página 0x%08x", t.entries[victim].VPage, entry.VPage))
	t.entries[victim] = entry
}

// InvalidateFrame borra toda entrada que apunte al marco de paddr.
func (t *TLB) InvalidateFrame(paddr uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ppage := paddr &^ t.pageMask
	for i := range t.entries {
		if t.entries[i].Valid && t.entries[i].PPage == ppage {
			t.entries[i] = models.TLBEntry{}
		}
	}
}

func (t *TLB) InvalidateAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.entries)
	t.next = 0
}

func (t *TLB) Stats() (hits, misses uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hits, t.misses
}
