package services

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/models"
)

// SwapStore administra el área de swap: un bitmap de slots del tamaño de una
// página sobre un BlockDevice. El bitmap vive solo en memoria y arranca vacío.
type SwapStore struct {
	vm  *VM
	dev BlockDevice

	mu     sync.Mutex
	bitmap *bitset.BitSet
	slots  int
	warned bool
}

func newSwapStore(vm *VM, dev BlockDevice, slots int) *SwapStore {
	return &SwapStore{
		vm:     vm,
		dev:    dev,
		bitmap: bitset.New(uint(slots)),
		slots:  slots,
	}
}

func (s *SwapStore) allocSlot() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.bitmap.NextClear(0)
	if !ok || idx >= uint(s.slots) {
		if !s.warned {
			slog.Warn("El área de swap está llena")
		}
		s.warned = true
		return 0, models.ErrSwapFull
	}
	s.bitmap.Set(idx)
	return uint32(idx), nil
}

// FreeSlot libera un slot de swap.
func (s *SwapStore) FreeSlot(slot uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.bitmap.Test(uint(slot)) {
		panic(fmt.Sprintf("swap: liberando el slot %d que no está en uso", slot))
	}
	s.bitmap.Clear(uint(slot))
	s.warned = false
}

// Full indica que no queda ningún slot libre en este momento.
func (s *SwapStore) Full() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullLocked()
}

func (s *SwapStore) fullLocked() bool {
	return s.bitmap.Count() >= uint(s.slots)
}

func (s *SwapStore) Stats() models.SwapStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.SwapStats{Slots: s.slots, Used: int(s.bitmap.Count()), Full: s.fullLocked()}
}

func (s *SwapStore) offset(slot uint32) int64 {
	return int64(slot) * int64(s.vm.pageSize)
}

func (s *SwapStore) writeSlot(slot uint32, src []byte) error {
	n, err := s.dev.WriteAt(src, s.offset(slot))
	if err != nil {
		return fmt.Errorf("escritura del slot %d: %w", slot, err)
	}
	if n != len(src) {
		return fmt.Errorf("escritura del slot %d: %w", slot, io.ErrShortWrite)
	}
	return nil
}

// ReadSlot copia el contenido del slot en dst sin liberarlo.
func (s *SwapStore) ReadSlot(slot uint32, dst []byte) error {
	n, err := s.dev.ReadAt(dst, s.offset(slot))
	if err != nil && !(errors.Is(err, io.EOF) && n == len(dst)) {
		return fmt.Errorf("lectura del slot %d: %w", slot, err)
	}
	if n != len(dst) {
		return fmt.Errorf("lectura del slot %d: %w", slot, io.ErrUnexpectedEOF)
	}
	return nil
}

// Evict desaloja el marco elegido por SelectVictim: invalida las traducciones,
// escribe la página en un slot libre y deja la PTE en SWAP. Si algo falla la
// página queda residente, sin BUSY, y el marco deja de estar ocupado.
// Si todo sale bien el marco queda asignado y busy para que el llamador lo reutilice.
func (s *SwapStore) Evict(frame uint32) error {
	cm := s.vm.coremap
	cm.mu.Lock()
	e := cm.entries[frame]
	cm.mu.Unlock()
	if !e.Busy || e.Owner == nil {
		panic(fmt.Sprintf("swap: desalojando el marco %d sin haberlo elegido como víctima", frame))
	}
	owner, ref := e.Owner, e.Page

	s.vm.shoot.InvalidateFrame(frame * s.vm.pageSize)

	slot, err := s.allocSlot()
	if err != nil {
		owner.abortEviction(ref)
		cm.clearBusy(frame)
		return err
	}

	if err := s.writeSlot(slot, s.vm.ram.Frame(frame)); err != nil {
		s.FreeSlot(slot)
		owner.abortEviction(ref)
		cm.clearBusy(frame)
		slog.Error(fmt.Sprintf("Fallo el write-back del marco %d: %v", frame, err))
		return err
	}

	owner.completeEviction(ref, slot)
	s.vm.swapOuts.Add(1)
	owner.swapOuts.Add(1)
	slog.Debug(fmt.Sprintf("## AS: %d - Página %s desalojada - Marco: %d - Slot: %d", owner.id, ref, frame, slot))
	return nil
}

// PageIn trae a memoria la página ref de as, que estaba en SWAP con el valor
// saved. La PTE tiene que estar marcada BUSY por el llamador y queda
// residente y BUSY al volver. Si falla la PTE vuelve a saved.
func (s *SwapStore) PageIn(as *AddressSpace, ref models.PageRef, saved models.PTE) (uint32, error) {
	if saved.State != models.PageSwapped {
		panic(fmt.Sprintf("swap: page-in de %s en estado %s", ref, saved.State))
	}

	frame, err := s.vm.coremap.AllocateUserFrame(as, ref)
	if err != nil {
		as.restore(ref, saved)
		return 0, err
	}

	if err := s.ReadSlot(saved.Frame, s.vm.ram.Frame(frame)); err != nil {
		s.vm.coremap.FreeUserFrame(frame)
		as.restore(ref, saved)
		slog.Error(fmt.Sprintf("## AS: %d - Fallo el page-in de %s: %v", as.id, ref, err))
		return 0, err
	}

	s.FreeSlot(saved.Frame)
	as.installBusy(ref, frame)
	s.vm.swapIns.Add(1)
	as.swapIns.Add(1)
	slog.Debug(fmt.Sprintf("## AS: %d - Página %s traída de swap - Slot: %d - Marco: %d", as.id, ref, saved.Frame, frame))
	return frame, nil
}
