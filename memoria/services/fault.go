package services

import (
	"fmt"
	"log/slog"

	"github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/models"
)

// HandleFault atiende un fallo de TLB del hilo t sobre vaddr. Asigna la
// página si nunca se tocó, la trae de swap si estaba desalojada e instala la
// traducción en la TLB de t.
func (vm *VM) HandleFault(t Thread, kind models.FaultType, vaddr uint32) error {
	switch kind {
	case models.FaultRead, models.FaultWrite:
	case models.FaultReadOnly:
		panic(fmt.Sprintf("vm: fallo READONLY en 0x%08x, no hay páginas de solo lectura", vaddr))
	default:
		return fmt.Errorf("%w: tipo de fallo %d", models.ErrInvalid, int(kind))
	}

	if t == nil {
		return models.ErrNoProcess
	}
	as := t.AddressSpace()
	if as == nil {
		return models.ErrNoProcess
	}
	tlb := t.TLB()

	page := vaddr &^ (vm.pageSize - 1)
	vm.faults.Add(1)
	as.faults.Add(1)

	as.mu.Lock()
	defer as.mu.Unlock()

	ref, err := as.resolveLocked(page)
	if err != nil {
		slog.Debug(fmt.Sprintf("## AS: %d - Fallo fuera de rango - Dirección: 0x%08x", as.id, vaddr))
		return err
	}

	p := as.waitSlot(ref)
	if p == nil {
		return fmt.Errorf("%w: 0x%08x", models.ErrBadAddress, vaddr)
	}

	var frame uint32
	switch p.State {
	case models.PageResident:
		if kind == models.FaultWrite && !p.Dirty {
			p.Dirty = true
		}
		frame = p.Frame
		vm.install(tlb, page, frame)
		vm.coremap.touch(frame)
		return nil

	case models.PageSwapped:
		saved := *p
		p.Busy = true
		as.mu.Unlock()
		frame, err = vm.swap.PageIn(as, ref, saved)
		as.mu.Lock()
		if err != nil {
			return err
		}

	case models.PageUnmapped:
		*p = models.Resident(0)
		p.Busy = true
		as.mu.Unlock()
		frame, err = vm.coremap.AllocateUserFrame(as, ref)
		if err == nil {
			vm.ram.Zero(frame)
		}
		as.mu.Lock()
		if err != nil {
			if p := as.slot(ref); p != nil {
				*p = models.PTE{}
			}
			as.cond.Broadcast()
			return err
		}
		as.slot(ref).Frame = frame
		vm.zeroFills.Add(1)
		as.zeroFills.Add(1)
	}

	vm.install(tlb, page, frame)
	p = as.slot(ref)
	p.Busy = false
	as.cond.Broadcast()
	return nil
}

func (vm *VM) install(tlb TLB, page, frame uint32) {
	tlb.Write(page, frame*vm.pageSize)
	vm.tlbInstalls.Add(1)
}

// resolveLocked clasifica una dirección de página en región e índice. Las
// tablas de stack y heap crecen acá si el índice no entra.
func (as *AddressSpace) resolveLocked(page uint32) (models.PageRef, error) {
	ps := as.vm.pageSize

	if as.pgtable1 != nil && page >= as.vbase1 && page < as.vbase1+as.npages1*ps {
		return models.PageRef{Region: models.RegionOne, Index: int((page - as.vbase1) / ps)}, nil
	}
	if as.pgtable2 != nil && page >= as.vbase2 && page < as.vbase2+as.npages2*ps {
		return models.PageRef{Region: models.RegionTwo, Index: int((page - as.vbase2) / ps)}, nil
	}

	if as.stack != nil && page >= as.stackBottom() && page < models.UserStack {
		idx := int((models.UserStack-page)/ps) - 1
		for idx >= len(as.stack) {
			as.growStackLocked()
		}
		return models.PageRef{Region: models.RegionStack, Index: idx}, nil
	}

	if as.heap != nil && page >= as.heapBase && page < as.heapTop {
		idx := int((page - as.heapBase) / ps)
		for idx >= len(as.heap) {
			if err := as.growHeapLocked(); err != nil {
				return models.PageRef{}, err
			}
		}
		return models.PageRef{Region: models.RegionHeap, Index: idx}, nil
	}

	return models.PageRef{}, fmt.Errorf("%w: 0x%08x", models.ErrBadAddress, page)
}

func (as *AddressSpace) growStackLocked() {
	size := len(as.stack) * 2
	if size == 0 {
		size = as.vm.cfg.MinStackPages
	}
	if size > as.vm.cfg.MaxStackPages {
		size = as.vm.cfg.MaxStackPages
	}
	grown := make([]models.PTE, size)
	copy(grown, as.stack)
	as.stack = grown
}
