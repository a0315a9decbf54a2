package services

import (
	"fmt"
	"log/slog"

	"github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/models"
)

// Copy duplica el espacio de direcciones página por página. Las páginas en
// swap se leen directo al marco del hijo. Si algo falla se destruye la copia.
//
// El padre puede seguir fallando mientras se copia: el largo de cada tabla se
// vuelve a leer en cada página, así el hijo recibe también las páginas de stack
// que aparezcan durante la copia. El heap del hijo queda con el tope que tenía
// el padre al empezar.
func (as *AddressSpace) Copy() (*AddressSpace, error) {
	child := as.vm.CreateAddressSpace()

	as.mu.Lock()
	if as.destroyed {
		as.mu.Unlock()
		child.Destroy()
		return nil, fmt.Errorf("%w: espacio de direcciones %d destruido", models.ErrInvalid, as.id)
	}
	child.vbase1, child.npages1, child.perms1 = as.vbase1, as.npages1, as.perms1
	child.vbase2, child.npages2, child.perms2 = as.vbase2, as.npages2, as.perms2
	child.nregions = as.nregions
	child.heapBase, child.heapTop = as.heapBase, as.heapTop
	child.pgtable1 = sized(as.pgtable1)
	child.pgtable2 = sized(as.pgtable2)
	child.heap = sized(as.heap)
	child.stack = sized(as.stack)
	heapPages := as.heapPagesLocked()
	as.mu.Unlock()

	for _, region := range models.Regions {
		for i := 0; ; i++ {
			ref := models.PageRef{Region: region, Index: i}
			more, err := as.copySlot(child, ref, heapPages)
			if err != nil {
				slog.Warn(fmt.Sprintf("## AS: %d - Fallo la copia de %s: %v", as.id, ref, err))
				child.Destroy()
				return nil, err
			}
			if !more {
				break
			}
		}
	}

	slog.Debug(fmt.Sprintf("## AS: %d - Copiado en AS %d", as.id, child.id))
	return child, nil
}

func sized(table []models.PTE) []models.PTE {
	if table == nil {
		return nil
	}
	return make([]models.PTE, len(table))
}

// copyLimitLocked es la cantidad de slots de region que le corresponden al hijo.
func (as *AddressSpace) copyLimitLocked(region models.Region, heapPages int) int {
	n := len(as.table(region))
	if region == models.RegionHeap {
		n = min(n, heapPages)
	}
	return n
}

// copySlot copia ref del padre al hijo. Devuelve false cuando ref ya cae fuera
// de la tabla del padre.
func (as *AddressSpace) copySlot(child *AddressSpace, ref models.PageRef, heapPages int) (bool, error) {
	as.mu.Lock()
	if ref.Index >= as.copyLimitLocked(ref.Region, heapPages) {
		as.mu.Unlock()
		return false, nil
	}
	p := as.waitSlot(ref)
	if p == nil || p.State == models.PageUnmapped {
		as.mu.Unlock()
		return true, nil
	}
	p.Busy = true
	src := *p
	as.mu.Unlock()
	defer as.unbusy(ref)

	frame, err := as.vm.coremap.AllocateUserFrame(child, ref)
	if err != nil {
		return false, err
	}

	dst := as.vm.ram.Frame(frame)
	switch src.State {
	case models.PageResident:
		copy(dst, as.vm.ram.Frame(src.Frame))
	case models.PageSwapped:
		if err := as.vm.swap.ReadSlot(src.Frame, dst); err != nil {
			as.vm.coremap.FreeUserFrame(frame)
			return false, err
		}
	}

	child.mu.Lock()
	slot := child.fitLocked(ref)
	if slot == nil {
		child.mu.Unlock()
		as.vm.coremap.FreeUserFrame(frame)
		return false, fmt.Errorf("%w: %s no entra en la tabla del hijo", models.ErrInvalid, ref)
	}
	*slot = models.Resident(frame)
	child.mu.Unlock()
	return true, nil
}

// fitLocked agranda la tabla de stack o de heap hasta que entre ref y devuelve su PTE.
func (as *AddressSpace) fitLocked(ref models.PageRef) *models.PTE {
	for {
		if p := as.slot(ref); p != nil {
			return p
		}
		switch ref.Region {
		case models.RegionStack:
			if as.stack == nil || len(as.stack) >= as.vm.cfg.MaxStackPages {
				return nil
			}
			as.growStackLocked()
		case models.RegionHeap:
			if as.heap == nil || as.growHeapLocked() != nil {
				return nil
			}
		default:
			return nil
		}
	}
}
