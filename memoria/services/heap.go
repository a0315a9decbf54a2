package services

import (
	"fmt"
	"slices"

	"github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/models"
)

// GrowHeap duplica la capacidad de la tabla del heap, hasta max_heap_pages.
func (as *AddressSpace) GrowHeap() error {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.growHeapLocked()
}

// ShrinkHeap reduce a la mitad la capacidad de la tabla del heap.
func (as *AddressSpace) ShrinkHeap() error {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.shrinkHeapLocked()
}

// Las PTE se copian tal cual, incluso las BUSY: el coremap las referencia por
// región e índice, así que quien las tenga en transición las encuentra en la tabla nueva.
func (as *AddressSpace) growHeapLocked() error {
	limit := as.vm.cfg.MaxHeapPages
	if len(as.heap) >= limit {
		return fmt.Errorf("%w: el heap ya tiene %d páginas", models.ErrNoMemory, len(as.heap))
	}
	size := len(as.heap) * 2
	if size == 0 {
		size = as.vm.cfg.MinHeapPages
	}
	if size > limit {
		size = limit
	}
	grown := make([]models.PTE, size)
	copy(grown, as.heap)
	as.heap = grown
	return nil
}

func (as *AddressSpace) heapPagesLocked() int {
	span := as.heapTop - as.heapBase
	return int((span + as.pageMask()) / as.vm.pageSize)
}

func (as *AddressSpace) shrinkHeapLocked() error {
	for {
		half := len(as.heap) / 2
		if half < as.vm.cfg.MinHeapPages || as.heapPagesLocked() > half {
			return fmt.Errorf("%w: no se puede achicar el heap a %d páginas", models.ErrInvalid, half)
		}

		busy := slices.ContainsFunc(as.heap[half:], func(p models.PTE) bool { return p.Busy })
		if busy {
			as.cond.Wait()
			continue
		}

		for i := half; i < len(as.heap); i++ {
			as.releaseLocked(&as.heap[i])
		}
		as.heap = slices.Clone(as.heap[:half])
		return nil
	}
}

// Sbrk mueve el tope del heap en delta bytes y devuelve el tope anterior.
// Las páginas que quedan fuera del heap se liberan en el momento.
func (as *AddressSpace) Sbrk(delta int32) (uint32, error) {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.destroyed {
		return 0, fmt.Errorf("%w: espacio de direcciones %d destruido", models.ErrInvalid, as.id)
	}

	old := as.heapTop
	top := int64(old) + int64(delta)
	if top < int64(as.heapBase) {
		return 0, fmt.Errorf("%w: sbrk(%d) deja el heap por debajo de su base", models.ErrInvalid, delta)
	}
	if top > int64(as.stackBottom()) {
		return 0, fmt.Errorf("%w: sbrk(%d) invade el stack", models.ErrNoMemory, delta)
	}

	ps := int64(as.vm.pageSize)
	pages := int((top - int64(as.heapBase) + ps - 1) / ps)
	if pages > as.vm.cfg.MaxHeapPages {
		return 0, fmt.Errorf("%w: sbrk(%d) supera las %d páginas de heap", models.ErrNoMemory, delta, as.vm.cfg.MaxHeapPages)
	}

	oldPages := as.heapPagesLocked()
	as.heapTop = uint32(top)

	if pages < oldPages {
		as.releaseRangeLocked(models.RegionHeap, pages, oldPages)
		for len(as.heap)/2 >= max(pages, as.vm.cfg.MinHeapPages) {
			if err := as.shrinkHeapLocked(); err != nil {
				break
			}
		}
		return old, nil
	}

	for len(as.heap) < pages {
		if err := as.growHeapLocked(); err != nil {
			as.heapTop = old
			return 0, err
		}
	}
	return old, nil
}
