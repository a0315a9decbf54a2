package services

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/models"
)

// Dump escribe en w el contenido de todas las páginas del espacio de
// direcciones, región por región y en orden de dirección virtual. Las páginas
// nunca tocadas se escriben como ceros y las que están en swap se leen del
// área de swap sin traerlas a memoria.
func (vm *VM) Dump(as *AddressSpace, w io.Writer) (int, error) {
	slog.Info(fmt.Sprintf("## AS: %d - Memory Dump solicitado", as.id))

	page := make([]byte, vm.pageSize)
	pages := 0
	for _, region := range models.Regions {
		as.mu.Lock()
		count := len(as.table(region))
		if region == models.RegionHeap {
			count = min(count, as.heapPagesLocked())
		}
		as.mu.Unlock()

		for n := 0; n < count; n++ {
			idx := n
			if region == models.RegionStack {
				idx = count - 1 - n
			}
			if err := as.readPage(models.PageRef{Region: region, Index: idx}, page); err != nil {
				slog.Error(fmt.Sprintf("## AS: %d - Fallo el dump de %s: %v", as.id, models.PageRef{Region: region, Index: idx}, err))
				return pages, err
			}
			if _, err := w.Write(page); err != nil {
				return pages, fmt.Errorf("fallo al escribir datos al archivo de dump: %w", err)
			}
			pages++
		}
	}

	slog.Info(fmt.Sprintf("## AS: %d - Memory Dump completado - Páginas: %d", as.id, pages))
	return pages, nil
}

// readPage copia el contenido de ref en dst manteniendo la PTE BUSY mientras dura la copia.
func (as *AddressSpace) readPage(ref models.PageRef, dst []byte) error {
	as.mu.Lock()
	p := as.waitSlot(ref)
	if p == nil || p.State == models.PageUnmapped {
		as.mu.Unlock()
		clear(dst)
		return nil
	}
	p.Busy = true
	src := *p
	as.mu.Unlock()
	defer as.unbusy(ref)

	if src.State == models.PageResident {
		copy(dst, as.vm.ram.Frame(src.Frame))
		return nil
	}
	return as.vm.swap.ReadSlot(src.Frame, dst)
}
