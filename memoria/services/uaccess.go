package services

import (
	"fmt"

	"github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/models"
)

// CopyIn copia len(dst) bytes desde la memoria de usuario de t en vaddr.
func (vm *VM) CopyIn(t Thread, vaddr uint32, dst []byte) error {
	return vm.userAccess(t, vaddr, len(dst), models.FaultRead, func(paddr uint32, off, n int) {
		copy(dst[off:off+n], vm.ram.Bytes(paddr, n))
	})
}

// CopyOut copia src a la memoria de usuario de t en vaddr.
func (vm *VM) CopyOut(t Thread, vaddr uint32, src []byte) error {
	return vm.userAccess(t, vaddr, len(src), models.FaultWrite, func(paddr uint32, off, n int) {
		copy(vm.ram.Bytes(paddr, n), src[off:off+n])
	})
}

// userAccess recorre [vaddr, vaddr+size) de a páginas. Cada copia se hace
// dentro de TLB.Access, así un shootdown no puede intercalarse con ella. Si
// falta la traducción se atiende el fallo y se reintenta.
func (vm *VM) userAccess(t Thread, vaddr uint32, size int, kind models.FaultType, fn func(paddr uint32, off, n int)) error {
	if size < 0 || uint64(vaddr)+uint64(size) > uint64(models.UserStack) {
		return fmt.Errorf("%w: acceso de %d bytes en 0x%08x", models.ErrBadAddress, size, vaddr)
	}
	if t == nil || t.AddressSpace() == nil {
		return models.ErrNoProcess
	}
	tlb := t.TLB()

	done := 0
	for done < size {
		addr := vaddr + uint32(done)
		inPage := int(vm.pageSize - addr&(vm.pageSize-1))
		n := min(inPage, size-done)

		off := done
		ok := tlb.Access(addr, func(paddr uint32) {
			fn(paddr, off, n)
		})
		if !ok {
			if err := vm.HandleFault(t, kind, addr); err != nil {
				return err
			}
			continue
		}
		done += n
	}
	return nil
}
