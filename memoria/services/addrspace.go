package services

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/models"
)

// AddressSpace es el espacio de direcciones de un proceso: dos regiones
// estáticas, heap y stack, cada una con su tabla de páginas plana.
//
// mu protege todas las tablas. Una PTE con Busy en true está en transición:
// quien la marcó suelta mu, hace la operación bloqueante, vuelve a tomar mu,
// limpia Busy y despierta a todos con cond.Broadcast.
type AddressSpace struct {
	id uint32
	vm *VM

	mu   sync.Mutex
	cond *sync.Cond

	vbase1, npages1 uint32
	vbase2, npages2 uint32
	perms1, perms2  models.Perm
	nregions        int
	loading         bool
	destroyed       bool

	pgtable1 []models.PTE
	pgtable2 []models.PTE
	// stack[i] es la página que empieza en UserStack - (i+1)*page_size.
	stack    []models.PTE
	heap     []models.PTE
	heapBase uint32
	heapTop  uint32

	faults    atomic.Uint64
	zeroFills atomic.Uint64
	swapIns   atomic.Uint64
	swapOuts  atomic.Uint64
}

// CreateAddressSpace devuelve un espacio de direcciones vacío.
func (vm *VM) CreateAddressSpace() *AddressSpace {
	as := &AddressSpace{
		id: vm.nextID.Add(1),
		vm: vm,
	}
	as.cond = sync.NewCond(&as.mu)
	vm.addressSpaces.Add(1)
	slog.Debug(fmt.Sprintf("## AS: %d - Creado", as.id))
	return as
}

func (as *AddressSpace) ID() uint32 {
	return as.id
}

func (as *AddressSpace) pageMask() uint32 {
	return as.vm.pageSize - 1
}

func (as *AddressSpace) stackBottom() uint32 {
	return models.UserStack - uint32(as.vm.cfg.MaxStackPages)*as.vm.pageSize
}

// DefineRegion registra una región estática redondeada a páginas completas.
// Pedir una tercera región es un error de programación del loader.
func (as *AddressSpace) DefineRegion(vaddr, size uint32, perms models.Perm) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.nregions >= 2 {
		panic(fmt.Sprintf("as %d: se pidió una tercera región en 0x%08x", as.id, vaddr))
	}

	mask := as.pageMask()
	size += vaddr & mask
	vaddr &^= mask
	end := uint64(vaddr) + uint64(size) + uint64(mask)
	end &^= uint64(mask)
	if size == 0 || end > uint64(as.stackBottom()) {
		return fmt.Errorf("%w: región 0x%08x de %d bytes", models.ErrInvalid, vaddr, size)
	}
	npages := uint32(end-uint64(vaddr)) / as.vm.pageSize

	if as.nregions == 1 && vaddr < as.vbase1+as.npages1*as.vm.pageSize && as.vbase1 < uint32(end) {
		return fmt.Errorf("%w: la región 0x%08x se superpone con la región 1", models.ErrInvalid, vaddr)
	}

	if as.nregions == 0 {
		as.vbase1, as.npages1, as.perms1 = vaddr, npages, perms
	} else {
		as.vbase2, as.npages2, as.perms2 = vaddr, npages, perms
	}
	as.nregions++

	// El heap arranca donde termina la región más alta.
	if uint32(end) > as.heapBase {
		as.heapBase = uint32(end)
		as.heapTop = as.heapBase
	}
	slog.Debug(fmt.Sprintf("## AS: %d - Región %d definida - Base: 0x%08x - Páginas: %d", as.id, as.nregions, vaddr, npages))
	return nil
}

// PrepareLoad arma las tablas de páginas en cero. No se asigna ningún marco.
func (as *AddressSpace) PrepareLoad() error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.destroyed {
		return fmt.Errorf("%w: espacio de direcciones %d destruido", models.ErrInvalid, as.id)
	}
	if as.pgtable1 == nil && as.npages1 > 0 {
		as.pgtable1 = make([]models.PTE, as.npages1)
	}
	if as.pgtable2 == nil && as.npages2 > 0 {
		as.pgtable2 = make([]models.PTE, as.npages2)
	}
	if as.heap == nil {
		as.heap = make([]models.PTE, as.vm.cfg.MinHeapPages)
	}
	as.loading = true
	return nil
}

func (as *AddressSpace) CompleteLoad() error {
	as.mu.Lock()
	defer as.mu.Unlock()
	if !as.loading {
		return fmt.Errorf("%w: CompleteLoad sin PrepareLoad", models.ErrInvalid)
	}
	as.loading = false
	return nil
}

// DefineStack devuelve el stack pointer inicial.
func (as *AddressSpace) DefineStack() uint32 {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.stack == nil {
		as.stack = make([]models.PTE, as.vm.cfg.MinStackPages)
	}
	return models.UserStack
}

// Activate invalida la TLB de la CPU que pasa a correr este espacio de direcciones.
func (as *AddressSpace) Activate(tlb TLB) {
	tlb.InvalidateAll()
}

// HeapBreak devuelve el inicio y el tope actual del heap.
func (as *AddressSpace) HeapBreak() (uint32, uint32) {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.heapBase, as.heapTop
}

// Capacity devuelve la cantidad de slots de la tabla de la región.
func (as *AddressSpace) Capacity(region models.Region) int {
	as.mu.Lock()
	defer as.mu.Unlock()
	return len(as.table(region))
}

// Entry devuelve una copia de la PTE de ref.
func (as *AddressSpace) Entry(ref models.PageRef) (models.PTE, bool) {
	as.mu.Lock()
	defer as.mu.Unlock()
	p := as.slot(ref)
	if p == nil {
		return models.PTE{}, false
	}
	return *p, true
}

func (as *AddressSpace) table(region models.Region) []models.PTE {
	switch region {
	case models.RegionOne:
		return as.pgtable1
	case models.RegionTwo:
		return as.pgtable2
	case models.RegionHeap:
		return as.heap
	case models.RegionStack:
		return as.stack
	default:
		panic(fmt.Sprintf("as %d: región desconocida %v", as.id, region))
	}
}

// slot resuelve ref contra la tabla actual. El puntero vale mientras se tenga
// mu y la tabla no se realoque, así que se vuelve a resolver después de cada espera.
func (as *AddressSpace) slot(ref models.PageRef) *models.PTE {
	table := as.table(ref.Region)
	if ref.Index < 0 || ref.Index >= len(table) {
		return nil
	}
	return &table[ref.Index]
}

// waitSlot espera a que la PTE de ref deje de estar en transición.
func (as *AddressSpace) waitSlot(ref models.PageRef) *models.PTE {
	for {
		p := as.slot(ref)
		if p == nil || !p.Busy {
			return p
		}
		as.cond.Wait()
	}
}

// vaddrOf es la dirección virtual de la página ref.
func (as *AddressSpace) vaddrOf(ref models.PageRef) uint32 {
	ps := as.vm.pageSize
	switch ref.Region {
	case models.RegionOne:
		return as.vbase1 + uint32(ref.Index)*ps
	case models.RegionTwo:
		return as.vbase2 + uint32(ref.Index)*ps
	case models.RegionHeap:
		return as.heapBase + uint32(ref.Index)*ps
	default:
		return models.UserStack - uint32(ref.Index+1)*ps
	}
}

func (as *AddressSpace) unbusy(ref models.PageRef) {
	as.mu.Lock()
	if p := as.slot(ref); p != nil {
		p.Busy = false
	}
	as.cond.Broadcast()
	as.mu.Unlock()
}

// claimForEviction confirma, sin esperar el lock, que ref sigue residente en
// frame y sin transición en curso, y la marca BUSY.
func (as *AddressSpace) claimForEviction(ref models.PageRef, frame uint32) bool {
	if !as.mu.TryLock() {
		return false
	}
	defer as.mu.Unlock()
	p := as.slot(ref)
	if p == nil || p.State != models.PageResident || p.Busy || p.Frame != frame {
		return false
	}
	p.Busy = true
	return true
}

func (as *AddressSpace) abortEviction(ref models.PageRef) {
	as.unbusy(ref)
}

func (as *AddressSpace) completeEviction(ref models.PageRef, slot uint32) {
	as.mu.Lock()
	p := as.slot(ref)
	if p == nil || p.State != models.PageResident || !p.Busy {
		panic(fmt.Sprintf("as %d: la página %s cambió durante el desalojo", as.id, ref))
	}
	*p = models.Swapped(slot)
	as.cond.Broadcast()
	as.mu.Unlock()
}

// restore vuelve la PTE a saved después de un page-in fallido.
func (as *AddressSpace) restore(ref models.PageRef, saved models.PTE) {
	as.mu.Lock()
	if p := as.slot(ref); p != nil {
		*p = saved
		p.Busy = false
	}
	as.cond.Broadcast()
	as.mu.Unlock()
}

// installBusy deja ref residente en frame manteniendo BUSY.
func (as *AddressSpace) installBusy(ref models.PageRef, frame uint32) {
	as.mu.Lock()
	p := as.slot(ref)
	if p == nil || !p.Busy {
		panic(fmt.Sprintf("as %d: instalando el marco %d en %s sin BUSY", as.id, frame, ref))
	}
	*p = models.Resident(frame)
	p.Busy = true
	as.mu.Unlock()
}

// releaseLocked libera el marco o el slot de swap de una PTE sin transición en curso.
func (as *AddressSpace) releaseLocked(p *models.PTE) {
	switch p.State {
	case models.PageResident:
		as.vm.shoot.InvalidateFrame(p.Frame * as.vm.pageSize)
		as.vm.coremap.FreeUserFrame(p.Frame)
	case models.PageSwapped:
		as.vm.swap.FreeSlot(p.Frame)
	}
	*p = models.PTE{}
}

// releaseRangeLocked libera los slots [from, to) de region esperando los que estén BUSY.
func (as *AddressSpace) releaseRangeLocked(region models.Region, from, to int) {
	for i := from; i < to; i++ {
		p := as.waitSlot(models.PageRef{Region: region, Index: i})
		if p == nil {
			return
		}
		as.releaseLocked(p)
	}
}

// Destroy libera todos los marcos y slots de swap del espacio de direcciones.
func (as *AddressSpace) Destroy() {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.destroyed {
		return
	}

	for _, region := range models.Regions {
		as.releaseRangeLocked(region, 0, len(as.table(region)))
	}
	as.pgtable1, as.pgtable2, as.heap, as.stack = nil, nil, nil, nil
	as.destroyed = true
	as.vm.addressSpaces.Add(-1)

	slog.Info(fmt.Sprintf("## AS: %d - Métricas - Fallos: %d; Zero-fill: %d; Swap-in: %d; Swap-out: %d",
		as.id, as.faults.Load(), as.zeroFills.Load(), as.swapIns.Load(), as.swapOuts.Load()))
}

// PageTable devuelve las entradas no vacías de todas las tablas en formato empaquetado.
func (as *AddressSpace) PageTable() []models.PageTableEntry {
	as.mu.Lock()
	defer as.mu.Unlock()
	var out []models.PageTableEntry
	for _, region := range models.Regions {
		for i, pte := range as.table(region) {
			if pte.IsZero() {
				continue
			}
			ref := models.PageRef{Region: region, Index: i}
			out = append(out, models.PageTableEntry{Region: region, Index: i, VAddr: as.vaddrOf(ref), Raw: pte.Pack()})
		}
	}
	return out
}
