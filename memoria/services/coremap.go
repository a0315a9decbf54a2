package services

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/models"
)

// Cantidad de vueltas sin víctima antes de rendirse al pedir un marco de usuario.
const reclaimRetries = 64

// CoremapEntry describe un marco físico.
type CoremapEntry struct {
	Owner     *AddressSpace  // nil si es de kernel o está libre
	Page      models.PageRef // slot de la tabla de Owner que apunta a este marco
	Allocated bool
	User      bool // asignado a una página de usuario
	Busy      bool // desalojo en curso, Owner y Page no son confiables
	Next      int  // siguiente marco del bloque contiguo de kernel, -1 si es el último
}

// Coremap es la tabla global de marcos físicos. Los marcos [0, kernelBase)
// son los de arranque, [kernelBase, userBase) solo se entregan al kernel y
// desde userBase en adelante se reparten entre kernel y usuario.
type Coremap struct {
	vm *VM

	mu         sync.Mutex
	entries    []CoremapEntry
	kernelBase int
	userBase   int
	referenced *bitset.BitSet
	hand       int
}

func newCoremap(vm *VM, frames, bootPages, reserved int) *Coremap {
	cm := &Coremap{
		vm:         vm,
		entries:    make([]CoremapEntry, frames),
		kernelBase: bootPages,
		userBase:   bootPages + reserved,
		referenced: bitset.New(uint(frames)),
		hand:       bootPages + reserved,
	}
	for i := range cm.entries {
		cm.entries[i].Next = -1
	}
	// Los marcos de arranque quedan como un único bloque de kernel que nunca se libera.
	for i := 0; i < bootPages; i++ {
		cm.entries[i].Allocated = true
		if i+1 < bootPages {
			cm.entries[i].Next = i + 1
		}
	}
	return cm
}

// AllocateKernelFrames reserva n marcos contiguos no desalojables y devuelve
// la dirección física del primero. Si no hay un bloque libre desaloja
// páginas de usuario de a una y vuelve a buscar.
func (cm *Coremap) AllocateKernelFrames(n int) (models.PAddr, error) {
	if n <= 0 || n > len(cm.entries)-cm.kernelBase {
		return 0, fmt.Errorf("%w: %d marcos de kernel", models.ErrInvalid, n)
	}

	for {
		cm.mu.Lock()
		start, ok := cm.findRunLocked(n)
		if ok {
			for i := start; i < start+n; i++ {
				e := &cm.entries[i]
				e.Allocated = true
				e.User = false
				e.Owner = nil
				e.Next = i + 1
			}
			cm.entries[start+n-1].Next = -1
			cm.mu.Unlock()
			slog.Debug("Marcos de kernel asignados", "inicio", start, "cantidad", n)
			return models.PAddr(uint32(start) * cm.vm.pageSize), nil
		}
		cm.mu.Unlock()

		if err := cm.vm.reclaim(); err != nil {
			slog.Warn(fmt.Sprintf("No hay %d marcos contiguos para el kernel: %v", n, err))
			return 0, err
		}
	}
}

func (cm *Coremap) findRunLocked(n int) (int, bool) {
	run := 0
	for i := cm.kernelBase; i < len(cm.entries); i++ {
		e := &cm.entries[i]
		if e.Allocated || e.Busy {
			run = 0
			continue
		}
		run++
		if run == n {
			return i - n + 1, true
		}
	}
	return 0, false
}

// AllocateUserFrame entrega un marco para el slot ref de owner. Si no hay
// marcos libres desaloja una víctima y reutiliza su marco. El llamador
// instala el número de marco en la PTE bajo el lock de owner.
func (cm *Coremap) AllocateUserFrame(owner *AddressSpace, ref models.PageRef) (uint32, error) {
	misses := 0
	for {
		cm.mu.Lock()
		if frame, ok := cm.findFreeUserLocked(); ok {
			cm.assignLocked(frame, owner, ref)
			cm.mu.Unlock()
			return uint32(frame), nil
		}
		cm.mu.Unlock()

		// Todo desalojo escribe la víctima en un slot nuevo, así que sin slots
		// libres no hay forma de liberar un marco. Esto vale también para un
		// page-in: su slot recién se libera después de tener el marco.
		if cm.vm.swap.Full() {
			return 0, models.ErrSwapFull
		}

		victim, ok := cm.vm.swap.SelectVictim()
		if !ok {
			misses++
			if misses >= reclaimRetries {
				return 0, fmt.Errorf("%w: no hay marcos de usuario desalojables", models.ErrNoMemory)
			}
			runtime.Gosched()
			continue
		}

		if err := cm.vm.swap.Evict(victim); err != nil {
			if errors.Is(err, models.ErrNoMemory) {
				return 0, err
			}
			return 0, fmt.Errorf("no se pudo desalojar el marco %d: %w", victim, err)
		}

		cm.mu.Lock()
		cm.assignLocked(int(victim), owner, ref)
		cm.entries[victim].Busy = false
		cm.mu.Unlock()
		return victim, nil
	}
}

func (cm *Coremap) findFreeUserLocked() (int, bool) {
	for i := cm.userBase; i < len(cm.entries); i++ {
		e := &cm.entries[i]
		if !e.Allocated && !e.Busy {
			return i, true
		}
	}
	return 0, false
}

func (cm *Coremap) assignLocked(frame int, owner *AddressSpace, ref models.PageRef) {
	e := &cm.entries[frame]
	e.Allocated = true
	e.User = true
	e.Owner = owner
	e.Page = ref
	e.Next = -1
	cm.referenced.Set(uint(frame))
}

// FreeKernelFrames libera el bloque contiguo que empieza en paddr.
func (cm *Coremap) FreeKernelFrames(paddr models.PAddr) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	frame := int(uint32(paddr) / cm.vm.pageSize)
	if frame < cm.kernelBase || frame >= len(cm.entries) {
		panic(fmt.Sprintf("coremap: liberando marcos de kernel fuera de rango 0x%x", uint32(paddr)))
	}
	for frame != -1 {
		e := &cm.entries[frame]
		if !e.Allocated || e.User {
			panic(fmt.Sprintf("coremap: el marco %d no es un marco de kernel asignado", frame))
		}
		next := e.Next
		*e = CoremapEntry{Next: -1}
		frame = next
	}
}

// FreeUserFrame libera un marco de usuario. El flag Busy no se toca porque
// pertenece a quien esté desalojando el marco.
func (cm *Coremap) FreeUserFrame(frame uint32) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if int(frame) < cm.userBase || int(frame) >= len(cm.entries) {
		panic(fmt.Sprintf("coremap: liberando marco de usuario fuera de rango %d", frame))
	}
	e := &cm.entries[frame]
	if !e.Allocated || !e.User {
		panic(fmt.Sprintf("coremap: el marco %d no es un marco de usuario asignado", frame))
	}
	e.Allocated = false
	e.User = false
	e.Owner = nil
	e.Page = models.PageRef{}
	cm.referenced.Clear(uint(frame))
}

// release deja libre un marco recién desalojado.
func (cm *Coremap) release(frame uint32) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.entries[frame] = CoremapEntry{Next: -1}
	cm.referenced.Clear(uint(frame))
}

func (cm *Coremap) clearBusy(frame uint32) {
	cm.mu.Lock()
	cm.entries[frame].Busy = false
	cm.mu.Unlock()
}

// touch marca el marco como usado recientemente para el reloj.
func (cm *Coremap) touch(frame uint32) {
	cm.mu.Lock()
	cm.referenced.Set(uint(frame))
	cm.mu.Unlock()
}

func (cm *Coremap) FreeUserFrames() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	free := 0
	for i := cm.userBase; i < len(cm.entries); i++ {
		if !cm.entries[i].Allocated && !cm.entries[i].Busy {
			free++
		}
	}
	return free
}

func (cm *Coremap) Stats() models.CoremapStats {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	stats := models.CoremapStats{Frames: len(cm.entries), UserBase: cm.userBase}
	for _, e := range cm.entries {
		switch {
		case !e.Allocated:
			stats.Free++
		case e.User:
			stats.User++
		default:
			stats.Kernel++
		}
		if e.Busy {
			stats.Busy++
		}
	}
	return stats
}

// Snapshot devuelve una copia de las entradas, para volcados y tests.
func (cm *Coremap) Snapshot() []CoremapEntry {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	out := make([]CoremapEntry, len(cm.entries))
	copy(out, cm.entries)
	return out
}
