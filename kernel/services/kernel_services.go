package services

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	cpuServices "github.com/sisoputnfrba/tp-vm-Los-magiOS/cpu/services"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/kernel/models"
	memoriaModel "github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/models"
	memoriaServices "github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/services"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/utils/list"
)

// Kernel es el ciclo de vida de procesos alrededor de la memoria virtual:
// tabla de procesos, creación, fork y finalización. Cada operación sobre la
// memoria de un proceso corre en una CPU de la MMU.
type Kernel struct {
	vm        *memoriaServices.VM
	mmu       *cpuServices.MMU
	processes *list.ArrayList[*models.Process]

	pidMutex sync.Mutex
	nextPID  uint
}

func NewKernel(vm *memoriaServices.VM, mmu *cpuServices.MMU) *Kernel {
	return &Kernel{
		vm:        vm,
		mmu:       mmu,
		processes: &list.ArrayList[*models.Process]{},
	}
}

func (k *Kernel) VM() *memoriaServices.VM {
	return k.vm
}

func (k *Kernel) generatePID() uint {
	k.pidMutex.Lock()
	defer k.pidMutex.Unlock()
	k.nextPID++
	return k.nextPID
}

// Process busca un proceso vivo por PID.
func (k *Kernel) Process(pid uint) (*models.Process, error) {
	process, _, found := k.processes.Find(func(p *models.Process) bool { return p.PID == pid })
	if !found {
		return nil, fmt.Errorf("%w: PID %d", memoriaModel.ErrNoProcess, pid)
	}
	return process, nil
}

// Processes devuelve los procesos vivos ordenados por PID.
func (k *Kernel) Processes() []*models.Process {
	return k.processes.Sorted(func(a, b *models.Process) int { return cmp.Compare(a.PID, b.PID) })
}

// thread es el hilo de un proceso corriendo sobre una CPU.
type thread struct {
	as  *memoriaServices.AddressSpace
	tlb *cpuServices.TLB
}

func (t thread) AddressSpace() *memoriaServices.AddressSpace {
	return t.as
}

func (t thread) TLB() memoriaServices.TLB {
	return t.tlb
}

// run toma una CPU, cambia al espacio de direcciones del proceso si hace
// falta y ejecuta fn como si fuera un hilo del proceso.
func (k *Kernel) run(ctx context.Context, process *models.Process, fn func(memoriaServices.Thread) error) error {
	cpu, err := k.mmu.Acquire(ctx)
	if err != nil {
		return err
	}
	defer k.mmu.Release(cpu)

	if cpu.Current() != process.AS.ID() {
		process.AS.Activate(cpu.TLB())
		cpu.SetCurrent(process.AS.ID())
		slog.Debug(fmt.Sprintf("## PID: %d - Cambio de contexto en CPU %d", process.PID, cpu.ID))
	}
	return fn(thread{as: process.AS, tlb: cpu.TLB()})
}

// Spawn crea un proceso con las regiones pedidas, como lo dejaría el loader.
func (k *Kernel) Spawn(regions []memoriaModel.RegionRequest) (*models.Process, error) {
	if len(regions) == 0 || len(regions) > 2 {
		return nil, fmt.Errorf("%w: un proceso tiene una o dos regiones, se pidieron %d", memoriaModel.ErrInvalid, len(regions))
	}

	as := k.vm.CreateAddressSpace()
	for _, region := range regions {
		if err := as.DefineRegion(region.VAddr, region.Size, region.Perms); err != nil {
			as.Destroy()
			return nil, err
		}
	}
	if err := as.PrepareLoad(); err != nil {
		as.Destroy()
		return nil, err
	}
	if err := as.CompleteLoad(); err != nil {
		as.Destroy()
		return nil, err
	}
	sp := as.DefineStack()

	return k.register(as, -1, sp)
}

func (k *Kernel) register(as *memoriaServices.AddressSpace, parent int, sp uint32) (*models.Process, error) {
	kstack, err := k.vm.Coremap().AllocateKernelFrames(models.KernelStackPages)
	if err != nil {
		as.Destroy()
		return nil, err
	}

	process := &models.Process{
		PID:          k.generatePID(),
		ParentPID:    parent,
		AS:           as,
		KernelStack:  kstack,
		StackPointer: sp,
	}
	k.processes.Add(process)
	slog.Info(fmt.Sprintf("## PID: %d - Proceso Creado - AS: %d", process.PID, as.ID()))
	return process, nil
}

// Fork duplica el proceso pid con una copia completa de su memoria.
func (k *Kernel) Fork(pid uint) (*models.Process, error) {
	parent, err := k.Process(pid)
	if err != nil {
		return nil, err
	}
	as, err := parent.AS.Copy()
	if err != nil {
		slog.Warn(fmt.Sprintf("## PID: %d - Fork fallido: %v", pid, err))
		return nil, err
	}
	return k.register(as, int(pid), parent.StackPointer)
}

// Exit destruye el proceso y libera su memoria. Destroy invalida en todas las
// CPUs cada marco que libera y los ID de espacio de direcciones no se reusan,
// así que ninguna TLB queda con traducciones del proceso.
func (k *Kernel) Exit(pid uint) error {
	process, found := k.processes.RemoveWhere(func(p *models.Process) bool { return p.PID == pid })
	if !found {
		return fmt.Errorf("%w: PID %d", memoriaModel.ErrNoProcess, pid)
	}

	process.AS.Destroy()
	k.vm.Coremap().FreeKernelFrames(process.KernelStack)
	slog.Info(fmt.Sprintf("## PID: %d - Proceso Destruido", pid))
	return nil
}

func (k *Kernel) Sbrk(pid uint, delta int32) (uint32, error) {
	process, err := k.Process(pid)
	if err != nil {
		return 0, err
	}
	old, err := process.AS.Sbrk(delta)
	if err != nil {
		return 0, err
	}
	slog.Debug(fmt.Sprintf("## PID: %d - sbrk(%d) - Break anterior: 0x%08x", pid, delta, old))
	return old, nil
}

// Fault simula un fallo de TLB del proceso sobre vaddr.
func (k *Kernel) Fault(ctx context.Context, pid uint, kind memoriaModel.FaultType, vaddr uint32) error {
	process, err := k.Process(pid)
	if err != nil {
		return err
	}
	return k.run(ctx, process, func(t memoriaServices.Thread) error {
		return k.vm.HandleFault(t, kind, vaddr)
	})
}

func (k *Kernel) Read(ctx context.Context, pid uint, vaddr uint32, size int) ([]byte, error) {
	process, err := k.Process(pid)
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: tamaño %d", memoriaModel.ErrInvalid, size)
	}
	if uint64(vaddr)+uint64(size) > uint64(memoriaModel.UserStack) {
		return nil, fmt.Errorf("%w: lectura de %d bytes en 0x%08x", memoriaModel.ErrBadAddress, size, vaddr)
	}
	data := make([]byte, size)
	err = k.run(ctx, process, func(t memoriaServices.Thread) error {
		return k.vm.CopyIn(t, vaddr, data)
	})
	if err != nil {
		return nil, err
	}
	slog.Info(fmt.Sprintf("## PID: %d - Lectura - Dir. Virtual: 0x%08x - Tamaño: %d", pid, vaddr, size))
	return data, nil
}

func (k *Kernel) Write(ctx context.Context, pid uint, vaddr uint32, data []byte) error {
	process, err := k.Process(pid)
	if err != nil {
		return err
	}
	err = k.run(ctx, process, func(t memoriaServices.Thread) error {
		return k.vm.CopyOut(t, vaddr, data)
	})
	if err != nil {
		return err
	}
	slog.Info(fmt.Sprintf("## PID: %d - Escritura - Dir. Virtual: 0x%08x - Tamaño: %d", pid, vaddr, len(data)))
	return nil
}

// Dump vuelca la memoria del proceso en w.
func (k *Kernel) Dump(pid uint, w io.Writer) (int, error) {
	process, err := k.Process(pid)
	if err != nil {
		return 0, err
	}
	slog.Info(fmt.Sprintf("## PID: %d - Memory Dump solicitado", pid))
	return k.vm.Dump(process.AS, w)
}
