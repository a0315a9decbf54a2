package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/models"
)

// VM agrupa las estructuras globales del subsistema de memoria virtual. Se
// crea una sola vez en Boot y se pasa por referencia a quien la necesite.
type VM struct {
	cfg      models.Config
	pageSize uint32

	ram     *PhysicalMemory
	coremap *Coremap
	swap    *SwapStore
	shoot   Shootdown

	nextID        atomic.Uint32
	addressSpaces atomic.Int64

	faults      atomic.Uint64
	zeroFills   atomic.Uint64
	swapIns     atomic.Uint64
	swapOuts    atomic.Uint64
	tlbInstalls atomic.Uint64
}

// Boot arma la memoria física, el coremap y el área de swap a partir de la configuración.
func Boot(cfg models.Config, dev BlockDevice, shoot Shootdown) (*VM, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuración de memoria inválida: %w", err)
	}
	if dev == nil || shoot == nil {
		return nil, fmt.Errorf("%w: se necesita dispositivo de swap y shootdown", models.ErrInvalid)
	}

	ram, err := NewPhysicalMemory(cfg.Frames(), cfg.PageSize)
	if err != nil {
		return nil, err
	}

	vm := &VM{
		cfg:      cfg,
		pageSize: uint32(cfg.PageSize),
		ram:      ram,
		shoot:    shoot,
	}

	slots := int(dev.Size() / int64(cfg.PageSize))
	if slots > cfg.SwapSize {
		slots = cfg.SwapSize
	}
	if slots == 0 {
		ram.Close()
		return nil, fmt.Errorf("el dispositivo de swap (%d bytes) no alcanza para una página", dev.Size())
	}

	vm.coremap = newCoremap(vm, cfg.Frames(), cfg.BootPages, cfg.ReservedKernelPages)
	vm.swap = newSwapStore(vm, dev, slots)

	slog.Info(fmt.Sprintf("Memoria virtual iniciada - Marcos: %d - Marcos de arranque: %d - Primer marco de usuario: %d - Slots de swap: %d",
		cfg.Frames(), cfg.BootPages, vm.coremap.userBase, slots))
	return vm, nil
}

func (vm *VM) Close() error {
	return vm.ram.Close()
}

func (vm *VM) PageSize() uint32 {
	return vm.pageSize
}

func (vm *VM) Config() models.Config {
	return vm.cfg
}

func (vm *VM) Coremap() *Coremap {
	return vm.coremap
}

func (vm *VM) Swap() *SwapStore {
	return vm.swap
}

// Memory expone la memoria física para quien necesite leer un marco de kernel.
func (vm *VM) Memory() *PhysicalMemory {
	return vm.ram
}

func (vm *VM) Stats() models.VMStats {
	return models.VMStats{
		Coremap:       vm.coremap.Stats(),
		Swap:          vm.swap.Stats(),
		AddressSpaces: vm.addressSpaces.Load(),
		Faults:        vm.faults.Load(),
		ZeroFills:     vm.zeroFills.Load(),
		SwapIns:       vm.swapIns.Load(),
		SwapOuts:      vm.swapOuts.Load(),
		TLBInstalls:   vm.tlbInstalls.Load(),
	}
}

// reclaim desaloja un marco de usuario y lo deja libre.
func (vm *VM) reclaim() error {
	if vm.swap.Full() {
		return models.ErrSwapFull
	}
	frame, ok := vm.swap.SelectVictim()
	if !ok {
		return fmt.Errorf("%w: no hay marcos desalojables", models.ErrNoMemory)
	}
	if err := vm.swap.Evict(frame); err != nil {
		return err
	}
	vm.coremap.release(frame)
	return nil
}

// RunPageDaemon desaloja páginas en segundo plano para mantener al menos
// low_watermark marcos de usuario libres. Termina cuando se cancela ctx.
func (vm *VM) RunPageDaemon(ctx context.Context) {
	interval := time.Duration(vm.cfg.DaemonInterval) * time.Millisecond
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Debug("Page daemon iniciado", "intervalo", interval, "low_watermark", vm.cfg.LowWatermark)
	for {
		select {
		case <-ctx.Done():
			slog.Debug("Page daemon detenido")
			return
		case <-ticker.C:
		}

		for vm.coremap.FreeUserFrames() < vm.cfg.LowWatermark {
			if err := vm.reclaim(); err != nil {
				if !errors.Is(err, models.ErrNoMemory) {
					slog.Warn(fmt.Sprintf("Page daemon: fallo al desalojar: %v", err))
				}
				break
			}
		}
	}
}
