package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sisoputnfrba/tp-vm-Los-magiOS/cpu/models"
	memoriaModel "github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/models"
)

// Memory son las operaciones de memoria que usa la carga de trabajo.
type Memory interface {
	CreateProcess(regions []memoriaModel.RegionRequest) (memoriaModel.ProcessResponse, error)
	Fork(pid uint) (memoriaModel.ProcessResponse, error)
	Finish(pid uint) error
	Sbrk(pid uint, delta int32) (uint32, error)
	Write(pid uint, address uint32, data []byte) error
	Read(pid uint, address uint32, size int) ([]byte, error)
}

// pattern es el contenido que el worker w escribe en la página p en la iteración it.
func pattern(worker, it, page, pageSize int) []byte {
	data := make([]byte, pageSize)
	for i := range data {
		data[i] = byte(worker*31 + it*7 + page*13 + i)
	}
	return data
}

// RunWorkload corre cpuConfig.Workers procesos en paralelo contra memoria. Cada
// uno agranda el heap, escribe un patrón por página, lo vuelve a leer y, cada
// fork_every iteraciones, hace fork y verifica que el hijo no vea las
// escrituras posteriores del padre.
func RunWorkload(ctx context.Context, mem Memory, cpuConfig *models.Config, pageSize int) ([]models.WorkerResult, error) {
	results := make([]models.WorkerResult, cpuConfig.Workers)
	group, ctx := errgroup.WithContext(ctx)

	for w := 0; w < cpuConfig.Workers; w++ {
		group.Go(func() error {
			result, err := runWorker(ctx, mem, cpuConfig, pageSize, w)
			results[w] = result
			return err
		})
	}

	err := group.Wait()
	return results, err
}

func runWorker(ctx context.Context, mem Memory, cpuConfig *models.Config, pageSize int, worker int) (models.WorkerResult, error) {
	regions := []memoriaModel.RegionRequest{{
		VAddr: cpuConfig.RegionBase,
		Size:  cpuConfig.RegionSize,
		Perms: memoriaModel.PermRead | memoriaModel.PermWrite,
	}}
	proc, err := mem.CreateProcess(regions)
	if err != nil {
		return models.WorkerResult{}, err
	}
	result := models.WorkerResult{PID: proc.PID}
	defer mem.Finish(proc.PID)

	heapBase, err := mem.Sbrk(proc.PID, int32(cpuConfig.HeapPages*pageSize))
	if err != nil {
		return result, err
	}
	result.Pages = cpuConfig.HeapPages
	slog.Info(fmt.Sprintf("## PID: %d - Worker %d - Heap en 0x%08x - Páginas: %d", proc.PID, worker, heapBase, cpuConfig.HeapPages))

	for it := 0; it < cpuConfig.Iterations; it++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		for p := 0; p < cpuConfig.HeapPages; p++ {
			addr := heapBase + uint32(p*pageSize)
			if err := mem.Write(proc.PID, addr, pattern(worker, it, p, pageSize)); err != nil {
				return result, err
			}
		}
		for p := 0; p < cpuConfig.HeapPages; p++ {
			addr := heapBase + uint32(p*pageSize)
			got, err := mem.Read(proc.PID, addr, pageSize)
			if err != nil {
				return result, err
			}
			if !bytes.Equal(got, pattern(worker, it, p, pageSize)) {
				return result, fmt.Errorf("%w: PID %d página %d iteración %d", models.ErrMismatch, proc.PID, p, it)
			}
			result.Verified++
		}

		if cpuConfig.ForkEvery > 0 && (it+1)%cpuConfig.ForkEvery == 0 {
			if err := checkFork(mem, proc.PID, heapBase, worker, it, pageSize); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

// checkFork hace fork de pid, pisa la primera página del padre y verifica que
// el hijo conserve el contenido anterior.
func checkFork(mem Memory, pid uint, heapBase uint32, worker, it, pageSize int) error {
	child, err := mem.Fork(pid)
	if err != nil {
		return err
	}
	defer mem.Finish(child.PID)

	if err := mem.Write(pid, heapBase, pattern(worker, it+1000, 0, pageSize)); err != nil {
		return err
	}
	got, err := mem.Read(child.PID, heapBase, pageSize)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, pattern(worker, it, 0, pageSize)) {
		return fmt.Errorf("%w: el hijo %d ve escrituras del padre %d", models.ErrMismatch, child.PID, pid)
	}
	slog.Debug(fmt.Sprintf("## PID: %d - Fork verificado - Hijo: %d", pid, child.PID))
	return mem.Write(pid, heapBase, pattern(worker, it, 0, pageSize))
}
