package services

import (
	"math/rand/v2"
	"testing"

	"github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/models"
)

func TestAllocateKernelFrames(t *testing.T) {
	env := newTestVM(t, 8, 8)
	cm := env.vm.Coremap()

	paddr, err := cm.AllocateKernelFrames(3)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	first := int(uint32(paddr) / testPageSize)
	if first != testBootPages {
		t.Errorf("Expected first kernel block at frame %d, got %d", testBootPages, first)
	}

	entries := cm.Snapshot()
	for i := first; i < first+3; i++ {
		if !entries[i].Allocated || entries[i].User {
			t.Errorf("Expected frame %d to be a kernel frame", i)
		}
	}
	if entries[first].Next != first+1 || entries[first+2].Next != -1 {
		t.Errorf("Expected a chained block, got next %d and %d", entries[first].Next, entries[first+2].Next)
	}

	cm.FreeKernelFrames(paddr)
	if stats := cm.Stats(); stats.Kernel != testBootPages {
		t.Errorf("Expected only boot frames after free, got %d kernel frames", stats.Kernel)
	}
}

func TestAllocateKernelFrames_ThrowError(t *testing.T) {
	env := newTestVM(t, 4, 8)
	cm := env.vm.Coremap()

	if _, err := cm.AllocateKernelFrames(0); err == nil {
		t.Error("Expected error for zero frames, got nil")
	}
	if _, err := cm.AllocateKernelFrames(100); err == nil {
		t.Error("Expected error for more frames than memory, got nil")
	}
}

func TestAllocateKernelFrames_EvictsUserPages(t *testing.T) {
	env := newTestVM(t, 4, 16)
	as := env.spawn(t, 4)
	th := env.thread(as, 0)
	writePages(t, env, th, 4)

	// Reservados (2) + un marco de usuario desalojado.
	paddr, err := env.vm.Coremap().AllocateKernelFrames(testReserved + 1)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if env.vm.Stats().SwapOuts == 0 {
		t.Error("Expected a user page to be evicted for the kernel")
	}

	checkPages(t, env, th, 4)
	env.vm.Coremap().FreeKernelFrames(paddr)
}

func TestFreeKernelFrames_Panics(t *testing.T) {
	env := newTestVM(t, 4, 8)
	as := env.spawn(t, 1)
	if err := env.vm.HandleFault(env.thread(as, 0), models.FaultWrite, regionBase); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	pte, _ := as.Entry(models.PageRef{Region: models.RegionOne, Index: 0})

	defer func() {
		if recover() == nil {
			t.Error("Expected panic freeing a user frame as kernel memory")
		}
	}()
	env.vm.Coremap().FreeKernelFrames(models.PAddr(pte.Frame * testPageSize))
}

// Secuencia aleatoria de reservas y liberaciones contrastada contra un modelo de marcos ocupados.
func TestCoremap_KernelModelReplay(t *testing.T) {
	const userFrames = 24
	env := newTestVM(t, userFrames, 8)
	cm := env.vm.Coremap()
	rng := rand.New(rand.NewPCG(7, 11))

	used := map[int]bool{}
	var blocks []models.PAddr
	sizes := map[models.PAddr]int{}

	for step := 0; step < 500; step++ {
		if len(blocks) > 0 && rng.IntN(2) == 0 {
			i := rng.IntN(len(blocks))
			paddr := blocks[i]
			blocks = append(blocks[:i], blocks[i+1:]...)
			cm.FreeKernelFrames(paddr)
			first := int(uint32(paddr) / testPageSize)
			for f := first; f < first+sizes[paddr]; f++ {
				delete(used, f)
			}
			delete(sizes, paddr)
			continue
		}

		n := 1 + rng.IntN(3)
		paddr, err := cm.AllocateKernelFrames(n)
		if err != nil {
			continue
		}
		first := int(uint32(paddr) / testPageSize)
		for f := first; f < first+n; f++ {
			if used[f] {
				t.Fatalf("Step %d: frame %d handed out twice", step, f)
			}
			used[f] = true
		}
		blocks = append(blocks, paddr)
		sizes[paddr] = n

		stats := cm.Stats()
		if stats.Kernel != testBootPages+len(used) {
			t.Fatalf("Step %d: expected %d kernel frames, got %d", step, testBootPages+len(used), stats.Kernel)
		}
	}

	for _, paddr := range blocks {
		cm.FreeKernelFrames(paddr)
	}
	if stats := cm.Stats(); stats.Kernel != testBootPages || stats.Free != testReserved+userFrames {
		t.Errorf("Expected everything freed, got %+v", stats)
	}
}

func TestSelectVictim_SkipsReferencedOnce(t *testing.T) {
	env := newTestVM(t, 2, 8)
	as := env.spawn(t, 2)
	th := env.thread(as, 0)
	writePages(t, env, th, 2)

	frame, ok := env.vm.Swap().SelectVictim()
	if !ok {
		t.Fatal("Expected a victim after a full sweep")
	}
	entries := env.vm.Coremap().Snapshot()
	if !entries[frame].Busy {
		t.Error("Expected the victim to be marked busy")
	}
	pte, _ := as.Entry(entries[frame].Page)
	if !pte.Busy || pte.Frame != frame {
		t.Errorf("Expected the victim PTE to be busy on frame %d, got %v", frame, pte)
	}

	if err := env.vm.Swap().Evict(frame); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	env.vm.Coremap().release(frame)
	if env.vm.Coremap().FreeUserFrames() != 1 {
		t.Errorf("Expected one free frame, got %d", env.vm.Coremap().FreeUserFrames())
	}
}

func TestSelectVictim_NoCandidates(t *testing.T) {
	env := newTestVM(t, 2, 8)
	if _, ok := env.vm.Swap().SelectVictim(); ok {
		t.Error("Expected no victim with empty memory")
	}
}
