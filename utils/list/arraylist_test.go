package list

import (
	"cmp"
	"sync"
	"testing"
)

type process struct {
	pid    uint
	parent int
}

func setupProcesses() *ArrayList[process] {
	processes := &ArrayList[process]{}
	processes.Add(process{pid: 3, parent: -1})
	processes.Add(process{pid: 1, parent: -1})
	processes.Add(process{pid: 2, parent: 1})
	return processes
}

func TestArrayList_Add(t *testing.T) {
	list := &ArrayList[int]{}

	list.Add(10)
	list.Add(20)

	if list.Size() != 2 {
		t.Errorf("Expected size 2, got %d", list.Size())
	}
}

func TestArrayList_Find(t *testing.T) {
	processes := setupProcesses()

	p, index, found := processes.Find(func(p process) bool { return p.pid == 2 })
	if !found || index != 2 || p.parent != 1 {
		t.Errorf("Expected pid 2 at index 2, got %+v at %d (%v)", p, index, found)
	}

	_, index, found = processes.Find(func(p process) bool { return p.pid == 9 })
	if found || index != -1 {
		t.Errorf("Expected not found, got index %d", index)
	}
}

func TestArrayList_RemoveWhere(t *testing.T) {
	processes := setupProcesses()

	p, ok := processes.RemoveWhere(func(p process) bool { return p.pid == 1 })
	if !ok || p.pid != 1 {
		t.Errorf("Expected to remove pid 1, got %+v (%v)", p, ok)
	}
	if processes.Size() != 2 {
		t.Errorf("Expected size 2, got %d", processes.Size())
	}
	if _, ok := processes.RemoveWhere(func(p process) bool { return p.pid == 1 }); ok {
		t.Error("Expected pid 1 to be removed only once")
	}
}

func TestArrayList_RemoveWhere_Concurrent(t *testing.T) {
	list := &ArrayList[int]{}
	list.Add(7)

	var wg sync.WaitGroup
	var mu sync.Mutex
	removed := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := list.RemoveWhere(func(n int) bool { return n == 7 }); ok {
				mu.Lock()
				removed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if removed != 1 {
		t.Errorf("Expected exactly one removal, got %d", removed)
	}
}

func TestArrayList_GetAllIsCopy(t *testing.T) {
	processes := setupProcesses()

	all := processes.GetAll()
	all[0].pid = 100
	if p, _, _ := processes.Find(func(p process) bool { return p.pid == 100 }); p.pid == 100 {
		t.Error("Expected GetAll to return a copy")
	}
}

func TestArrayList_Sorted(t *testing.T) {
	processes := setupProcesses()

	sorted := processes.Sorted(func(a, b process) int { return cmp.Compare(a.pid, b.pid) })
	for i, p := range sorted {
		if p.pid != uint(i+1) {
			t.Errorf("Expected pid %d at index %d, got %d", i+1, i, p.pid)
		}
	}
	if first, _, _ := processes.Find(func(process) bool { return true }); first.pid != 3 {
		t.Errorf("Expected the list to keep its order, got %d first", first.pid)
	}
}
