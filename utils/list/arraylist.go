package list

import (
	"slices"
	"sync"
)

// List es una lista segura para usar desde varias goroutines.
type List[T any] interface {
	Add(item T)                                 // Añadir un elemento al final de la lista
	Find(predicate func(T) bool) (T, int, bool) // Buscar el primer elemento que cumple el predicado
	RemoveWhere(match func(T) bool) (T, bool)   // Sacar el primer elemento que cumple match
	GetAll() []T                                // Copia de todos los elementos
	Size() int                                  // Tamaño de la lista
	Sorted(cmp func(a, b T) int) []T            // Copia ordenada según cmp
}

// ArrayList implements List
type ArrayList[T any] struct {
	mu    sync.RWMutex
	items []T
}

// Add inserta un elemento al final de la lista.
//
// Ejemplo:
//
//	func main() {
//		list := &ArrayList[int]{}
//		list.Add(10)
//		list.Add(20)
//	}
func (list *ArrayList[T]) Add(item T) {
	list.mu.Lock()
	defer list.mu.Unlock()

	list.items = append(list.items, item)
}

// Find permite buscar un elemento de la lista dado un predicado. Devuelve el
// elemento, su índice y si lo encontró.
//
// Ejemplo:
//
//	func main() {
//		list := &ArrayList[int]{}
//		list.Add(10)
//		list.Add(20)
//
//		number, index, found := list.Find(func(number int) bool {
//			return number == 20
//		})
//	}
func (list *ArrayList[T]) Find(predicate func(T) bool) (T, int, bool) {
	list.mu.RLock()
	defer list.mu.RUnlock()

	for i, item := range list.items {
		if predicate(item) {
			return item, i, true
		}
	}
	var zero T
	return zero, -1, false
}

// RemoveWhere saca el primer elemento que cumple match y lo devuelve. Buscar
// y sacar pasa bajo el mismo lock, así dos llamadas no sacan el mismo elemento.
func (list *ArrayList[T]) RemoveWhere(match func(T) bool) (T, bool) {
	list.mu.Lock()
	defer list.mu.Unlock()

	i := slices.IndexFunc(list.items, match)
	if i == -1 {
		var zero T
		return zero, false
	}
	item := list.items[i]
	list.items = slices.Delete(list.items, i, i+1)
	return item, true
}

// GetAll retorna una copia de todos los elementos que se encuentran en la lista.
func (list *ArrayList[T]) GetAll() []T {
	list.mu.RLock()
	defer list.mu.RUnlock()
	return slices.Clone(list.items)
}

func (list *ArrayList[T]) Size() int {
	list.mu.RLock()
	defer list.mu.RUnlock()
	return len(list.items)
}

// Sorted devuelve una copia de la lista ordenada según cmp, sin modificar la original.
//
// Ejemplo:
//
//	func main() {
//		list := &ArrayList[int]{}
//		list.Add(40)
//		list.Add(10)
//
//		ordered := list.Sorted(func(a, b int) int { return a - b }) //[10, 40]
//	}
func (list *ArrayList[T]) Sorted(cmp func(a, b T) int) []T {
	items := list.GetAll()
	slices.SortStableFunc(items, cmp)
	return items
}
