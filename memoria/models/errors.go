package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMemory se devuelve cuando no hay marcos libres ni forma de liberarlos (ENOMEM).
	ErrNoMemory = errors.New("memoria insuficiente")
	// ErrSwapFull es un caso particular de ErrNoMemory: no quedan slots libres en swap.
	ErrSwapFull   = fmt.Errorf("%w: swap lleno", ErrNoMemory)
	ErrBadAddress = errors.New("dirección inválida")
	ErrInvalid    = errors.New("argumento inválido")
	ErrNoProcess  = errors.New("no hay proceso actual o no tiene espacio de direcciones")
)
