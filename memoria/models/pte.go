package models

import "fmt"

// UserStack es la dirección virtual (exclusiva) donde arranca el stack de usuario.
const UserStack uint32 = 0x80000000

// Formato empaquetado de una entrada de tabla de páginas.
const (
	PteValid uint32 = 0x80000000
	PteSwap  uint32 = 0x40000000
	PteBusy  uint32 = 0x20000000
	PteDirty uint32 = 0x10000000
	PteFrame uint32 = 0x000FFFFF
)

type PageState uint8

const (
	PageUnmapped PageState = iota
	PageResident
	PageSwapped
)

func (s PageState) String() string {
	switch s {
	case PageUnmapped:
		return "UNMAPPED"
	case PageResident:
		return "VALID"
	case PageSwapped:
		return "SWAP"
	default:
		return fmt.Sprintf("PageState(%d)", uint8(s))
	}
}

// PTE es una entrada de tabla de páginas. Frame es el número de marco si la
// página está residente, o el slot de swap si está en swap. Mientras Busy está
// en true el resto de los campos no es confiable.
type PTE struct {
	State PageState
	Frame uint32
	Dirty bool
	Busy  bool
}

// Resident arma una entrada válida. Toda página residente se considera modificada.
func Resident(frame uint32) PTE {
	return PTE{State: PageResident, Frame: frame, Dirty: true}
}

func Swapped(slot uint32) PTE {
	return PTE{State: PageSwapped, Frame: slot}
}

// IsZero indica una página que nunca fue tocada.
func (p PTE) IsZero() bool {
	return p.State == PageUnmapped && !p.Busy
}

func (p PTE) Pack() uint32 {
	var w uint32
	switch p.State {
	case PageResident:
		w = PteValid | (p.Frame & PteFrame)
	case PageSwapped:
		w = PteSwap | (p.Frame & PteFrame)
	}
	if p.Dirty {
		w |= PteDirty
	}
	if p.Busy {
		w |= PteBusy
	}
	return w
}

// UnpackPTE reconstruye una entrada a partir de su formato de 32 bits.
func UnpackPTE(w uint32) (PTE, error) {
	var p PTE
	switch {
	case w&PteValid != 0 && w&PteSwap != 0:
		return PTE{}, fmt.Errorf("entrada 0x%08x con VALID y SWAP a la vez", w)
	case w&PteValid != 0:
		p.State = PageResident
		p.Frame = w & PteFrame
	case w&PteSwap != 0:
		p.State = PageSwapped
		p.Frame = w & PteFrame
	case w&PteFrame != 0:
		return PTE{}, fmt.Errorf("entrada 0x%08x sin estado pero con marco", w)
	}
	p.Dirty = w&PteDirty != 0
	p.Busy = w&PteBusy != 0
	return p, nil
}

func (p PTE) String() string {
	s := fmt.Sprintf("%s(%d)", p.State, p.Frame)
	if p.Dirty {
		s += "|DIRTY"
	}
	if p.Busy {
		s += "|BUSY"
	}
	return s
}

type Region uint8

const (
	RegionOne Region = iota
	RegionTwo
	RegionHeap
	RegionStack
)

var Regions = []Region{RegionOne, RegionTwo, RegionHeap, RegionStack}

func (r Region) String() string {
	switch r {
	case RegionOne:
		return "region1"
	case RegionTwo:
		return "region2"
	case RegionHeap:
		return "heap"
	case RegionStack:
		return "stack"
	default:
		return fmt.Sprintf("Region(%d)", uint8(r))
	}
}

// PageRef identifica un slot de tabla de páginas sin depender de dónde está
// guardada la tabla, así el coremap no se entera cuando heap o stack se realocan.
type PageRef struct {
	Region Region
	Index  int
}

func (r PageRef) String() string {
	return fmt.Sprintf("%s[%d]", r.Region, r.Index)
}

// PAddr es una dirección física.
type PAddr uint32

type Perm uint8

const (
	PermRead Perm = 1 << iota
	PermWrite
	PermExec
)

type FaultType int

const (
	FaultRead FaultType = iota
	FaultWrite
	FaultReadOnly
)

func (f FaultType) String() string {
	switch f {
	case FaultRead:
		return "READ"
	case FaultWrite:
		return "WRITE"
	case FaultReadOnly:
		return "READONLY"
	default:
		return fmt.Sprintf("FaultType(%d)", int(f))
	}
}

func ParseFaultType(s string) (FaultType, error) {
	switch s {
	case "READ", "read":
		return FaultRead, nil
	case "WRITE", "write":
		return FaultWrite, nil
	case "READONLY", "readonly":
		return FaultReadOnly, nil
	default:
		return 0, fmt.Errorf("%w: tipo de fallo %q", ErrInvalid, s)
	}
}
