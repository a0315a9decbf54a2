package models

import (
	memoriaModel "github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/models"
	memoriaServices "github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/services"
)

// Marcos contiguos de kernel que se reservan como stack de kernel de cada proceso.
const KernelStackPages = 2

type Process struct {
	PID          uint
	ParentPID    int // -1 para procesos sin padre
	AS           *memoriaServices.AddressSpace
	KernelStack  memoriaModel.PAddr
	StackPointer uint32
}
