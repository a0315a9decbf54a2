package models

import "errors"

type Config struct {
	IpMemory   string `json:"ip_memory"`
	PortMemory int    `json:"port_memory"`
	Workers    int    `json:"workers"`
	Iterations int    `json:"iterations"`
	HeapPages  int    `json:"heap_pages"`
	RegionBase uint32 `json:"region_base"`
	RegionSize uint32 `json:"region_size"`
	ForkEvery  int    `json:"fork_every"`
	LogLevel   string `json:"log_level"`
}

var CpuConfig *Config

// TLBEntry es una traducción de página virtual a página física.
type TLBEntry struct {
	Valid bool
	VPage uint32
	PPage uint32
}

// MemoryConfig son los datos de memoria que la CPU necesita para armar direcciones.
type MemoryConfig struct {
	PageSize     int `json:"page_size"`
	MaxHeapPages int `json:"max_heap_pages"`
}

var MemConfig *MemoryConfig

// Resultado de un proceso de prueba.
type WorkerResult struct {
	PID      uint
	Pages    int
	Verified int
}

// DEFINICION DE ERRORES
var ErrMismatch = errors.New("el contenido leído no coincide con el escrito")
