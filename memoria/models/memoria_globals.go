package models

import (
	"fmt"
	"math/bits"
)

type Config struct {
	Version             string `json:"version"`
	PortMemory          int    `json:"port_memory"`
	MemorySize          int    `json:"memory_size"`
	PageSize            int    `json:"page_size"`
	BootPages           int    `json:"boot_pages"`
	ReservedKernelPages int    `json:"reserved_kernel_pages"`
	SwapFilePath        string `json:"swap_file_path"`
	SwapSize            int    `json:"swap_size"` // en páginas
	MaxHeapPages        int    `json:"max_heap_pages"`
	MaxStackPages       int    `json:"max_stack_pages"`
	MinHeapPages        int    `json:"min_heap_pages"`
	MinStackPages       int    `json:"min_stack_pages"`
	TlbEntries          int    `json:"tlb_entries"`
	TlbReplacement      string `json:"tlb_replacement"`
	Cpus                int    `json:"cpus"`
	PageDaemon          bool   `json:"page_daemon"`
	DaemonInterval      int    `json:"daemon_interval"` // en milisegundos
	LowWatermark        int    `json:"low_watermark"`
	LogLevel            string `json:"log_level"`
	DumpPath            string `json:"dump_path"`
}

// ConfigVersionConstraint es el rango de versiones de memoria.json que entiende este binario.
const ConfigVersionConstraint = ">= 1.0.0, < 2.0.0"

// Frames devuelve la cantidad de marcos de memoria física.
func (c *Config) Frames() int {
	return c.MemorySize / c.PageSize
}

// Validate chequea que los valores del archivo de configuración sean coherentes entre sí.
func (c *Config) Validate() error {
	if c.PageSize <= 0 || bits.OnesCount(uint(c.PageSize)) != 1 {
		return fmt.Errorf("page_size %d debe ser potencia de 2", c.PageSize)
	}
	if c.MemorySize <= 0 || c.MemorySize%c.PageSize != 0 {
		return fmt.Errorf("memory_size %d debe ser múltiplo de page_size", c.MemorySize)
	}
	if c.Frames() > int(PteFrame)+1 {
		return fmt.Errorf("memory_size %d excede los %d marcos direccionables", c.MemorySize, int(PteFrame)+1)
	}
	if c.BootPages < 0 || c.ReservedKernelPages < 0 || c.BootPages+c.ReservedKernelPages >= c.Frames() {
		return fmt.Errorf("boot_pages + reserved_kernel_pages deben dejar marcos para usuario")
	}
	if c.SwapSize <= 0 || c.SwapSize > int(PteFrame)+1 {
		return fmt.Errorf("swap_size %d fuera de rango", c.SwapSize)
	}
	if c.MinHeapPages <= 0 || c.MinStackPages <= 0 {
		return fmt.Errorf("min_heap_pages y min_stack_pages deben ser positivos")
	}
	if c.MaxHeapPages < c.MinHeapPages || c.MaxStackPages < c.MinStackPages {
		return fmt.Errorf("los máximos de heap y stack no pueden ser menores a los mínimos")
	}
	if uint64(c.MaxStackPages)*uint64(c.PageSize) >= uint64(UserStack) {
		return fmt.Errorf("max_stack_pages %d no entra debajo de USERSTACK", c.MaxStackPages)
	}
	return nil
}

var MemoryConfig *Config
