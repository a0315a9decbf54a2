package services

//go:generate mockgen -destination=mock_block_device_test.go -package=services github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/services BlockDevice

// BlockDevice es el dispositivo crudo donde vive el área de swap. Se accede
// siempre de a páginas completas en el offset slot*page_size.
type BlockDevice interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Size() int64
}

// Shootdown invalida, en todas las CPUs, las traducciones que apuntan a un
// marco físico. Debe volver recién cuando todas confirmaron.
type Shootdown interface {
	InvalidateFrame(paddr uint32)
}

// TLB es la caché de traducciones de una CPU.
type TLB interface {
	Write(vaddr, paddr uint32)
	// Access ejecuta fn con la dirección física de vaddr mientras la traducción
	// sigue instalada. Devuelve false si no hay traducción.
	Access(vaddr uint32, fn func(paddr uint32)) bool
	InvalidateAll()
}

// Thread es el hilo que está corriendo cuando ocurre un fallo de página.
type Thread interface {
	AddressSpace() *AddressSpace
	TLB() TLB
}
