package models

type RegionRequest struct {
	VAddr uint32 `json:"vaddr"`
	Size  uint32 `json:"size"`
	Perms Perm   `json:"perms"`
}

type ProcessRequest struct {
	Regions []RegionRequest `json:"regions"`
}

type ProcessResponse struct {
	PID          uint   `json:"pid"`
	StackPointer uint32 `json:"stack_pointer"`
}

type PIDRequest struct {
	PID uint `json:"pid"`
}

type SbrkRequest struct {
	PID   uint  `json:"pid"`
	Delta int32 `json:"delta"`
}

type SbrkResponse struct {
	OldBreak uint32 `json:"old_break"`
}

type FaultRequest struct {
	PID     uint   `json:"pid"`
	Type    string `json:"type"`
	Address uint32 `json:"address"`
}

type ReadRequest struct {
	PID     uint   `json:"pid"`
	Address uint32 `json:"address"`
	Size    int    `json:"size"`
}

type ReadResponse struct {
	Data []byte `json:"data"`
}

type WriteRequest struct {
	PID     uint   `json:"pid"`
	Address uint32 `json:"address"`
	Data    []byte `json:"data"`
}

type DumpResponse struct {
	File string `json:"file"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// PageTableEntry es una fila del volcado de tabla de páginas de un proceso.
type PageTableEntry struct {
	Region Region `json:"region"`
	Index  int    `json:"index"`
	VAddr  uint32 `json:"vaddr"`
	Raw    uint32 `json:"raw"`
}

type CoremapStats struct {
	Frames   int `json:"frames"`
	Free     int `json:"free"`
	Kernel   int `json:"kernel"`
	User     int `json:"user"`
	Busy     int `json:"busy"`
	UserBase int `json:"user_base"`
}

type SwapStats struct {
	Slots int  `json:"slots"`
	Used  int  `json:"used"`
	Full  bool `json:"full"`
}

type VMStats struct {
	Coremap       CoremapStats `json:"coremap"`
	Swap          SwapStats    `json:"swap"`
	AddressSpaces int64        `json:"address_spaces"`
	Faults        uint64       `json:"faults"`
	ZeroFills     uint64       `json:"zero_fills"`
	SwapIns       uint64       `json:"swap_ins"`
	SwapOuts      uint64       `json:"swap_outs"`
	TLBInstalls   uint64       `json:"tlb_installs"`
}
