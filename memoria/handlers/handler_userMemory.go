package handlers

import (
	"fmt"
	"net/http"

	kernelServices "github.com/sisoputnfrba/tp-vm-Los-magiOS/kernel/services"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/models"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/utils/web/server"
)

func SbrkHandler(kernel *kernelServices.Kernel) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.SbrkRequest
		if !decodeRequest(w, r, &req) {
			return
		}

		old, err := kernel.Sbrk(req.PID, req.Delta)
		if err != nil {
			sendError(w, err)
			return
		}
		server.SendJsonResponse(w, models.SbrkResponse{OldBreak: old})
	}
}

// FaultHandler simula un fallo de TLB del proceso.
func FaultHandler(kernel *kernelServices.Kernel) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.FaultRequest
		if !decodeRequest(w, r, &req) {
			return
		}

		kind, err := models.ParseFaultType(req.Type)
		if err != nil {
			sendError(w, err)
			return
		}
		// Ninguna página se mapea de solo lectura, así que este fallo no puede venir de un proceso.
		if kind == models.FaultReadOnly {
			sendError(w, fmt.Errorf("%w: fallo READONLY", models.ErrInvalid))
			return
		}

		if err := kernel.Fault(r.Context(), req.PID, kind, req.Address); err != nil {
			sendError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func ReadMemoryHandler(kernel *kernelServices.Kernel) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ReadRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		if req.Size < 0 {
			sendError(w, fmt.Errorf("%w: tamaño %d", models.ErrInvalid, req.Size))
			return
		}

		data, err := kernel.Read(r.Context(), req.PID, req.Address, req.Size)
		if err != nil {
			sendError(w, err)
			return
		}
		server.SendJsonResponse(w, models.ReadResponse{Data: data})
	}
}

func WriteHandler(kernel *kernelServices.Kernel) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.WriteRequest
		if !decodeRequest(w, r, &req) {
			return
		}

		if err := kernel.Write(r.Context(), req.PID, req.Address, req.Data); err != nil {
			sendError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
