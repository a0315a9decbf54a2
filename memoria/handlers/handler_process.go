package handlers

import (
	"net/http"

	kernelServices "github.com/sisoputnfrba/tp-vm-Los-magiOS/kernel/services"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/models"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/utils/web/server"
)

// CreateProcessHandler crea un proceso con las regiones recibidas.
func CreateProcessHandler(kernel *kernelServices.Kernel) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ProcessRequest
		if !decodeRequest(w, r, &req) {
			return
		}

		process, err := kernel.Spawn(req.Regions)
		if err != nil {
			sendError(w, err)
			return
		}
		server.SendJsonResponse(w, models.ProcessResponse{PID: process.PID, StackPointer: process.StackPointer})
	}
}

func ForkProcessHandler(kernel *kernelServices.Kernel) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.PIDRequest
		if !decodeRequest(w, r, &req) {
			return
		}

		child, err := kernel.Fork(req.PID)
		if err != nil {
			sendError(w, err)
			return
		}
		server.SendJsonResponse(w, models.ProcessResponse{PID: child.PID, StackPointer: child.StackPointer})
	}
}

// EndProcessHandler libera toda la memoria del proceso.
func EndProcessHandler(kernel *kernelServices.Kernel) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.PIDRequest
		if !decodeRequest(w, r, &req) {
			return
		}

		if err := kernel.Exit(req.PID); err != nil {
			sendError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
