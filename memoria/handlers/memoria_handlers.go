package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	kernelServices "github.com/sisoputnfrba/tp-vm-Los-magiOS/kernel/services"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/models"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/utils/web/server"
)

// MemoryConfigHandler devuelve la configuración de memoria que necesita la CPU.
func MemoryConfigHandler(w http.ResponseWriter, r *http.Request) {
	server.SendJsonResponse(w, models.MemoryConfig)
}

// MemoryStatusHandler devuelve el estado del coremap, del swap y los contadores de fallos.
func MemoryStatusHandler(kernel *kernelServices.Kernel) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		server.SendJsonResponse(w, kernel.VM().Stats())
	}
}

// decodeRequest decodifica el body JSON en req. Si falla ya respondió 400.
func decodeRequest(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		slog.Error("Invalid request", "error", err)
		server.SendJson(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request"})
		return false
	}
	return true
}

// statusFor traduce los errores de memoria a códigos HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNoProcess):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNoMemory):
		return http.StatusInsufficientStorage
	case errors.Is(err, models.ErrBadAddress), errors.Is(err, models.ErrInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func sendError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("Error en memoria", "error", err)
	} else {
		slog.Debug("Pedido rechazado", "status", status, "error", err)
	}

	server.SendJson(w, status, models.ErrorResponse{Error: err.Error()})
}
