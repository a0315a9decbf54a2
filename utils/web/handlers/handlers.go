package handlers

import (
	"net/http"
	"time"

	"github.com/sisoputnfrba/tp-vm-Los-magiOS/utils/web/server"
)

// Handshake es la respuesta de HandshakeHandler.
type Handshake struct {
	Module  string `json:"modulo"`
	Message string `json:"mensaje"`
	Uptime  string `json:"uptime"`
}

// HandshakeHandler se usa para chequear la conexión a un módulo. Responde el
// nombre del módulo, el mensaje y hace cuánto está levantado.
func HandshakeHandler(module string, message string) http.HandlerFunc {
	started := time.Now()
	return func(writer http.ResponseWriter, request *http.Request) {
		server.SendJsonResponse(writer, Handshake{
			Module:  module,
			Message: message,
			Uptime:  time.Since(started).Round(time.Second).String(),
		})
	}
}
