package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/netutil"
)

const (
	shutdownTimeout = 5 * time.Second
	// Cada CPU abre pocas conexiones a la vez; más que esto es un cliente roto.
	MaxConnections = 256
)

// InitServer atiende handler en port hasta que se cancela ctx, con a lo sumo
// MaxConnections conexiones abiertas. Al cancelarse espera a que terminen los
// pedidos en curso y devuelve nil.
//
// Ejemplo:
//
//	func main() {
//		mux := http.NewServeMux()
//		mux.HandleFunc("GET /", handlers.HandshakeHandler("memoria", "Bienvenido"))
//		if err := server.InitServer(ctx, 8002, mux); err != nil {
//			panic(err)
//		}
//	}
func InitServer(ctx context.Context, port int, handler http.Handler) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		slog.Error(fmt.Sprintf("Error al escuchar en el puerto %s: %v", srv.Addr, err))
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(netutil.LimitListener(listener, MaxConnections))
	}()

	select {
	case err := <-errCh:
		slog.Error(fmt.Sprintf("El servidor en %s se detuvo: %v", srv.Addr, err))
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// SendJson escribe data como JSON con el código status.
func SendJson(writer http.ResponseWriter, status int, data any) {
	response, err := json.Marshal(data)
	if err != nil {
		http.Error(writer, "Error al convertir datos a JSON", http.StatusInternalServerError)
		return
	}

	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	writer.Write(response)
}

// SendJsonResponse responde 200 con data en JSON.
func SendJsonResponse(writer http.ResponseWriter, data any) {
	SendJson(writer, http.StatusOK, data)
}
