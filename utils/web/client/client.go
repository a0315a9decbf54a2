package client

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Timeout de cada pedido entre módulos. Un fallo con swap lento puede tardar,
// pero nunca tanto.
const RequestTimeout = 10 * time.Second

var httpClient = &http.Client{Timeout: RequestTimeout}

// StatusError es la respuesta de un servidor que contestó con un código distinto de 200.
// Body guarda lo que el servidor mandó para explicar el error.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d %s", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("status %d %s: %s", e.Code, http.StatusText(e.Code), e.Body)
}

// DoRequest hace un pedido HTTP a ip:port/query con body opcional en JSON.
//
// Si el servidor contesta algo distinto de 200 el body ya viene leído y cerrado
// dentro de un *StatusError, y la respuesta es nil.
//
// Ejemplo:
//
//	func main() {
//		response, err := client.DoRequest(8002, "127.0.0.1", "GET", "config/memoria")
//		if err != nil {
//			slog.Error(fmt.Sprintf("Ocurrió un error: %v", err))
//			return
//		}
//		defer response.Body.Close()
//	}
func DoRequest(port int, ip string, method string, query string, bodies ...[]byte) (*http.Response, error) {
	url := fmt.Sprintf("http://%s:%d/%s", ip, port, query)

	var body io.Reader
	if len(bodies) > 0 && bodies[0] != nil {
		body = bytes.NewReader(bodies[0])
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		slog.Error(fmt.Sprintf("error creando request a ip: %s puerto: %d", ip, port))
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	response, err := httpClient.Do(req)
	if err != nil {
		slog.Error(fmt.Sprintf("error enviando request a ip: %s puerto: %d - %v", ip, port, err))
		return nil, err
	}

	if response.StatusCode != http.StatusOK {
		defer response.Body.Close()
		detail, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		statusErr := &StatusError{Code: response.StatusCode, Body: string(bytes.TrimSpace(detail))}
		slog.Debug(fmt.Sprintf("%s %s - %v", method, query, statusErr))
		return nil, statusErr
	}
	return response, nil
}
