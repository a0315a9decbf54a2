package services

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/sisoputnfrba/tp-vm-Los-magiOS/cpu/models"
	memoriaModel "github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/models"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *MemoryClient {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	p, _ := strconv.Atoi(port)
	return NewMemoryClient(&models.Config{IpMemory: host, PortMemory: p})
}

func TestMemoryClient_RequestMemoryConfig(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /config/memoria", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.MemoryConfig{PageSize: 4096, MaxHeapPages: 32})
	})
	c := newTestClient(t, mux)

	if err := c.RequestMemoryConfig(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if models.MemConfig == nil || models.MemConfig.PageSize != 4096 {
		t.Errorf("Expected page size 4096, got %+v", models.MemConfig)
	}
}

func TestMemoryClient_Process(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /memoria/proceso", func(w http.ResponseWriter, r *http.Request) {
		var req memoriaModel.ProcessRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Regions) != 1 || req.Regions[0].VAddr != 0x400000 {
			http.Error(w, "regiones inesperadas", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(memoriaModel.ProcessResponse{PID: 5, StackPointer: memoriaModel.UserStack})
	})
	mux.HandleFunc("POST /memoria/sbrk", func(w http.ResponseWriter, r *http.Request) {
		var req memoriaModel.SbrkRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(memoriaModel.SbrkResponse{OldBreak: 0x401000 + uint32(req.Delta)})
	})
	mux.HandleFunc("POST /memoria/leer", func(w http.ResponseWriter, r *http.Request) {
		var req memoriaModel.ReadRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(memoriaModel.ReadResponse{Data: make([]byte, req.Size)})
	})
	c := newTestClient(t, mux)

	proc, err := c.CreateProcess([]memoriaModel.RegionRequest{{VAddr: 0x400000, Size: 100}})
	if err != nil || proc.PID != 5 {
		t.Fatalf("Expected PID 5, got %+v (%v)", proc, err)
	}
	old, err := c.Sbrk(5, 16)
	if err != nil || old != 0x401010 {
		t.Errorf("Expected 0x401010, got 0x%x (%v)", old, err)
	}
	data, err := c.Read(5, 0x401000, 10)
	if err != nil || len(data) != 10 {
		t.Errorf("Expected 10 bytes, got %d (%v)", len(data), err)
	}
}

func TestMemoryClient_ErrorStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /memoria/finalizar", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no existe", http.StatusNotFound)
	})
	c := newTestClient(t, mux)

	if err := c.Finish(9); err == nil {
		t.Error("Expected error for unknown process, got nil")
	}
}
