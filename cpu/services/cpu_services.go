package services

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sisoputnfrba/tp-vm-Los-magiOS/cpu/models"
	memoriaModel "github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/models"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/utils/web/client"
)

// MemoryClient habla con el módulo de memoria por HTTP.
type MemoryClient struct {
	Ip   string
	Port int
}

func NewMemoryClient(cpuConfig *models.Config) *MemoryClient {
	return &MemoryClient{Ip: cpuConfig.IpMemory, Port: cpuConfig.PortMemory}
}

// post envía req como JSON y, si resp no es nil, decodifica la respuesta en resp.
func (c *MemoryClient) post(query string, req any, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	response, err := client.DoRequest(c.Port, c.Ip, "POST", query, body)
	if err != nil {
		return fmt.Errorf("%s: %w", query, err)
	}
	defer response.Body.Close()

	if resp == nil {
		return nil
	}
	return json.NewDecoder(response.Body).Decode(resp)
}

func (c *MemoryClient) RequestMemoryConfig() error {
	resp, err := client.DoRequest(c.Port, c.Ip, "GET", "config/memoria")
	if err != nil {
		slog.Error("Error solicitando configuración de Memoria")
		return err
	}
	defer resp.Body.Close()

	var config models.MemoryConfig
	if err := json.NewDecoder(resp.Body).Decode(&config); err != nil {
		slog.Error("Error decodificando configuración de Memoria")
		return err
	}

	models.MemConfig = &config
	slog.Debug("MemConfig cargada", slog.Any("config", models.MemConfig))
	return nil
}

func (c *MemoryClient) CreateProcess(regions []memoriaModel.RegionRequest) (memoriaModel.ProcessResponse, error) {
	var resp memoriaModel.ProcessResponse
	err := c.post("memoria/proceso", memoriaModel.ProcessRequest{Regions: regions}, &resp)
	return resp, err
}

func (c *MemoryClient) Fork(pid uint) (memoriaModel.ProcessResponse, error) {
	var resp memoriaModel.ProcessResponse
	err := c.post("memoria/fork", memoriaModel.PIDRequest{PID: pid}, &resp)
	return resp, err
}

func (c *MemoryClient) Finish(pid uint) error {
	return c.post("memoria/finalizar", memoriaModel.PIDRequest{PID: pid}, nil)
}

func (c *MemoryClient) Sbrk(pid uint, delta int32) (uint32, error) {
	var resp memoriaModel.SbrkResponse
	err := c.post("memoria/sbrk", memoriaModel.SbrkRequest{PID: pid, Delta: delta}, &resp)
	return resp.OldBreak, err
}

func (c *MemoryClient) Write(pid uint, address uint32, data []byte) error {
	return c.post("memoria/escribir", memoriaModel.WriteRequest{PID: pid, Address: address, Data: data}, nil)
}

func (c *MemoryClient) Read(pid uint, address uint32, size int) ([]byte, error) {
	var resp memoriaModel.ReadResponse
	err := c.post("memoria/leer", memoriaModel.ReadRequest{PID: pid, Address: address, Size: size}, &resp)
	return resp.Data, err
}
