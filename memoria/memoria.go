package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	cpuServices "github.com/sisoputnfrba/tp-vm-Los-magiOS/cpu/services"
	ioServices "github.com/sisoputnfrba/tp-vm-Los-magiOS/io/services"
	kernelServices "github.com/sisoputnfrba/tp-vm-Los-magiOS/kernel/services"
	memoryHandler "github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/handlers"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/helpers"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/models"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/services"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/utils/config"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/utils/web/handlers"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/utils/web/server"
)

const (
	//NO borrar el comentario de ConfigPath
	ConfigPath = "memoria/configs/memoria.json" //"./configs/memoria.json"
	LogPath    = "./logs/memoria.log"           //"./memoria.log"
)

func main() {
	helpers.CreateDirectory("./logs")
	if err := helpers.InitMemory(ConfigPath, LogPath); err != nil {
		slog.Error(fmt.Sprintf("Configuración de memoria inválida: %v", err))
		os.Exit(1)
	}
	cfg := *models.MemoryConfig

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	disk, err := ioServices.OpenDisk(cfg.SwapFilePath, int64(cfg.SwapSize)*int64(cfg.PageSize))
	if err != nil {
		slog.Error(fmt.Sprintf("No se pudo abrir el swap: %v", err))
		os.Exit(1)
	}
	defer disk.Close()

	mmu := cpuServices.NewMMU(cfg.Cpus, cfg.TlbEntries, uint32(cfg.PageSize), cfg.TlbReplacement)
	mmu.Start(ctx)
	defer mmu.Stop()

	vm, err := services.Boot(cfg, disk, mmu)
	if err != nil {
		slog.Error(fmt.Sprintf("No se pudo iniciar la memoria virtual: %v", err))
		os.Exit(1)
	}
	defer vm.Close()

	if cfg.PageDaemon {
		go vm.RunPageDaemon(ctx)
	}

	logLevel := cfg.LogLevel
	err = config.Watch(ctx, ConfigPath, func() {
		logLevel = helpers.ReloadConfig(ConfigPath, logLevel)
	})
	if err != nil {
		slog.Warn(fmt.Sprintf("No se va a recargar la configuración en caliente: %v", err))
	}

	kernel := kernelServices.NewKernel(vm, mmu)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /", handlers.HandshakeHandler("memoria", "Bienvenido al módulo de Memoria"))
	mux.HandleFunc("GET /memoria", handlers.HandshakeHandler("memoria", "Memoria en funcionamiento 🚀"))
	mux.HandleFunc("GET /config/memoria", memoryHandler.MemoryConfigHandler)
	mux.HandleFunc("GET /memoria/estado", memoryHandler.MemoryStatusHandler(kernel))
	mux.HandleFunc("POST /memoria/proceso", memoryHandler.CreateProcessHandler(kernel))
	mux.HandleFunc("POST /memoria/fork", memoryHandler.ForkProcessHandler(kernel))
	mux.HandleFunc("POST /memoria/finalizar", memoryHandler.EndProcessHandler(kernel))
	mux.HandleFunc("POST /memoria/sbrk", memoryHandler.SbrkHandler(kernel))
	mux.HandleFunc("POST /memoria/fault", memoryHandler.FaultHandler(kernel))
	mux.HandleFunc("POST /memoria/leer", memoryHandler.ReadMemoryHandler(kernel))
	mux.HandleFunc("POST /memoria/escribir", memoryHandler.WriteHandler(kernel))
	mux.HandleFunc("POST /memoria/dump", memoryHandler.DumpMemoryHandler(kernel, cfg.DumpPath))
	slog.Info("Memoria lista")

	if err := server.InitServer(ctx, cfg.PortMemory, mux); err != nil {
		slog.Error(fmt.Sprintf("error initializing server: %v", err))
		os.Exit(1)
	}
	slog.Info("Señal recibida, cerrando módulo Memoria")
	if err := disk.Sync(); err != nil {
		slog.Error(fmt.Sprintf("No se pudo sincronizar el swap: %v", err))
	}
}
