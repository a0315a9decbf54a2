package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sisoputnfrba/tp-vm-Los-magiOS/cpu/models"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/cpu/services"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/utils/config"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/utils/log"
)

const (
	//NO borrar el comentario de ConfigPath
	ConfigPath = "cpu/configs/cpu.json" //"./configs/cpu.json"
)

func main() {
	idCpu := "0"
	if len(os.Args) > 1 {
		idCpu = os.Args[1]
	}

	config.InitConfig(ConfigPath, &models.CpuConfig)

	logPath, err := log.BuildLogPath("cpu_%s", idCpu)
	if err != nil {
		slog.Error("No se pudo construir el log path", "err", err)
		return
	}
	if err := log.InitLogger(logPath, models.CpuConfig.LogLevel); err != nil {
		slog.Error(fmt.Sprintf("No se pudo iniciar el logger: %v", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	memory := services.NewMemoryClient(models.CpuConfig)
	if err := memory.RequestMemoryConfig(); err != nil {
		os.Exit(1)
	}

	results, err := services.RunWorkload(ctx, memory, models.CpuConfig, models.MemConfig.PageSize)
	for _, r := range results {
		slog.Info(fmt.Sprintf("## PID: %d - Páginas: %d - Lecturas verificadas: %d", r.PID, r.Pages, r.Verified))
	}
	if err != nil {
		slog.Error(fmt.Sprintf("CPU %s: la carga de trabajo falló: %v", idCpu, err))
		os.Exit(1)
	}
	slog.Info(fmt.Sprintf("CPU %s: carga de trabajo completada", idCpu))
}
