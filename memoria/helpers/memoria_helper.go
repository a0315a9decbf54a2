package helpers

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sisoputnfrba/tp-vm-Los-magiOS/memoria/models"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/utils/config"
	"github.com/sisoputnfrba/tp-vm-Los-magiOS/utils/log"
)

// crea un directorio en el path especificado.
func CreateDirectory(dir string) {
	err := os.MkdirAll(dir, os.ModePerm)

	if err != nil {
		slog.Error(fmt.Sprintf("Error al crear el directorio %s: %v", dir, err))
		return
	}

	slog.Debug(fmt.Sprintf("Directorio %s creado o ya existía.", dir))
}

// InitMemory carga y valida la configuración, levanta el logger y prepara los directorios de trabajo.
func InitMemory(configPath string, logPath string) error {
	config.InitConfig(configPath, &models.MemoryConfig)
	if err := log.InitLogger(logPath, models.MemoryConfig.LogLevel); err != nil {
		return err
	}

	if err := config.CheckVersion(models.MemoryConfig.Version, models.ConfigVersionConstraint); err != nil {
		return err
	}
	if err := models.MemoryConfig.Validate(); err != nil {
		return err
	}

	slog.Debug(fmt.Sprintf("Port Memory: %d", models.MemoryConfig.PortMemory))
	CreateDirectory(models.MemoryConfig.DumpPath)
	slog.Debug(fmt.Sprintf("Swap: %s - Páginas: %d", models.MemoryConfig.SwapFilePath, models.MemoryConfig.SwapSize))
	return nil
}

// ReloadConfig vuelve a leer el archivo de configuración y aplica lo que se
// puede cambiar en caliente, que hoy es solo el nivel de log. Devuelve el
// nivel vigente después de la recarga.
func ReloadConfig(configPath string, currentLevel string) string {
	var updated *models.Config
	if err := config.LoadConfig(configPath, &updated); err != nil {
		slog.Warn(fmt.Sprintf("No se pudo recargar %s: %v", configPath, err))
		return currentLevel
	}
	if err := config.CheckVersion(updated.Version, models.ConfigVersionConstraint); err != nil {
		slog.Warn(fmt.Sprintf("Se ignora la recarga de %s: %v", configPath, err))
		return currentLevel
	}
	if updated.LogLevel != currentLevel {
		log.SetLevel(updated.LogLevel)
		slog.Info(fmt.Sprintf("Nivel de log actualizado a %s", updated.LogLevel))
	}
	return updated.LogLevel
}

func GetDumpName(pid uint) string {
	timestamp := time.Now().Format("20060102-150405")
	return fmt.Sprintf("%d-%s.dmp", pid, timestamp)
}
