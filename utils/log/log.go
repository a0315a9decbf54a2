package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var levelVar slog.LevelVar

// InitLogger deja como logger por defecto uno que escribe en consola y en
// logPath a la vez. El nivel queda en levelVar para que SetLevel lo cambie
// sin reconstruir el handler.
//
// Ejemplo:
//
//	func main() {
//		if err := log.InitLogger("./logs/memoria.log", "INFO"); err != nil {
//			panic(err)
//		}
//	}
func InitLogger(logPath string, logLevel string) error {
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666)
	if err != nil {
		return fmt.Errorf("abriendo %s: %w", logPath, err)
	}

	slog.SetDefault(slog.New(NewHandler(io.MultiWriter(os.Stdout, logFile))))
	SetLevel(logLevel)
	slog.Debug(fmt.Sprintf("Logger listo en %s", logPath))
	return nil
}

// NewHandler arma el handler de texto que usan todos los módulos sobre w.
func NewHandler(w io.Writer) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: &levelVar})
}

// SetLevel cambia el nivel de log del logger ya inicializado. Un nivel
// desconocido deja INFO y lo avisa.
func SetLevel(logLevel string) {
	level, err := parseLevel(logLevel)
	levelVar.Set(level)
	if err != nil {
		slog.Warn(err.Error())
	}
}

// BuildLogPath arma la ruta ./logs/<nombre>.log creando el directorio si hace falta.
//
// Ejemplo:
//
//	path, err := log.BuildLogPath("cpu_%s", "1") // ./logs/cpu_1.log
func BuildLogPath(format string, args ...any) (string, error) {
	if err := os.MkdirAll("./logs", os.ModePerm); err != nil {
		return "", err
	}
	return filepath.Join("./logs", fmt.Sprintf(format, args...)+".log"), nil
}

func parseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("no existe el nivel de log %q, se usa INFO", levelStr)
	}
}
