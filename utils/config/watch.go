package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch llama a onChange cada vez que se escribe o se reemplaza el archivo
// filePath, hasta que se cancele ctx. Se observa el directorio y no el archivo
// porque muchos editores guardan creando un archivo nuevo.
func Watch(ctx context.Context, filePath string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("no se pudo crear el watcher: %w", err)
	}

	target := filepath.Clean(filePath)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return fmt.Errorf("no se pudo observar %s: %w", filePath, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					slog.Debug("Cambio en archivo de configuración", "archivo", event.Name, "evento", event.Op.String())
					onChange()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn(fmt.Sprintf("Error observando %s: %v", filePath, err))
			}
		}
	}()
	return nil
}
