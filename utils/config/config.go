package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// InitConfig carga filePath en config y entra en pánico si no puede. Se usa al
// arrancar un módulo, donde sin configuración no hay nada que hacer.
//
// Ejemplo:
//
//	func main() {
//		config.InitConfig("./memoria/configs/memoria.json", &models.MemoryConfig)
//	}
func InitConfig(filePath string, config any) {
	if err := LoadConfig(filePath, config); err != nil {
		panic(err)
	}
}

// LoadConfig decodifica el JSON de filePath en config, que tiene que ser un
// puntero. Un archivo con más de un documento JSON se rechaza.
func LoadConfig(filePath string, config any) error {
	configFile, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("error al abrir la configuración: %w", err)
	}
	defer configFile.Close()

	decoder := json.NewDecoder(configFile)
	if err := decoder.Decode(config); err != nil {
		return fmt.Errorf("error al leer %s: %w", filePath, err)
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("error al leer %s: contenido de más después del JSON", filePath)
	}
	return nil
}
