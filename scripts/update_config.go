package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
)

// Para su uso se debe posicionar en la carpeta scripts
// > ./update_config ip_memory 192.168.1.100
// > ./update_config memory_size 2097152 swap_size 4096
// > ./update_config log_level DEBUG page_daemon true
//
// Si un archivo tiene "version" y se modifica, se incrementa el patch salvo
// que la versión venga explícitamente entre los valores a actualizar.

func main() {
	// Verificar que se pasen argumentos en pares: clave1 valor1 clave2 valor2 ...
	if len(os.Args) < 3 || len(os.Args)%2 != 1 {
		fmt.Println("Uso: update_config <clave_1> <valor_1> [<clave_2> <valor_2> ...]")
		fmt.Println("Ejemplo: update_config ip_memory 192.168.0.10 log_level DEBUG")
		return
	}

	updates, err := parseUpdates(os.Args[1:])
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	fmt.Println("Valores a actualizar:")
	for k, v := range updates {
		fmt.Printf("  %s: %v\n", k, v)
	}

	// Definimos las carpetas de los módulos que queremos procesar.
	modules := []string{"cpu", "memoria"}

	for _, module := range modules {
		moduleConfigPath := filepath.Join("..", module, "configs")
		fmt.Printf("\nProcesando módulo: %s (en %s)\n", module, moduleConfigPath)

		err := filepath.Walk(moduleConfigPath, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				fmt.Printf("  Error al acceder %s: %v\n", path, err)
				return nil
			}
			if info.IsDir() || filepath.Ext(path) != ".json" {
				return nil
			}
			if err := updateFile(path, updates); err != nil {
				fmt.Printf("  %v\n", err)
			}
			return nil
		})

		if err != nil {
			fmt.Printf("Error al buscar archivos en la carpeta %s: %v\n", moduleConfigPath, err)
		}
	}

	fmt.Println("\nProceso de actualización de configuraciones finalizado.")
}

// parseUpdates arma el mapa clave -> valor. Cada valor se interpreta como JSON
// (números, booleanos) y si no lo es se toma como string.
func parseUpdates(args []string) (map[string]interface{}, error) {
	updates := make(map[string]interface{})
	for i := 0; i+1 < len(args); i += 2 {
		key, valueStr := args[i], args[i+1]

		var parsedValue interface{}
		if err := json.Unmarshal([]byte(valueStr), &parsedValue); err != nil {
			parsedValue = valueStr
		}
		if key == "version" {
			if _, err := semver.NewVersion(valueStr); err != nil {
				return nil, fmt.Errorf("versión inválida %q: %w", valueStr, err)
			}
			parsedValue = valueStr
		}
		updates[key] = parsedValue
	}
	return updates, nil
}

// applyUpdates modifica las claves existentes de data y devuelve si cambió algo.
func applyUpdates(data map[string]interface{}, updates map[string]interface{}) (bool, error) {
	modified := false
	for updateKey, updateValue := range updates {
		if _, ok := data[updateKey]; ok {
			data[updateKey] = updateValue
			modified = true
		}
	}

	_, explicitVersion := updates["version"]
	current, hasVersion := data["version"].(string)
	if modified && hasVersion && !explicitVersion {
		v, err := semver.NewVersion(current)
		if err != nil {
			return modified, fmt.Errorf("versión inválida %q: %w", current, err)
		}
		data["version"] = v.IncPatch().String()
	}
	return modified, nil
}

func updateFile(path string, updates map[string]interface{}) error {
	fileContent, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error al leer el archivo %s: %w", path, err)
	}

	var data map[string]interface{}
	if err := json.Unmarshal(fileContent, &data); err != nil {
		return fmt.Errorf("error al parsear JSON en el archivo %s: %w", path, err)
	}

	modified, err := applyUpdates(data, updates)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if !modified {
		fmt.Printf("  No se encontraron claves a actualizar en %s.\n", path)
		return nil
	}

	newJSON, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("error al serializar JSON en el archivo %s: %w", path, err)
	}
	if err := os.WriteFile(path, newJSON, 0644); err != nil {
		return fmt.Errorf("error al escribir el archivo %s: %w", path, err)
	}
	fmt.Printf("  El archivo %s ha sido actualizado correctamente.\n", path)
	return nil
}
