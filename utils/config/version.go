package config

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// CheckVersion verifica que la versión declarada en un archivo de configuración
// cumpla la restricción que acepta el módulo.
//
// Ejemplo:
//
//	err := config.CheckVersion(models.MemoryConfig.Version, ">= 1.0.0, < 2.0.0")
func CheckVersion(version string, constraint string) error {
	if version == "" {
		return fmt.Errorf("el archivo de configuración no declara \"version\"")
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("versión de configuración inválida %q: %w", version, err)
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("restricción de versión inválida %q: %w", constraint, err)
	}
	if !c.Check(v) {
		return fmt.Errorf("la versión de configuración %s no cumple %s", v, constraint)
	}
	return nil
}
