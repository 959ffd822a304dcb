package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	// ADWDir is the name of the per-project adw directory.
	ADWDir = ".adw"
	// EnvFileName is the name of the environment variables file.
	EnvFileName = ".env"
)

// LoadDotEnv loads baseDir/.env and baseDir/.adw/.env when present.
// godotenv.Load never overrides variables that are already set, so the
// process environment wins over both files, and .env wins over .adw/.env.
func LoadDotEnv(baseDir string) error {
	var errs []error
	for _, p := range []string{
		filepath.Join(baseDir, EnvFileName),
		filepath.Join(baseDir, ADWDir, EnvFileName),
	} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// LoadDotEnvFromCwd loads .env files relative to the working directory.
func LoadDotEnvFromCwd() error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	return LoadDotEnv(cwd)
}
