package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is loaded from the working directory when present.
const DefaultEnvFile = ".env"

// ApplyEnv loads envFile (DefaultEnvFile when empty) into the process
// environment and applies the environment overrides to cfg. Variables that
// are already set win over the file. A missing default env file is ignored;
// a missing explicit one is an error.
func ApplyEnv(cfg *Config, envFile string) error {
	path := envFile
	if path == "" {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if envFile != "" || !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	if v := os.Getenv(EnvWebDriverURL); v != "" {
		cfg.WebDriverURL = v
	}
	return nil
}
