package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Server ServerConfig
	Log    LogConfig
}

// LoadDotEnv reads ENV_FILE (default .env) into the process environment.
// Variables already set win over the file. A missing default file is not an error.
func LoadDotEnv() error {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		if _, err := os.Stat(".env"); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		path = ".env"
	}
	return godotenv.Load(path)
}

func LoadApp() (AppConfig, error) {
	if err := LoadDotEnv(); err != nil {
		return AppConfig{}, err
	}
	logCfg, err := LoadLog()
	if err != nil {
		return AppConfig{}, err
	}
	serverCfg, err := LoadServer()
	if err != nil {
		return AppConfig{}, err
	}
	return AppConfig{
		Server: serverCfg,
		Log:    logCfg,
	}, nil
}
