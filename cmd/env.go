package main

import (
	"fmt"
	"maps"
	"os"

	"github.com/desertthunder/spotexport/internal/shared"
	"github.com/joho/godotenv"
)

var envKeys = []string{"CLIENT_ID", "CLIENT_SECRET", "REDIRECT_URI", "PAGE_SIZE"}

// loadEnv reads the .env file at path and overlays the process environment, which wins.
// A missing file is not an error.
func loadEnv(path string) (map[string]string, error) {
	env := map[string]string{}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			values, err := godotenv.Read(path)
			if err != nil {
				return nil, fmt.Errorf("%w: failed to read %s: %v", shared.ErrInvalidConfig, path, err)
			}
			maps.Copy(env, values)
		}
	}

	for _, key := range envKeys {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			env[key] = v
		}
	}
	return env, nil
}
