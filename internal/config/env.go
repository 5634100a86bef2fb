// Package config loads settings from the environment.
package config

import (
	"github.com/joho/godotenv"
)

// LoadEnv loads a .env file from the working directory, or the given files,
// into the process environment. Variables already set are not overridden.
// The returned error satisfies os.IsNotExist when a file is missing.
func LoadEnv(files ...string) error {
	return godotenv.Load(files...)
}
