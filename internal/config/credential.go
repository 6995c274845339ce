package config

import (
	"os"
	"strings"
)

// EnvCredential reads the secondary provider credential from the named
// environment variable each time it is asked, so key rotation needs no restart.
type EnvCredential string

// Credential returns the trimmed value of the environment variable.
func (e EnvCredential) Credential() string {
	if e == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(string(e)))
}
