package config

import (
	"encoding/json"
	"os"
)

// rawEnv reads an environment variable directly, bypassing viper — used
// for the superuser list because it is a JSON array, not a scalar viper
// binding.
func rawEnv(key string) string {
	return os.Getenv(key)
}

// parseSuperusers decodes the JSON array of {iss, sub} bootstrap
// superusers. An empty/unset value is not an error — it simply means no
// superuser is configured yet.
func parseSuperusers(raw string) ([]Superuser, error) {
	if raw == "" {
		return nil, nil
	}
	var out []Superuser
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}
