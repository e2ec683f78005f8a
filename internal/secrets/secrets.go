package secrets

import (
	"fmt"
	"os"
	"sort"

	"github.com/joho/godotenv"
)

// Parse reads a dotenv file without touching the process environment.
func Parse(path string) (map[string]string, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}
	return vars, nil
}

// Apply loads the file into the process environment. Variables that are
// already set keep their values. It returns the sorted names it set.
func Apply(path string) ([]string, error) {
	vars, err := Parse(path)
	if err != nil {
		return nil, err
	}
	var set []string
	for k := range vars {
		if _, exists := os.LookupEnv(k); !exists {
			set = append(set, k)
		}
	}
	sort.Strings(set)
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("loading env file %s: %w", path, err)
	}
	return set, nil
}
