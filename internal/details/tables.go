package details

import (
	"encoding/json"
	"fmt"
	"os"
)

// Flag is a country flag as an emoji and its code points.
type Flag struct {
	Emoji   string `json:"emoji"`
	Unicode string `json:"unicode"`
}

// Currency describes a country's currency.
type Currency struct {
	Code   string `json:"code"`
	Symbol string `json:"symbol,omitempty"`
}

// Continent is a continent code and display name.
type Continent struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Tables holds reference data keyed by ISO 3166-1 alpha-2 country code.
// Every table is optional; a missing entry falls back to built-in data.
type Tables struct {
	Countries  map[string]string
	EU         []string
	Flags      map[string]Flag
	Currencies map[string]Currency
	Continents map[string]Continent
}

// TablePaths names the JSON files LoadTables reads. Empty paths are skipped.
type TablePaths struct {
	Countries  string
	EU         string
	Flags      string
	Currencies string
	Continents string
}

// LoadTables reads the reference files named in paths.
func LoadTables(paths TablePaths) (*Tables, error) {
	t := &Tables{}
	for _, f := range []struct {
		path string
		dst  any
	}{
		{paths.Countries, &t.Countries},
		{paths.EU, &t.EU},
		{paths.Flags, &t.Flags},
		{paths.Currencies, &t.Currencies},
		{paths.Continents, &t.Continents},
	} {
		if f.path == "" {
			continue
		}
		if err := readJSON(f.path, f.dst); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read reference table: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse reference table %s: %w", path, err)
	}
	return nil
}
