package main

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/BurntSushi/toml"

	"github.com/TheDaniel166/IsopGem-sub012/spreadsheet"
)

// Config is the TOML configuration for gridcalc. the ciphers section
// defines letter-value tables that become callable spreadsheet functions,
// one per cipher.
type Config struct {
	Grid    GridConfig              `toml:"grid"`
	Ciphers map[string]CipherConfig `toml:"ciphers"`
}

// GridConfig seeds the in-memory grid with raw cell text keyed by
// reference, e.g. A1 = "=SUM(B1:B3)"
type GridConfig struct {
	Cells map[string]string `toml:"cells"`
}

// CipherConfig describes one letter-value cipher
type CipherConfig struct {
	Category    string             `toml:"category"`
	Description string             `toml:"description"`
	Values      map[string]float64 `toml:"values"`
}

// LoadConfig reads and validates a TOML config file
func LoadConfig(path string) (*Config, error) {
	var config Config
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	for name, cipher := range config.Ciphers {
		if len(cipher.Values) == 0 {
			return nil, fmt.Errorf("cipher %s has no letter values", name)
		}
		for letter := range cipher.Values {
			if len([]rune(letter)) != 1 {
				return nil, fmt.Errorf("cipher %s: key %q must be a single character", name, letter)
			}
		}
	}

	return &config, nil
}

// ApplyGrid loads the configured cells into a grid
func (c *Config) ApplyGrid(grid *spreadsheet.MemGrid) error {
	for ref, raw := range c.Grid.Cells {
		col, row, err := spreadsheet.ParseRef(ref)
		if err != nil {
			return fmt.Errorf("grid cell %q: %w", ref, err)
		}
		grid.SetCell(row, col, raw)
	}
	return nil
}

// RegisterCiphers registers each configured cipher as a one-argument
// function that sums the letter values of its text argument. unmapped
// characters count zero, so punctuation and spaces are free.
func (c *Config) RegisterCiphers(registry *spreadsheet.FunctionRegistry) error {
	for name, cipher := range c.Ciphers {
		values := make(map[rune]float64, len(cipher.Values))
		for letter, value := range cipher.Values {
			values[unicode.ToUpper([]rune(letter)[0])] = value
		}

		meta := spreadsheet.FunctionMetadata{
			Name:        name,
			Category:    cipher.Category,
			Description: cipher.Description,
			MinArgs:     1,
			MaxArgs:     1,
		}
		if meta.Category == "" {
			meta.Category = "Cipher"
		}

		fn := func(args ...spreadsheet.Primitive) (spreadsheet.Primitive, error) {
			text, ok := args[0].(string)
			if !ok {
				return spreadsheet.NewSpreadsheetError(spreadsheet.ErrorCodeValue, "cipher functions take text"), nil
			}
			total := 0.0
			for _, ch := range strings.ToUpper(text) {
				total += values[ch]
			}
			return total, nil
		}

		if err := registry.Register(meta, fn); err != nil {
			return fmt.Errorf("registering cipher %s: %w", name, err)
		}
	}
	return nil
}
