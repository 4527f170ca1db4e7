// Package catalog loads the word bank and slot paytable.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/DoyleJ11/arcade-sessions/internal/engine"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type Symbol struct {
	Name   string `yaml:"name"`
	Glyph  string `yaml:"glyph"`
	Pair   int64  `yaml:"pair"`
	Triple int64  `yaml:"triple"`
}

type Catalog struct {
	Symbols []Symbol `yaml:"symbols"`
	Words   []string `yaml:"words"`
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// Load reads a catalog file; an empty path yields the embedded default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for i, w := range c.Words {
		c.Words[i] = strings.ToLower(strings.TrimSpace(w))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) Validate() error {
	var errs []error
	if len(c.Symbols) < engine.MinSymbols {
		errs = append(errs, fmt.Errorf("need at least %d symbols, have %d", engine.MinSymbols, len(c.Symbols)))
	}
	seen := make(map[string]bool, len(c.Symbols))
	for _, s := range c.Symbols {
		if s.Name == "" {
			errs = append(errs, errors.New("symbol without name"))
			continue
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("duplicate symbol %q", s.Name))
		}
		seen[s.Name] = true
		if s.Pair < 0 || s.Triple < 0 {
			errs = append(errs, fmt.Errorf("symbol %q: negative multiplier", s.Name))
		}
	}
	if len(c.Words) == 0 {
		errs = append(errs, errors.New("word bank is empty"))
	}
	for _, w := range c.Words {
		if _, _, err := engine.NewWordGame("catalog", w, 1); err != nil {
			errs = append(errs, fmt.Errorf("word %q: %w", w, err))
		}
	}
	return multierr.Combine(errs...)
}

func (c *Catalog) Paytable() engine.Paytable {
	pt := engine.Paytable{Payouts: make(map[engine.Symbol]engine.Payout, len(c.Symbols))}
	for _, s := range c.Symbols {
		sym := engine.Symbol(s.Name)
		pt.Symbols = append(pt.Symbols, sym)
		pt.Payouts[sym] = engine.Payout{Pair: s.Pair, Triple: s.Triple}
	}
	return pt
}

// Glyphs maps symbol names to their display glyph.
func (c *Catalog) Glyphs() map[engine.Symbol]string {
	out := make(map[engine.Symbol]string, len(c.Symbols))
	for _, s := range c.Symbols {
		out[engine.Symbol(s.Name)] = s.Glyph
	}
	return out
}

func (c *Catalog) RandomWord() string {
	return c.Words[rand.IntN(len(c.Words))]
}
