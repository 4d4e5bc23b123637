// Package rcparams holds the worker's plotting defaults, keyed the way chart
// scripts expect ("figure.figsize", "axes.grid", ...). Values are kept as
// strings because that is how they cross the boundary to the controller.
package rcparams

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chartbridge/chartbridge/internal/files"
)

// OverlayFileName is looked up from the working directory upward when no
// explicit rc file is given.
const OverlayFileName = "chartbridge-rc.toml"

type Params struct {
	values map[string]string
}

// Defaults returns a parameter set seeded with the built-in plotting defaults.
func Defaults() *Params {
	return &Params{values: map[string]string{
		"axes.grid":         "True",
		"axes.titlesize":    "large",
		"figure.dpi":        "96",
		"figure.facecolor":  "white",
		"figure.figsize":    "6.4, 4.8",
		"font.family":       "sans-serif",
		"font.size":         "10.0",
		"legend.border":     "False",
		"legend.loc":        "upper right",
		"lines.linestyle":   "solid",
		"lines.linewidth":   "1.5",
		"plot.drawstyle":    "auto",
		"savefig.format":    "svg",
		"xtick.labelsize":   "medium",
		"ytick.labelsize":   "medium",
	}}
}

// Locate finds the overlay file for the given working directory, or "" if
// there is none.
func Locate(dir string) string {
	return files.FindUp(OverlayFileName, dir)
}

// LoadFile overlays parameters from a TOML file. Nested tables flatten into
// dotted keys, and every leaf value is stringified.
func (p *Params) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading rc file: %w", err)
	}
	var raw map[string]any
	if err := toml.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("parsing rc file %s: %w", path, err)
	}
	flatten("", raw, p.values)
	return nil
}

// Set assigns one parameter, overwriting any previous value.
func (p *Params) Set(key, value string) {
	p.values[key] = value
}

// Get looks up one parameter.
func (p *Params) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Snapshot returns a copy of the full parameter map, safe for the caller to
// hand across the boundary.
func (p *Params) Snapshot() map[string]string {
	out := make(map[string]string, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// Keys returns all parameter keys in sorted order.
func (p *Params) Keys() []string {
	keys := make([]string, 0, len(p.values))
	for k := range p.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func flatten(prefix string, raw map[string]any, into map[string]string) {
	for k, v := range raw {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if table, ok := v.(map[string]any); ok {
			flatten(key, table, into)
			continue
		}
		into[key] = stringify(v)
	}
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "True"
		}
		return "False"
	case []any:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = stringify(e)
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}
