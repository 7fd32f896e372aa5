// Package strategyconfig loads the YAML parameter overlay file that backs
// strategy parameter merging (spec.md §4.D): a `{strategyName}_Global`
// section shared by every account running that strategy, and a
// `{accountId}_{strategyName}` section specific to one account.
//
// Grounded on internal/strategy/config_loader.go's yaml.v3-backed Config
// loader, generalized from "one strategy_instances row per entry" to
// "one named parameter-map section per entry" since the overlay here has
// no database-backed instance table (spec.md's strategy instances are
// purely in-memory, owned by the Runtime).
package strategyconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Overlay is the parsed parameter-overlay file: section name -> raw values.
type Overlay struct {
	Sections map[string]map[string]any
}

// Load reads an overlay file. A missing file yields an empty Overlay rather
// than an error, consistent with pkg/iniconfig's never-abort-startup policy.
func Load(path string) (*Overlay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Overlay{Sections: map[string]map[string]any{}}, nil
		}
		return nil, fmt.Errorf("strategyconfig: read %s: %w", path, err)
	}
	var raw map[string]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("strategyconfig: parse %s: %w", path, err)
	}
	if raw == nil {
		raw = map[string]map[string]any{}
	}
	return &Overlay{Sections: raw}, nil
}

// GlobalSection returns the `{strategyName}_Global` section, or nil.
func (o *Overlay) GlobalSection(strategyName string) map[string]any {
	return o.Sections[strategyName+"_Global"]
}

// AccountSection returns the `{accountId}_{strategyName}` section, or nil.
func (o *Overlay) AccountSection(accountID, strategyName string) map[string]any {
	return o.Sections[accountID+"_"+strategyName]
}

// Save writes the overlay back to disk.
func (o *Overlay) Save(path string) error {
	data, err := yaml.Marshal(o.Sections)
	if err != nil {
		return fmt.Errorf("strategyconfig: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// SetAccountSection replaces a per-account overlay section wholesale.
func (o *Overlay) SetAccountSection(accountID, strategyName string, values map[string]any) {
	if o.Sections == nil {
		o.Sections = map[string]map[string]any{}
	}
	o.Sections[accountID+"_"+strategyName] = values
}
