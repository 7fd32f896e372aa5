// Package iniconfig reads and writes the sectioned key=value config file
// format described in spec.md §6: a DEFAULT section plus one section per
// account (master{n}, slave{n}) and per strategy ({strategyName}_Global,
// {accountId}_{strategyName}).
//
// No ini library exists anywhere in the example pack (every pack repo that
// reads structured config uses either raw environment variables or
// gopkg.in/yaml.v3), and the spec's symbol_map grammar
// ("master->rule:text,master2->rule2:text2") doesn't map cleanly onto YAML
// without inventing a schema the spec doesn't describe, so this is a small
// hand-rolled scanner in the style of the teacher's pkg/config typed-getter
// helpers.
package iniconfig

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// File is a parsed config file: an ordered list of section names plus their
// key=value pairs.
type File struct {
	order    []string
	sections map[string]map[string]string
}

// New returns an empty File, ready for Set + Save.
func New() *File {
	return &File{sections: make(map[string]map[string]string)}
}

// Load reads and parses path. A missing file is not an error; it returns an
// empty File so callers can apply defaults (spec.md §7: "Parse/config error:
// fall back to documented default... never abort startup").
func Load(path string) (*File, error) {
	f := New()

	fh, err := os.Open(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer fh.Close()

	section := "DEFAULT"
	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			f.ensureSection(section)
			continue
		}
		idx := strings.Index(line, "=")
		if idx == -1 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		f.ensureSection(section)
		f.sections[section][key] = val
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan config %s: %w", path, err)
	}
	return f, nil
}

func (f *File) ensureSection(name string) {
	if _, ok := f.sections[name]; !ok {
		f.sections[name] = make(map[string]string)
		f.order = append(f.order, name)
	}
}

// Sections returns all section names in file order.
func (f *File) Sections() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// SectionsWithPrefix returns section names starting with prefix, sorted.
func (f *File) SectionsWithPrefix(prefix string) []string {
	var out []string
	for _, s := range f.order {
		if strings.HasPrefix(s, prefix) {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// Set stores a value, creating the section if needed.
func (f *File) Set(section, key, value string) {
	f.ensureSection(section)
	f.sections[section][key] = value
}

// GetString returns a value or def if missing.
func (f *File) GetString(section, key, def string) string {
	if m, ok := f.sections[section]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return def
}

// GetInt parses an int value, falling back to def on absence or parse error.
func (f *File) GetInt(section, key string, def int) int {
	v := f.GetString(section, key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// GetFloat parses a float value, falling back to def on absence or parse error.
func (f *File) GetFloat(section, key string, def float64) float64 {
	v := f.GetString(section, key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return n
}

// GetBool parses a bool value ("true"/"false"/"1"/"0"), falling back to def.
func (f *File) GetBool(section, key string, def bool) bool {
	v := strings.ToLower(f.GetString(section, key, ""))
	switch v {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return def
	}
}

// Save writes the file back to disk in section order.
func (f *File) Save(path string) error {
	var b strings.Builder
	for _, section := range f.order {
		fmt.Fprintf(&b, "[%s]\n", section)
		keys := make([]string, 0, len(f.sections[section]))
		for k := range f.sections[section] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "%s = %s\n", k, f.sections[section][k])
		}
		b.WriteString("\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0o600)
}
