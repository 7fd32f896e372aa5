package strategy

import (
	"log"
	"strconv"
)

// Merge resolves one strategy instance's effective parameters (spec.md
// §4.D): schema defaults, overridden by the strategy's `_Global` overlay
// section, overridden by the account's own overlay section, overridden by
// one-shot caller overrides (e.g. a UI "run once with these values" call).
// A value present but uncoercible to its schema type is logged and the
// schema default is kept, mirroring config_loader.go's
// tolerate-bad-config-entries-without-aborting-startup posture.
func Merge(schema Schema, global, account, overrides map[string]any) Params {
	out := make(Params, len(schema))
	for name, spec := range schema {
		out[name] = spec.Default
	}
	for name, spec := range schema {
		if v, ok := global[name]; ok {
			if coerced, ok := coerce(spec.Type, v); ok {
				out[name] = coerced
			} else {
				log.Printf("strategy: param %q global override %v is not a valid %s, using default %v", name, v, spec.Type, spec.Default)
			}
		}
	}
	for name, spec := range schema {
		if v, ok := account[name]; ok {
			if coerced, ok := coerce(spec.Type, v); ok {
				out[name] = coerced
			} else {
				log.Printf("strategy: param %q account override %v is not a valid %s, using default %v", name, v, spec.Type, spec.Default)
				out[name] = spec.Default
			}
		}
	}
	for name, spec := range schema {
		if v, ok := overrides[name]; ok {
			if coerced, ok := coerce(spec.Type, v); ok {
				out[name] = coerced
			} else {
				log.Printf("strategy: param %q one-shot override %v is not a valid %s, using default %v", name, v, spec.Type, spec.Default)
				out[name] = spec.Default
			}
		}
	}
	return out
}

// coerce converts a raw YAML/JSON-decoded value (string, float64, bool,
// int) into the Go type Params.Int/Float/Bool/String expect.
func coerce(t ParamType, v any) (any, bool) {
	switch t {
	case ParamInt:
		switch n := v.(type) {
		case int:
			return n, true
		case int64:
			return int(n), true
		case float64:
			return int(n), true
		case string:
			i, err := strconv.Atoi(n)
			return i, err == nil
		}
	case ParamFloat:
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case string:
			f, err := strconv.ParseFloat(n, 64)
			return f, err == nil
		}
	case ParamBool:
		switch n := v.(type) {
		case bool:
			return n, true
		case string:
			b, err := strconv.ParseBool(n)
			return b, err == nil
		}
	case ParamString:
		if s, ok := v.(string); ok {
			return s, true
		}
	}
	return nil, false
}
