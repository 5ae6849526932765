package fetch

import (
	"fmt"
	"reflect"
	"sync"

	"dario.cat/mergo"
)

var (
	defaultsMu sync.RWMutex
	defaults   Config
)

// flagTransformer lets any non-nil *bool win a merge, including an explicit
// false. mergo would otherwise skip it as an empty value.
type flagTransformer struct{}

var flagType = reflect.TypeOf((*bool)(nil))

func (flagTransformer) Transformer(t reflect.Type) func(dst, src reflect.Value) error {
	if t != flagType {
		return nil
	}
	return func(dst, src reflect.Value) error {
		if !src.IsNil() && dst.CanSet() {
			dst.Set(src)
		}
		return nil
	}
}

func merge(dst *Config, src Config) error {
	return mergo.Merge(dst, cloneConfig(src), mergo.WithOverride, mergo.WithTransformers(flagTransformer{}))
}

// SetDefaults merges cfg into the process-wide defaults. Non-zero fields and
// non-nil flags of cfg win; maps are merged key by key.
func SetDefaults(cfg Config) error {
	defaultsMu.Lock()
	defer defaultsMu.Unlock()

	merged := cloneConfig(defaults)
	if err := merge(&merged, cfg); err != nil {
		return fmt.Errorf("failed to merge fetch defaults: %w", err)
	}
	defaults = merged
	return nil
}

// Defaults returns a copy of the process-wide defaults.
func Defaults() Config {
	defaultsMu.RLock()
	defer defaultsMu.RUnlock()
	return cloneConfig(defaults)
}

// ResetDefaults clears the process-wide defaults.
func ResetDefaults() {
	defaultsMu.Lock()
	defaults = Config{}
	defaultsMu.Unlock()
}

// withDefaults layers explicit over the current defaults.
func withDefaults(explicit Config) (Config, error) {
	base := Defaults()
	if err := merge(&base, explicit); err != nil {
		return Config{}, fmt.Errorf("failed to apply fetch defaults: %w", err)
	}
	return base, nil
}
