package plugins

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"gopkg.in/yaml.v3"
)

const goPresetFuncName = "Presets"

// LoadGoPresetDir evaluates every .go file in dir and collects the presets
// returned by its Presets() function.
func LoadGoPresetDir(dir string) ([]PresetFile, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("plugin: read %s: %w", trimmed, err)
	}
	var presets []PresetFile
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".go" {
			continue
		}
		filePresets, err := loadGoPresetFile(filepath.Join(trimmed, entry.Name()))
		if err != nil {
			return nil, err
		}
		presets = append(presets, filePresets...)
	}
	if len(presets) == 0 {
		return nil, nil
	}
	sort.Slice(presets, func(i, j int) bool { return presets[i].Path < presets[j].Path })
	return presets, nil
}

func loadGoPresetFile(path string) ([]PresetFile, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plugin: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, fmt.Errorf("plugin: %s is empty", path)
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("plugin: load stdlib symbols: %w", err)
	}
	if _, err := i.EvalPath(path); err != nil {
		return nil, fmt.Errorf("plugin: interpret %s: %w", path, err)
	}
	fnValue, err := i.Eval(goPresetFuncName)
	if err != nil {
		return nil, fmt.Errorf("plugin: %s must define %s() ([]map[string]any, error): %w", path, goPresetFuncName, err)
	}
	raw, callErr := invokePresetFunc(fnValue)
	if callErr != nil {
		return nil, fmt.Errorf("plugin: %s: %w", path, callErr)
	}
	files := make([]PresetFile, 0, len(raw))
	for idx, entry := range raw {
		payload, err := yaml.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("plugin: %s preset[%d]: %w", path, idx, err)
		}
		parsed, err := ParsePresetYAML(payload)
		if err != nil {
			return nil, fmt.Errorf("plugin: %s preset[%d]: %w", path, idx, err)
		}
		files = append(files, PresetFile{Preset: parsed, Path: fmt.Sprintf("%s#%d", path, idx+1)})
	}
	return files, nil
}

func invokePresetFunc(fn reflect.Value) ([]map[string]any, error) {
	if !fn.IsValid() {
		return nil, fmt.Errorf("missing %s function", goPresetFuncName)
	}
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", goPresetFuncName)
	}
	results := fn.Call(nil)
	if len(results) == 0 || len(results) > 2 {
		return nil, fmt.Errorf("%s must return ([]map[string]any[, error])", goPresetFuncName)
	}
	if len(results) == 2 && !results[1].IsNil() {
		if e, ok := results[1].Interface().(error); ok && e != nil {
			return nil, e
		}
		return nil, fmt.Errorf("%s returned non-error second value", goPresetFuncName)
	}
	value := results[0]
	if presets, ok := value.Interface().([]map[string]any); ok {
		return presets, nil
	}
	if value.Kind() != reflect.Slice {
		return nil, fmt.Errorf("%s must return []map[string]any", goPresetFuncName)
	}
	out := make([]map[string]any, value.Len())
	for i := 0; i < value.Len(); i++ {
		m, ok := value.Index(i).Interface().(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is not map[string]any", goPresetFuncName, i)
		}
		out[i] = m
	}
	return out, nil
}
