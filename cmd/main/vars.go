package main

import (
	"fmt"
	"os"

	"github.com/CTAG07/gentpl/pkg/codegen"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// loadVarSets reads a YAML (or JSON) list of variable sets. Each entry is
// either a plain map of variables or a map with "vars" and "context" keys.
func loadVarSets(path string) ([]codegen.VarSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read variables file: %w", err)
	}
	return parseVarSets(data)
}

func parseVarSets(data []byte) ([]codegen.VarSet, error) {
	var entries []map[string]any
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("could not parse variables file: %w", err)
	}

	sets := make([]codegen.VarSet, 0, len(entries))
	for i, entry := range entries {
		set, err := toVarSet(entry)
		if err != nil {
			return nil, fmt.Errorf("variable set %d: %w", i, err)
		}
		sets = append(sets, set)
	}
	return sets, nil
}

func toVarSet(entry map[string]any) (codegen.VarSet, error) {
	if !isStructured(entry) {
		return codegen.VarSet{Vars: entry}, nil
	}

	var set codegen.VarSet
	if raw, ok := entry["vars"]; ok {
		vars, err := cast.ToStringMapE(raw)
		if err != nil {
			return set, fmt.Errorf("vars: %w", err)
		}
		set.Vars = vars
	}
	if raw, ok := entry["context"]; ok {
		byTemplate, err := cast.ToStringMapE(raw)
		if err != nil {
			return set, fmt.Errorf("context: %w", err)
		}
		set.Context = make(map[string]map[string]any, len(byTemplate))
		for id, v := range byTemplate {
			vars, err := cast.ToStringMapE(v)
			if err != nil {
				return set, fmt.Errorf("context %s: %w", id, err)
			}
			set.Context[id] = vars
		}
	}
	return set, nil
}

// isStructured reports whether entry uses the vars/context form rather than
// being a plain variable map.
func isStructured(entry map[string]any) bool {
	if _, ok := entry["vars"]; !ok {
		if _, ok := entry["context"]; !ok {
			return false
		}
	}
	for k := range entry {
		if k != "vars" && k != "context" {
			return false
		}
	}
	return true
}
