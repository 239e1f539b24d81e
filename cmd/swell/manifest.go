package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"swell/internal/program"
)

// manifest mirrors swell.toml.
type manifest struct {
	Build   buildSection      `toml:"build"`
	Aliases map[string]string `toml:"aliases"`
}

type buildSection struct {
	Target        string   `toml:"target"`
	NoTreeShaking bool     `toml:"noTreeShaking"`
	NoAssert      bool     `toml:"noAssert"`
	ImportMemory  bool     `toml:"importMemory"`
	ImportTable   bool     `toml:"importTable"`
	SourceMap     bool     `toml:"sourceMap"`
	MemoryBase    uint32   `toml:"memoryBase"`
	Features      []string `toml:"features"`
}

// loadManifest reads swell.toml when present; a missing file yields
// defaults.
func loadManifest(path string) (*manifest, error) {
	var m manifest
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &m, nil
		}
		return nil, err
	}
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &m, nil
}

// toOptions converts the manifest into compiler options.
func (m *manifest) toOptions() (*program.Options, error) {
	opts := &program.Options{
		NoTreeShaking: m.Build.NoTreeShaking,
		NoAssert:      m.Build.NoAssert,
		ImportMemory:  m.Build.ImportMemory,
		ImportTable:   m.Build.ImportTable,
		SourceMap:     m.Build.SourceMap,
		MemoryBase:    m.Build.MemoryBase,
		GlobalAliases: m.Aliases,
	}
	switch m.Build.Target {
	case "", "wasm32":
		opts.Target = program.TargetWasm32
	case "wasm64":
		opts.Target = program.TargetWasm64
	default:
		return nil, fmt.Errorf("unknown target %q", m.Build.Target)
	}
	for _, f := range m.Build.Features {
		switch f {
		case "sign-extension":
			opts.Features |= program.FeatureSignExtension
		case "mutable-global":
			opts.Features |= program.FeatureMutableGlobal
		default:
			return nil, fmt.Errorf("unknown feature %q", f)
		}
	}
	return opts, nil
}
