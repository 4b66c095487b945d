package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// SourceKind says where a configuration value came from.
type SourceKind string

const (
	SourceDefault SourceKind = "default"
	SourceFile    SourceKind = "file"
	SourceEnv     SourceKind = "env"
)

// EnvLogLevel overrides log_level from any file.
const EnvLogLevel = "TASKMAID_LOG_LEVEL"

// Source locates the setting of one key. File, Line and Column are set for
// SourceFile; Name holds the variable for SourceEnv.
type Source struct {
	Kind   SourceKind
	Name   string
	File   string
	Line   int
	Column int
}

// LoadResult is the effective configuration plus where each key was set.
type LoadResult struct {
	Config  *Config
	Sources map[string]Source // key -> file or env that set it last
	Files   []string          // files read, includes before their parent
}

// DefaultConfigPath is $XDG_CONFIG_HOME/taskmaid/config.yaml, falling back
// to ~/.config when XDG_CONFIG_HOME is unset.
func DefaultConfigPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" && filepath.IsAbs(dir) {
		return filepath.Join(dir, "taskmaid", "config.yaml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate config directory: %w", err)
	}
	return filepath.Join(home, ".config", "taskmaid", "config.yaml"), nil
}

// LoadWithSources loads DefaultConfigPath.
func LoadWithSources() (*LoadResult, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads path and its includes, applies TASKMAID_LOG_LEVEL and
// validates the result. A missing file yields the defaults.
func LoadFromPath(path string) (*LoadResult, error) {
	var (
		raw     RawConfig
		sources = map[string]Source{}
		l       = &fileLoader{visited: map[string]bool{}}
	)

	_, err := os.Stat(path)
	switch {
	case err == nil:
		raw, sources, err = l.load(path)
		if err != nil {
			return nil, err
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	if level := os.Getenv(EnvLogLevel); level != "" {
		raw.LogLevel = &level
		sources["log_level"] = Source{Kind: SourceEnv, Name: EnvLogLevel}
	}

	cfg, err := BuildEffectiveConfig(raw)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		return nil, withSource(err, sources)
	}
	return &LoadResult{Config: cfg, Sources: sources, Files: l.files}, nil
}

// fileLoader reads a config file after everything it includes. A file
// reached twice is read once; a file reached from itself is an error.
type fileLoader struct {
	visited map[string]bool
	chain   []string
	files   []string
}

func (l *fileLoader) load(path string) (RawConfig, map[string]Source, error) {
	file := resolveFile(path)
	if slices.Contains(l.chain, file) {
		loop := append(slices.Clone(l.chain), file)
		return RawConfig{}, nil, fmt.Errorf("include cycle: %s", strings.Join(loop, " -> "))
	}
	if l.visited[file] {
		return RawConfig{}, nil, nil
	}
	l.visited[file] = true

	data, err := os.ReadFile(file)
	if err != nil {
		return RawConfig{}, nil, fmt.Errorf("config %s: %w", file, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return RawConfig{}, nil, fmt.Errorf("config %s: %w", file, err)
	}
	own, err := decodeStrict(data)
	if err != nil {
		return RawConfig{}, nil, fmt.Errorf("config %s: %w", file, err)
	}

	l.chain = append(l.chain, file)
	defer func() { l.chain = l.chain[:len(l.chain)-1] }()

	var merged RawConfig
	sources := map[string]Source{}
	keys, includes := scanKeys(&doc, file)
	for _, inc := range includes {
		targets, err := includeTargets(file, inc.Value)
		if err != nil {
			return RawConfig{}, nil, fmt.Errorf("%s:%d:%d: include %q: %w",
				file, inc.Source.Line, inc.Source.Column, inc.Value, err)
		}
		for _, target := range targets {
			incRaw, incSources, err := l.load(target)
			if err != nil {
				return RawConfig{}, nil, err
			}
			merged = merged.merge(incRaw)
			for k, src := range incSources {
				sources[k] = src
			}
		}
	}

	// The including file wins over what it includes.
	merged = merged.merge(own)
	for k, src := range keys {
		sources[k] = src
	}
	l.files = append(l.files, file)
	return merged, sources, nil
}

func decodeStrict(data []byte) (RawConfig, error) {
	var raw RawConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return RawConfig{}, err
	}
	return raw, nil
}

// resolveFile returns the absolute, symlink-free form of path, or the
// absolute form when the link cannot be followed.
func resolveFile(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}

// includeTargets expands one include entry. A directory contributes its
// *.yaml and *.yml files in name order.
func includeTargets(from, include string) ([]string, error) {
	if include == "" {
		return nil, errors.New("empty path")
	}
	if include == "~" || strings.HasPrefix(include, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		include = filepath.Join(home, strings.TrimPrefix(include, "~"))
	}
	if !filepath.IsAbs(include) {
		include = filepath.Join(filepath.Dir(from), include)
	}

	info, err := os.Stat(include)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{include}, nil
	}
	entries, err := os.ReadDir(include)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			if !e.IsDir() {
				out = append(out, filepath.Join(include, e.Name()))
			}
		}
	}
	// ReadDir already sorts by name.
	return out, nil
}

type includeRef struct {
	Value  string
	Source Source
}

// scanKeys records the position of every top-level key in doc and returns
// the include entries separately.
func scanKeys(doc *yaml.Node, file string) (map[string]Source, []includeRef) {
	keys := map[string]Source{}
	root := doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return keys, nil
	}

	at := func(n *yaml.Node) Source {
		return Source{Kind: SourceFile, File: file, Line: n.Line, Column: n.Column}
	}
	var includes []includeRef
	for i := 0; i+1 < len(root.Content); i += 2 {
		name, value := root.Content[i].Value, root.Content[i+1]
		keys[name] = at(value)
		if name != "include" {
			continue
		}
		switch value.Kind {
		case yaml.ScalarNode:
			includes = append(includes, includeRef{Value: value.Value, Source: at(value)})
		case yaml.SequenceNode:
			for _, item := range value.Content {
				if item.Kind == yaml.ScalarNode {
					includes = append(includes, includeRef{Value: item.Value, Source: at(item)})
				}
			}
		}
	}
	return keys, includes
}

// withSource points a ValidationError at the file or variable that set the
// offending key.
func withSource(err error, sources map[string]Source) error {
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Path == "" {
		return err
	}
	if src, ok := sources[verr.Path]; ok {
		verr.Source = src
	}
	return err
}
