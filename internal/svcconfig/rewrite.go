package svcconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"relocate/internal/config"
	"relocate/internal/fileutil"
)

// Result describes what Apply did.
type Result struct {
	Changed  bool
	Backup   string
	Previous string
}

// Current returns the string value stored under the rewrite key.
func Current(rw config.ConfigRewrite) (string, bool, error) {
	if rw.Kind == config.RewriteNone {
		return "", false, nil
	}
	doc, _, err := load(rw)
	if err != nil {
		return "", false, err
	}
	return lookup(doc, splitKey(rw.Key))
}

// Apply points the rewrite key at value. An existing file is backed up under
// a timestamped name before it is replaced. A file that already holds value
// is left untouched.
func Apply(rw config.ConfigRewrite, value string, now time.Time) (Result, error) {
	if rw.Kind == config.RewriteNone {
		return Result{}, nil
	}
	doc, mode, err := load(rw)
	if err != nil {
		return Result{}, err
	}
	keys := splitKey(rw.Key)
	previous, found, err := lookup(doc, keys)
	if err != nil {
		return Result{}, err
	}
	if found && previous == value {
		return Result{Previous: previous}, nil
	}
	if err := assign(doc, keys, value); err != nil {
		return Result{}, fmt.Errorf("%s: %w", rw.Path, err)
	}
	data, err := encode(rw.Kind, doc)
	if err != nil {
		return Result{}, fmt.Errorf("encode %s: %w", rw.Path, err)
	}

	backup, err := fileutil.Backup(rw.Path, now)
	if err != nil {
		return Result{}, err
	}
	if err := fileutil.WriteFileAtomic(rw.Path, data, mode); err != nil {
		return Result{}, err
	}
	return Result{Changed: true, Backup: backup, Previous: previous}, nil
}

func load(rw config.ConfigRewrite) (map[string]any, os.FileMode, error) {
	mode := os.FileMode(0o644)
	data, err := os.ReadFile(rw.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, mode, nil
		}
		return nil, 0, fmt.Errorf("read %s: %w", rw.Path, err)
	}
	if info, err := os.Stat(rw.Path); err == nil {
		mode = info.Mode().Perm()
	}
	doc := map[string]any{}
	if strings.TrimSpace(string(data)) == "" {
		return doc, mode, nil
	}
	switch rw.Kind {
	case config.RewriteJSON:
		err = json.Unmarshal(data, &doc)
	case config.RewriteTOML:
		err = toml.Unmarshal(data, &doc)
	default:
		return nil, 0, fmt.Errorf("unsupported config kind %q", rw.Kind)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("parse %s: %w", rw.Path, err)
	}
	return doc, mode, nil
}

func encode(kind string, doc map[string]any) ([]byte, error) {
	switch kind {
	case config.RewriteJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case config.RewriteTOML:
		return toml.Marshal(doc)
	default:
		return nil, fmt.Errorf("unsupported config kind %q", kind)
	}
}

// splitKey turns "plugins.cri.root" into its path segments. JSON keys with
// dashes such as "data-root" stay whole.
func splitKey(key string) []string {
	return strings.Split(key, ".")
}

func lookup(doc map[string]any, keys []string) (string, bool, error) {
	current := doc
	for i, key := range keys {
		value, ok := current[key]
		if !ok {
			return "", false, nil
		}
		if i == len(keys)-1 {
			s, ok := value.(string)
			if !ok {
				return "", false, fmt.Errorf("key %q holds %T, want string", strings.Join(keys, "."), value)
			}
			return s, true, nil
		}
		next, ok := value.(map[string]any)
		if !ok {
			return "", false, fmt.Errorf("key %q is not a table", strings.Join(keys[:i+1], "."))
		}
		current = next
	}
	return "", false, nil
}

func assign(doc map[string]any, keys []string, value string) error {
	current := doc
	for i, key := range keys[:len(keys)-1] {
		next, ok := current[key]
		if !ok {
			table := map[string]any{}
			current[key] = table
			current = table
			continue
		}
		table, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("key %q is not a table", strings.Join(keys[:i+1], "."))
		}
		current = table
	}
	current[keys[len(keys)-1]] = value
	return nil
}
