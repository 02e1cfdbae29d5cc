package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/brickingsoft/errors"

	"v8-tagdecoder-go/v8/common"
	"v8-tagdecoder-go/v8/profile"
)

const pkgName = "config"

// Setting names.
const (
	ActiveVersionKey    = "active_version"
	OffsetProfileDirKey = "offset_profile_dir"
	MainCageBaseKey     = "main_cage_base"
)

var ErrNotFound = errors.Define("setting not found")

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Setting describes one known key.
type Setting struct {
	Name        string
	Default     string
	Description string
}

// Settings lists every key the store accepts.
var Settings = []Setting{
	{ActiveVersionKey, "0.0.0", "Active V8 version profile for offsets (e.g., '12.5.212')."},
	{OffsetProfileDirKey, "", "Directory for V8 offset profiles"},
	{MainCageBaseKey, "0x0", "V8 main pointer compression heap cage base address (hex)"},
}

func lookupSetting(name string) (Setting, bool) {
	for _, s := range Settings {
		if s.Name == name {
			return s, true
		}
	}
	return Setting{}, false
}

// Provider is the read side of the store, which is all the decoder needs.
type Provider interface {
	Get(key string) (string, error)
}

// Store keeps settings in a TOML file. A missing file means every setting
// has its default value.
type Store struct {
	path   string
	values map[string]string
}

// DefaultPath returns <user config dir>/v8tag/config.toml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "v8tag", "config.toml")
}

// Open loads the store at path.
func Open(path string) (*Store, error) {
	s := &Store{path: path, values: make(map[string]string)}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			Log.Debugf("config file %s not found, using defaults", path)
			return s, nil
		}
		return nil, fmt.Errorf("cannot stat %s: %w", path, err)
	}
	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	for k, v := range raw {
		if _, ok := lookupSetting(k); !ok {
			Log.Warningf("ignoring unknown setting %q in %s", k, path)
			continue
		}
		value, err := settingValue(k, v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		s.values[k] = value
	}
	return s, nil
}

// settingValue accepts hand-written TOML scalars as well as strings, so
// main_cage_base = 0x555553000000 and active_version = "12.5" both load.
func settingValue(key string, v any) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case int64:
		if key == MainCageBaseKey {
			if v < 0 {
				return "", common.ConfigurationError(pkgName, "load", fmt.Sprintf("%s is negative", key))
			}
			return common.Hex(uint64(v)), nil
		}
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", common.ConfigurationError(pkgName, "load",
			fmt.Sprintf("%s must be a string, got %T", key, v))
	}
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Get returns the value of key, or its default when unset.
func (s *Store) Get(key string) (string, error) {
	setting, ok := lookupSetting(key)
	if !ok {
		return "", errors.From(ErrNotFound, errors.WithDescription(key), errors.WithMeta(common.ErrMetaOpKey, "lookup"))
	}
	if v, ok := s.values[key]; ok {
		return v, nil
	}
	return setting.Default, nil
}

// Set stores value under key and rewrites the file. An empty value removes
// the key, so it reads back as its default.
func (s *Store) Set(key, value string) error {
	if _, ok := lookupSetting(key); !ok {
		return errors.From(ErrNotFound, errors.WithDescription(key), errors.WithMeta(common.ErrMetaOpKey, "lookup"))
	}
	if value == "" {
		delete(s.values, key)
		return s.save()
	}
	if key == MainCageBaseKey {
		if _, err := ParseHex(value); err != nil {
			return err
		}
	}
	s.values[key] = value
	return s.save()
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".config-*.toml")
	if err != nil {
		return fmt.Errorf("cannot write %s: %w", s.path, err)
	}
	defer os.Remove(tmp.Name())
	if err := toml.NewEncoder(tmp).Encode(s.values); err != nil {
		tmp.Close()
		return fmt.Errorf("cannot encode settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("cannot replace %s: %w", s.path, err)
	}
	Log.Debugf("saved %d settings to %s", len(s.values), s.path)
	return nil
}

// All returns every known setting with its current value, sorted by name.
func (s *Store) All() [][2]string {
	out := make([][2]string, 0, len(Settings))
	for _, setting := range Settings {
		v, _ := s.Get(setting.Name)
		out = append(out, [2]string{setting.Name, v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// ActiveVersion returns the configured profile name.
func ActiveVersion(p Provider) string {
	v, err := p.Get(ActiveVersionKey)
	if err != nil || v == "" {
		return profile.DefaultVersion
	}
	return v
}

// MainCageBase returns the configured cage base. Zero means unset.
func MainCageBase(p Provider) (uint64, error) {
	v, err := p.Get(MainCageBaseKey)
	if err != nil {
		return 0, common.ConfigurationError(pkgName, "main_cage_base", common.Describe(err))
	}
	return ParseHex(v)
}

// ParseHex parses a hex address with or without a 0x prefix.
func ParseHex(v string) (uint64, error) {
	lit := strings.TrimSpace(v)
	lit = strings.TrimPrefix(strings.TrimPrefix(lit, "0x"), "0X")
	n, err := strconv.ParseUint(lit, 16, 64)
	if err != nil {
		return 0, common.ConfigurationError(pkgName, "parse_hex",
			fmt.Sprintf("%q is not a hex address", v))
	}
	return n, nil
}
