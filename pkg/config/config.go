// Package config handles godex.toml runtime configuration.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"

	"github.com/daimatz/godex/pkg/interp"
)

var log = commonlog.GetLogger("godex.config")

// FileName is the configuration file looked up next to the program.
const FileName = "godex.toml"

// Config is the contents of a godex.toml file.
type Config struct {
	Interpreter Interpreter `toml:"interpreter"`
	Runtime     Runtime     `toml:"runtime"`
	Log         Log         `toml:"log"`

	// Path is the file the configuration was read from, empty for defaults.
	Path string `toml:"-"`
}

// Interpreter configures the dispatch loop.
type Interpreter struct {
	Engine       string   `toml:"engine"`
	AccessChecks bool     `toml:"access_checks"`
	MaxDepth     int      `toml:"max_depth"`
	StackSize    ByteSize `toml:"stack_size"`
}

// Runtime configures the collaborators around the interpreter.
type Runtime struct {
	Started bool `toml:"started"`
	// HeapLimit caps live allocation; zero means unlimited.
	HeapLimit    ByteSize `toml:"heap_limit"`
	JITThreshold uint32   `toml:"jit_threshold"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// ByteSize is a byte count written either as an integer or as a
// human-readable size such as "8 MiB".
type ByteSize uint64

func (b *ByteSize) UnmarshalText(text []byte) error {
	n, err := humanize.ParseBytes(strings.TrimSpace(string(text)))
	if err != nil {
		return errors.Wrapf(err, "bad byte size %q", text)
	}
	*b = ByteSize(n)
	return nil
}

// MarshalText writes the human-readable form when it round-trips exactly.
func (b ByteSize) MarshalText() ([]byte, error) {
	if n, err := humanize.ParseBytes(b.String()); err == nil && n == uint64(b) {
		return []byte(b.String()), nil
	}
	return []byte(strconv.FormatUint(uint64(b), 10)), nil
}

func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	opts := interp.DefaultOptions()
	return &Config{
		Interpreter: Interpreter{
			Engine:       opts.Engine.String(),
			AccessChecks: opts.AccessChecks,
			MaxDepth:     opts.MaxDepth,
			StackSize:    ByteSize(opts.StackSize),
		},
		Runtime: Runtime{
			Started:      opts.Started,
			JITThreshold: 10000,
		},
	}
}

// Load reads the configuration at path. Keys missing from the file keep
// their defaults; unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", path)
	}
	c, err := Parse(string(data))
	if err != nil {
		return nil, errors.Wrapf(err, "parse error in %s", path)
	}
	c.Path = path
	log.Debugf("loaded %s", path)
	return c, nil
}

// Parse decodes a configuration document over the defaults.
func Parse(doc string) (*Config, error) {
	c := Default()
	md, err := toml.Decode(doc, c)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// FindAndLoad loads FileName from dir when present and returns the defaults
// otherwise.
func FindAndLoad(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, errors.Wrapf(err, "cannot stat %s", path)
	}
	return Load(path)
}

// Validate checks ranges and names.
func (c *Config) Validate() error {
	if _, err := interp.ParseEngine(c.Interpreter.Engine); err != nil {
		return errors.Wrap(err, "interpreter.engine")
	}
	if c.Interpreter.MaxDepth <= 0 {
		return errors.Errorf("interpreter.max_depth must be positive, got %d", c.Interpreter.MaxDepth)
	}
	if c.Interpreter.StackSize == 0 {
		return errors.New("interpreter.stack_size must be positive")
	}
	if c.Log.Verbosity < 0 {
		return errors.Errorf("log.verbosity must not be negative, got %d", c.Log.Verbosity)
	}
	return nil
}

// Options returns the interpreter options this configuration selects.
func (c *Config) Options() (interp.Options, error) {
	engine, err := interp.ParseEngine(c.Interpreter.Engine)
	if err != nil {
		return interp.Options{}, err
	}
	opts := interp.DefaultOptions()
	opts.Engine = engine
	opts.AccessChecks = c.Interpreter.AccessChecks
	opts.MaxDepth = c.Interpreter.MaxDepth
	opts.StackSize = int64(c.Interpreter.StackSize)
	opts.Started = c.Runtime.Started
	return opts, nil
}

// Encode writes the configuration as TOML.
func (c *Config) Encode() (string, error) {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(c); err != nil {
		return "", err
	}
	return sb.String(), nil
}
