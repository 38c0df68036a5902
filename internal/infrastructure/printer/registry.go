package printer

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Mrhamza01/prlabel/internal/printing"
)

// Config describes one printer in the registry file
type Config struct {
	Name     string   `yaml:"name"`
	Driver   string   `yaml:"driver"`
	Default  bool     `yaml:"default"`
	SpoolDir string   `yaml:"spoolDir"`
	Command  []string `yaml:"command"`
}

// File is the registry file layout:
//
//	printers:
//	  - name: zebra-dock-1
//	    driver: command
//	    default: true
//	    command: [lp, -d, "{printer}"]
//	  - name: hot-folder
//	    driver: spool
//	    spoolDir: /var/spool/labels
type File struct {
	Printers []Config `yaml:"printers"`
}

// Defaults fill in what the registry file leaves out, and describe the
// single printer used when there is no file
type Defaults struct {
	DefaultPrinter string
	SpoolDir       string
	Command        []string
}

type entry struct {
	info   printing.Printer
	driver printing.Driver
}

// Registry is an immutable printing.Registry
type Registry struct {
	entries     []entry
	defaultName string
}

// LoadRegistry reads the registry from path. An empty path builds a
// registry with only defaults.DefaultPrinter, or no printers at all.
func LoadRegistry(path string, defaults Defaults) (*Registry, error) {
	if path == "" {
		if defaults.DefaultPrinter == "" {
			return NewRegistry(nil, defaults)
		}
		driver := DriverSpool
		if len(defaults.Command) > 0 {
			driver = DriverCommand
		}
		return NewRegistry([]Config{{Name: defaults.DefaultPrinter, Driver: driver, Default: true}}, defaults)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read printers file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse printers file %s: %w", path, err)
	}
	return NewRegistry(f.Printers, defaults)
}

// NewRegistry validates configs and builds their drivers. The default is the
// printer marked default, else defaults.DefaultPrinter, else the first one.
func NewRegistry(configs []Config, defaults Defaults) (*Registry, error) {
	r := &Registry{}
	seen := make(map[string]bool)

	for _, c := range configs {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("printer without a name")
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate printer %q", name)
		}
		seen[name] = true

		driver, kind, err := buildDriver(c, defaults)
		if err != nil {
			return nil, fmt.Errorf("printer %q: %w", name, err)
		}

		if c.Default {
			if r.defaultName != "" {
				return nil, fmt.Errorf("printers %q and %q are both marked default", r.defaultName, name)
			}
			r.defaultName = name
		}
		r.entries = append(r.entries, entry{
			info:   printing.Printer{Name: name, Driver: kind},
			driver: driver,
		})
	}

	if r.defaultName == "" && len(r.entries) > 0 {
		r.defaultName = r.entries[0].info.Name
		if defaults.DefaultPrinter != "" {
			if !seen[defaults.DefaultPrinter] {
				return nil, fmt.Errorf("default printer %q is not configured", defaults.DefaultPrinter)
			}
			r.defaultName = defaults.DefaultPrinter
		}
	}

	for i := range r.entries {
		r.entries[i].info.IsDefault = r.entries[i].info.Name == r.defaultName
	}
	return r, nil
}

func buildDriver(c Config, defaults Defaults) (printing.Driver, string, error) {
	switch c.Driver {
	case DriverSpool, "":
		dir := c.SpoolDir
		if dir == "" {
			dir = defaults.SpoolDir
		}
		if dir == "" {
			return nil, "", fmt.Errorf("spool driver needs spoolDir")
		}
		return &SpoolPrinter{Dir: dir}, DriverSpool, nil
	case DriverCommand:
		args := c.Command
		if len(args) == 0 {
			args = defaults.Command
		}
		if len(args) == 0 {
			args = DefaultCommand
		}
		return &CommandPrinter{Args: args}, DriverCommand, nil
	default:
		return nil, "", fmt.Errorf("unknown driver %q", c.Driver)
	}
}

// Printers returns the configured printers in file order
func (r *Registry) Printers() []printing.Printer {
	out := make([]printing.Printer, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.info
	}
	return out
}

// Default returns the default printer and its driver
func (r *Registry) Default() (printing.Printer, printing.Driver, error) {
	for _, e := range r.entries {
		if e.info.IsDefault {
			return e.info, e.driver, nil
		}
	}
	return printing.Printer{}, nil, printing.ErrNoDefaultPrinter
}
