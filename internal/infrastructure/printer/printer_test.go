package printer

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mrhamza01/prlabel/internal/printing"
)

var (
	_ printing.Driver   = (*SpoolPrinter)(nil)
	_ printing.Driver   = (*CommandPrinter)(nil)
	_ printing.Registry = (*Registry)(nil)
)

func TestSpoolPrinter(t *testing.T) {
	dir := t.TempDir()
	p := &SpoolPrinter{Dir: dir}

	err := p.Print(context.Background(), printing.Job{ShipmentID: "se-1", Printer: "zebra-1", PDF: []byte("%PDF")})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "zebra-1", "se-1-label.pdf"))
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), data)

	entries, err := os.ReadDir(filepath.Join(dir, "zebra-1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestSpoolPrinterKeepsFilesInsideSpoolDir(t *testing.T) {
	dir := t.TempDir()
	p := &SpoolPrinter{Dir: dir}

	err := p.Print(context.Background(), printing.Job{ShipmentID: "../../se-2", Printer: "../zebra", PDF: []byte("%PDF")})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "zebra", "se-2-label.pdf"))
	assert.NoError(t, err)
}

func TestSpoolPrinterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := (&SpoolPrinter{Dir: t.TempDir()}).Print(ctx, printing.Job{ShipmentID: "se-1", Printer: "p"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExpandArgs(t *testing.T) {
	tests := []struct {
		name     string
		template []string
		want     []string
	}{
		{"file placeholder", []string{"lp", "-d", "{printer}", "{file}"}, []string{"lp", "-d", "zebra", "/tmp/l.pdf"}},
		{"file appended", []string{"lp", "-d", "{printer}"}, []string{"lp", "-d", "zebra", "/tmp/l.pdf"}},
		{"embedded placeholders", []string{"print", "--to={printer}", "--in={file}"}, []string{"print", "--to=zebra", "--in=/tmp/l.pdf"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandArgs(tt.template, "zebra", "/tmp/l.pdf"))
		})
	}
}

func TestCommandPrinter(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses cp")
	}

	dst := filepath.Join(t.TempDir(), "printed.pdf")
	p := &CommandPrinter{Args: []string{"cp", "{file}", dst}}

	err := p.Print(context.Background(), printing.Job{ShipmentID: "se-1", Printer: "zebra", PDF: []byte("%PDF-1.7")})
	require.NoError(t, err)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), data)
}

func TestCommandPrinterFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses false")
	}

	err := (&CommandPrinter{Args: []string{"false"}}).Print(context.Background(), printing.Job{ShipmentID: "se-1", Printer: "zebra"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "print command false failed")

	err = (&CommandPrinter{}).Print(context.Background(), printing.Job{ShipmentID: "se-1"})
	assert.EqualError(t, err, "print command is not configured")
}

func TestLoadRegistryFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "printers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
printers:
  - name: hot-folder
    driver: spool
    spoolDir: /var/spool/labels
  - name: zebra-dock-1
    driver: command
    default: true
    command: [lp, -d, "{printer}"]
`), 0o600))

	r, err := LoadRegistry(path, Defaults{})
	require.NoError(t, err)

	assert.Equal(t, []printing.Printer{
		{Name: "hot-folder", IsDefault: false, Driver: DriverSpool},
		{Name: "zebra-dock-1", IsDefault: true, Driver: DriverCommand},
	}, r.Printers())

	p, driver, err := r.Default()
	require.NoError(t, err)
	assert.Equal(t, "zebra-dock-1", p.Name)
	assert.Equal(t, &CommandPrinter{Args: []string{"lp", "-d", "{printer}"}}, driver)
}

func TestLoadRegistryWithoutFile(t *testing.T) {
	r, err := LoadRegistry("", Defaults{DefaultPrinter: "zebra", SpoolDir: "/spool"})
	require.NoError(t, err)

	p, driver, err := r.Default()
	require.NoError(t, err)
	assert.Equal(t, printing.Printer{Name: "zebra", IsDefault: true, Driver: DriverSpool}, p)
	assert.Equal(t, &SpoolPrinter{Dir: "/spool"}, driver)

	r, err = LoadRegistry("", Defaults{DefaultPrinter: "zebra", Command: []string{"lpr", "-P", "{printer}"}})
	require.NoError(t, err)
	_, driver, err = r.Default()
	require.NoError(t, err)
	assert.Equal(t, &CommandPrinter{Args: []string{"lpr", "-P", "{printer}"}}, driver)

	r, err = LoadRegistry("", Defaults{})
	require.NoError(t, err)
	assert.Empty(t, r.Printers())
	_, _, err = r.Default()
	assert.ErrorIs(t, err, printing.ErrNoDefaultPrinter)
}

func TestNewRegistryDefaultSelection(t *testing.T) {
	configs := []Config{
		{Name: "a", Driver: DriverCommand},
		{Name: "b", Driver: DriverCommand},
	}

	r, err := NewRegistry(configs, Defaults{})
	require.NoError(t, err)
	p, _, err := r.Default()
	require.NoError(t, err)
	assert.Equal(t, "a", p.Name)

	r, err = NewRegistry(configs, Defaults{DefaultPrinter: "b"})
	require.NoError(t, err)
	p, _, err = r.Default()
	require.NoError(t, err)
	assert.Equal(t, "b", p.Name)
}

func TestNewRegistryRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name     string
		configs  []Config
		defaults Defaults
		wantErr  string
	}{
		{"missing name", []Config{{Driver: DriverCommand}}, Defaults{}, "printer without a name"},
		{"duplicate", []Config{{Name: "a", Driver: DriverCommand}, {Name: "a", Driver: DriverCommand}}, Defaults{}, `duplicate printer "a"`},
		{"two defaults", []Config{{Name: "a", Driver: DriverCommand, Default: true}, {Name: "b", Driver: DriverCommand, Default: true}}, Defaults{}, "both marked default"},
		{"unknown driver", []Config{{Name: "a", Driver: "ipp"}}, Defaults{}, `unknown driver "ipp"`},
		{"spool without dir", []Config{{Name: "a", Driver: DriverSpool}}, Defaults{}, "spool driver needs spoolDir"},
		{"default not configured", []Config{{Name: "a", Driver: DriverCommand}}, Defaults{DefaultPrinter: "z"}, `default printer "z" is not configured`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.configs, tt.defaults)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
