// Package printer implements the printing.Driver port and the printer
// registry.
package printer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Mrhamza01/prlabel/internal/printing"
)

// Driver names used in the registry file
const (
	DriverSpool   = "spool"
	DriverCommand = "command"
)

// DefaultCommand prints through CUPS
var DefaultCommand = []string{"lp", "-d", "{printer}", "{file}"}

func labelFileName(shipmentID string) string {
	return filepath.Base(shipmentID) + "-label.pdf"
}

// SpoolPrinter drops label files into a directory per printer, for print
// servers that watch a hot folder
type SpoolPrinter struct {
	Dir string
}

// Print writes {Dir}/{printer}/{shipmentId}-label.pdf. The file appears
// atomically so a watcher never sees a partial label.
func (p *SpoolPrinter) Print(ctx context.Context, job printing.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Join(p.Dir, filepath.Base(job.Printer))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create spool directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".label-*")
	if err != nil {
		return fmt.Errorf("failed to create spool file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(job.PDF); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write spool file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write spool file: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(dir, labelFileName(job.ShipmentID))); err != nil {
		return fmt.Errorf("failed to spool label: %w", err)
	}
	return nil
}

// CommandPrinter hands the label file to an external command such as lp.
// Args may contain {printer} and {file}; without {file} the path is appended.
type CommandPrinter struct {
	Args    []string
	TempDir string
}

// Print runs the command and removes the label file afterwards
func (p *CommandPrinter) Print(ctx context.Context, job printing.Job) error {
	if len(p.Args) == 0 {
		return fmt.Errorf("print command is not configured")
	}

	dir, err := os.MkdirTemp(p.TempDir, "prlabel-")
	if err != nil {
		return fmt.Errorf("failed to create label directory: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, labelFileName(job.ShipmentID))
	if err := os.WriteFile(path, job.PDF, 0o600); err != nil {
		return fmt.Errorf("failed to write label file: %w", err)
	}

	args := expandArgs(p.Args, job.Printer, path)
	out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("print command %s failed: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

func expandArgs(template []string, printerName, file string) []string {
	args := make([]string, 0, len(template)+1)
	hasFile := false
	for _, a := range template {
		if strings.Contains(a, "{file}") {
			hasFile = true
		}
		a = strings.ReplaceAll(a, "{printer}", printerName)
		a = strings.ReplaceAll(a, "{file}", file)
		args = append(args, a)
	}
	if !hasFile {
		args = append(args, file)
	}
	return args
}
