package receipt

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Profile describes the configured output device for a register.
type Profile struct {
	Name         string
	Capabilities []string // e.g. "thermal", "file"
}

// Printer is a device adapter. The renderer never sees one; dispatch picks
// an adapter whose capability matches the profile and hands it the finished
// text.
type Printer interface {
	Capability() string
	Print(saleNumber, text string) error
}

func (p Profile) supports(capability string) bool {
	for _, c := range p.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// Dispatch sends the rendered receipt to the first printer the profile
// supports.
func Dispatch(profile Profile, printers []Printer, saleNumber, text string) error {
	for _, p := range printers {
		if profile.supports(p.Capability()) {
			return p.Print(saleNumber, text)
		}
	}
	return fmt.Errorf("no printer matches profile %q", profile.Name)
}

// ThermalPrinter writes to a character device (or any writer standing in
// for one).
type ThermalPrinter struct {
	Out io.Writer
}

func (t *ThermalPrinter) Capability() string { return "thermal" }

func (t *ThermalPrinter) Print(_, text string) error {
	// Trailing feed so the tear bar clears the last line.
	_, err := io.WriteString(t.Out, text+strings.Repeat("\n", 3))
	return err
}

// FilePrinter exports receipts as text files, one per sale.
type FilePrinter struct {
	Dir string
}

func (f *FilePrinter) Capability() string { return "file" }

func (f *FilePrinter) Print(saleNumber, text string) error {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return err
	}
	name := filepath.Join(f.Dir, fmt.Sprintf("receipt-%s.txt", saleNumber))
	return os.WriteFile(name, []byte(text), 0o644)
}
