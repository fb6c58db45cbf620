package reactor

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// NeutronicsEntry describes one material volume for a neutronics code.
type NeutronicsEntry struct {
	Material    string `json:"material"`
	STPFilename string `json:"stp_filename,omitempty"`
	STLFilename string `json:"stl_filename"`
}

// STLFilename returns the file a member's mesh is exported to: its
// configured STL filename, or "<name>.stl".
func STLFilename(name, configured string) string {
	if configured != "" {
		return configured
	}
	return name + ".stl"
}

// NeutronicsDescription lists every member that has a material tag, in
// insertion order. Members without one are skipped; Validate warns about
// them.
func (r *Reactor) NeutronicsDescription() []NeutronicsEntry {
	var out []NeutronicsEntry
	for _, m := range r.snapshot() {
		cfg := m.shape.Config()
		if cfg.MaterialTag == "" {
			continue
		}
		out = append(out, NeutronicsEntry{
			Material:    cfg.MaterialTag,
			STPFilename: cfg.STPFilename,
			STLFilename: STLFilename(m.name, cfg.STLFilename),
		})
	}
	return out
}

// WriteNeutronicsDescription writes the description as indented JSON.
func (r *Reactor) WriteNeutronicsDescription(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	entries := r.NeutronicsDescription()
	if entries == nil {
		entries = []NeutronicsEntry{}
	}
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("reactor: encode neutronics description: %w", err)
	}
	return nil
}

// SaveNeutronicsDescription writes the description to path.
func (r *Reactor) SaveNeutronicsDescription(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("reactor: %w", err)
	}
	if err := r.WriteNeutronicsDescription(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
