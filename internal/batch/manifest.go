package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Job describes one morph of a batch. Relative paths are resolved against
// the manifest's directory. Unset Frames, Parallel and Format fall back to
// the batch configuration.
type Job struct {
	Name        string `yaml:"name" json:"name"`
	Source      string `yaml:"source" json:"source"`
	Destination string `yaml:"destination" json:"destination"`
	Pairs       string `yaml:"pairs" json:"pairs"`
	Frames      *int   `yaml:"frames,omitempty" json:"frames,omitempty"`
	Parallel    *bool  `yaml:"parallel,omitempty" json:"parallel,omitempty"`
	Output      string `yaml:"output" json:"output"`
	Format      string `yaml:"format,omitempty" json:"format,omitempty"`
}

// Manifest is a list of jobs, usually read from a YAML file.
type Manifest struct {
	Jobs []Job `yaml:"jobs"`
}

// LoadManifest reads a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: manifest path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.resolve(filepath.Dir(path))
	return m, nil
}

// ParseManifest decodes a manifest and validates it. Paths are left as
// written.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that every job names its inputs.
func (m *Manifest) Validate() error {
	if len(m.Jobs) == 0 {
		return errors.New("manifest has no jobs")
	}
	var errs []error
	seen := make(map[string]int)
	for i := range m.Jobs {
		j := &m.Jobs[i]
		if j.Name == "" {
			j.Name = fmt.Sprintf("job-%d", i+1)
		}
		if prev, ok := seen[j.Name]; ok {
			errs = append(errs, fmt.Errorf("job %d: name %q already used by job %d", i+1, j.Name, prev))
		}
		seen[j.Name] = i + 1
		if j.Source == "" || j.Destination == "" || j.Pairs == "" {
			errs = append(errs, fmt.Errorf("job %q: source, destination and pairs are required", j.Name))
		}
		if j.Frames != nil && *j.Frames < 0 {
			errs = append(errs, fmt.Errorf("job %q: frames must not be negative", j.Name))
		}
	}
	return errors.Join(errs...)
}

func (m *Manifest) resolve(base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for i := range m.Jobs {
		j := &m.Jobs[i]
		j.Source = abs(j.Source)
		j.Destination = abs(j.Destination)
		j.Pairs = abs(j.Pairs)
		j.Output = abs(j.Output)
	}
}
