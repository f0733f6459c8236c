package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var (
	ErrNoProfiles      = errors.New("no profiles configured")
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileExists   = errors.New("profile already exists")
)

// Profile holds the connection settings of one named account.
type Profile struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	User    string `yaml:"user"`
	KeyID   string `yaml:"key_id,omitempty"`
	KeyFile string `yaml:"key_file,omitempty"`
	Default bool   `yaml:"default,omitempty"`
}

// ProfileFile is the on-disk collection of profiles.
type ProfileFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// Get returns the profile by name. An empty name selects the default profile.
func (f *ProfileFile) Get(name string) (*Profile, error) {
	if len(f.Profiles) == 0 {
		return nil, ErrNoProfiles
	}
	if name == "" {
		return f.Default()
	}

	for i := range f.Profiles {
		if f.Profiles[i].Name == name {
			return &f.Profiles[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// Default returns the profile marked default, or the first one.
func (f *ProfileFile) Default() (*Profile, error) {
	if len(f.Profiles) == 0 {
		return nil, ErrNoProfiles
	}
	for i := range f.Profiles {
		if f.Profiles[i].Default {
			return &f.Profiles[i], nil
		}
	}
	return &f.Profiles[0], nil
}

// Add appends p. Names are unique.
func (f *ProfileFile) Add(p Profile) error {
	for i := range f.Profiles {
		if f.Profiles[i].Name == p.Name {
			return fmt.Errorf("%w: %s", ErrProfileExists, p.Name)
		}
	}
	f.Profiles = append(f.Profiles, p)
	return nil
}

// Update replaces the profile named p.Name.
func (f *ProfileFile) Update(p Profile) error {
	for i := range f.Profiles {
		if f.Profiles[i].Name == p.Name {
			f.Profiles[i] = p
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrProfileNotFound, p.Name)
}

// Remove deletes a profile by name.
func (f *ProfileFile) Remove(name string) error {
	for i := range f.Profiles {
		if f.Profiles[i].Name == name {
			f.Profiles = append(f.Profiles[:i], f.Profiles[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// SetDefault marks name as the default profile and clears the flag on all others.
func (f *ProfileFile) SetDefault(name string) error {
	found := false
	for i := range f.Profiles {
		f.Profiles[i].Default = f.Profiles[i].Name == name
		found = found || f.Profiles[i].Default
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	return nil
}

// Names lists the profile names in file order.
func (f *ProfileFile) Names() []string {
	names := make([]string, len(f.Profiles))
	for i := range f.Profiles {
		names[i] = f.Profiles[i].Name
	}
	return names
}

// Save writes the file to path, creating the parent directory if needed.
func (f *ProfileFile) Save(path string) error {
	cleanPath := filepath.Clean(path)

	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o700); err != nil {
		return fmt.Errorf("create profile directory: %w", err)
	}

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal profiles: %w", err)
	}

	if err := os.WriteFile(cleanPath, data, 0o600); err != nil {
		return fmt.Errorf("write profile file: %w", err)
	}
	return nil
}

// LoadProfileFile reads the profile file at path.
func LoadProfileFile(path string) (*ProfileFile, error) {
	data, err := os.ReadFile(filepath.Clean(path)) //#nosec G304 -- path is user-provided profile file
	if err != nil {
		return nil, fmt.Errorf("read profile file: %w", err)
	}

	var f ProfileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse profile file: %w", err)
	}
	return &f, nil
}

// DefaultProfilePath returns ~/.manta/profiles.yaml, or "" without a home directory.
func DefaultProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".manta", "profiles.yaml")
}

// MergeProfile merges profiles left to right. Empty fields in later
// profiles do not override earlier values.
func MergeProfile(profiles ...*Profile) *Profile {
	out := &Profile{}
	for _, p := range profiles {
		if p == nil {
			continue
		}
		if p.Name != "" {
			out.Name = p.Name
		}
		if p.URL != "" {
			out.URL = p.URL
		}
		if p.User != "" {
			out.User = p.User
		}
		if p.KeyID != "" {
			out.KeyID = p.KeyID
		}
		if p.KeyFile != "" {
			out.KeyFile = p.KeyFile
		}
	}
	return out
}
