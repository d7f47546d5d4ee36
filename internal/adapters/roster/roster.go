// Package roster loads round definitions from YAML files.
//
// The roster is external collaborator data: team membership, the active phrase
// per contestant, and which device each contestant types on. The core treats
// it as read-only input refreshed between rounds.
package roster

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mkanda/typerace/internal/domain/model"
)

// ErrInvalidRoster marks a roster that parsed but failed validation.
var ErrInvalidRoster = errors.New("invalid roster")

// Contestant binds one player to a device and a target phrase.
type Contestant struct {
	ID         string `yaml:"id"`
	DevicePath string `yaml:"device_path"`
	// Phrase overrides the round default for this contestant when set.
	Phrase string `yaml:"phrase,omitempty"`
}

// Team lists the contestants racing under one banner.
type Team struct {
	ID      string   `yaml:"id"`
	Members []string `yaml:"members"`
}

// Roster is one round's worth of assignments.
type Roster struct {
	// Phrase is the default target phrase for contestants without an override.
	Phrase      string       `yaml:"phrase"`
	Contestants []Contestant `yaml:"contestants"`
	Teams       []Team       `yaml:"teams,omitempty"`
}

// Load reads and validates a roster file.
func Load(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roster: %w", err)
	}

	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing roster: %w", err)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Roster) validate() error {
	if len(r.Contestants) == 0 {
		return fmt.Errorf("%w: no contestants", ErrInvalidRoster)
	}
	seen := make(map[string]struct{}, len(r.Contestants))
	for _, c := range r.Contestants {
		if c.ID == "" {
			return fmt.Errorf("%w: contestant without id", ErrInvalidRoster)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("%w: duplicate contestant id %q", ErrInvalidRoster, c.ID)
		}
		seen[c.ID] = struct{}{}
		if c.DevicePath == "" {
			return fmt.Errorf("%w: contestant %q has no device_path", ErrInvalidRoster, c.ID)
		}
		if c.Phrase == "" && r.Phrase == "" {
			return fmt.Errorf("%w: contestant %q has no phrase and no round default", ErrInvalidRoster, c.ID)
		}
	}
	for _, t := range r.Teams {
		for _, m := range t.Members {
			if _, ok := seen[m]; !ok {
				return fmt.Errorf("%w: team %q references unknown contestant %q", ErrInvalidRoster, t.ID, m)
			}
		}
	}
	return nil
}

// Phrases returns the contestant -> phrase assignment.
func (r *Roster) Phrases() map[string]string {
	out := make(map[string]string, len(r.Contestants))
	for _, c := range r.Contestants {
		phrase := c.Phrase
		if phrase == "" {
			phrase = r.Phrase
		}
		out[c.ID] = phrase
	}
	return out
}

// Bindings returns the device -> contestant binding.
func (r *Roster) Bindings() map[model.DeviceID]string {
	out := make(map[model.DeviceID]string, len(r.Contestants))
	for _, c := range r.Contestants {
		out[model.NewDeviceID(c.DevicePath)] = c.ID
	}
	return out
}

// TeamMembers returns the team -> members map.
func (r *Roster) TeamMembers() map[string][]string {
	out := make(map[string][]string, len(r.Teams))
	for _, t := range r.Teams {
		out[t.ID] = append([]string(nil), t.Members...)
	}
	return out
}
