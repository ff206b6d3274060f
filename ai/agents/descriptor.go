package agent

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/captain/ai/configloader"
)

// Descriptor is the static definition of one role-specialized agent, as
// stored in the agent library file.
type Descriptor struct {
	Name          string `json:"name" yaml:"name"`
	Description   string `json:"description" yaml:"description"`
	SystemMessage string `json:"system_message" yaml:"system_message"`
}

// NormalizeName turns a display name into an agent identifier.
// "Technical Analyst" becomes "Technical_Analyst".
func NormalizeName(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
}

// Validate checks that the descriptor can back an agent.
func (d Descriptor) Validate() error {
	if NormalizeName(d.Name) == "" {
		return errors.New("agent name is required")
	}
	if strings.TrimSpace(d.SystemMessage) == "" {
		return errors.Errorf("agent %q has no system_message", d.Name)
	}
	return nil
}

// LoadLibrary reads the agent library at path. Every entry is validated and
// its name normalized; an empty library or duplicate names are errors.
func LoadLibrary(loader *configloader.Loader, path string) ([]Descriptor, error) {
	var descriptors []Descriptor
	if err := loader.Load(path, &descriptors); err != nil {
		return nil, errors.Wrap(err, "failed to load agent library")
	}
	if len(descriptors) == 0 {
		return nil, errors.Errorf("agent library %s is empty", path)
	}

	seen := make(map[string]int, len(descriptors))
	for i := range descriptors {
		if err := descriptors[i].Validate(); err != nil {
			return nil, errors.Wrapf(err, "agent library entry %d", i)
		}
		descriptors[i].Name = NormalizeName(descriptors[i].Name)
		if prev, ok := seen[descriptors[i].Name]; ok {
			return nil, errors.Errorf("agent library entries %d and %d share the name %q", prev, i, descriptors[i].Name)
		}
		seen[descriptors[i].Name] = i
	}

	return descriptors, nil
}

// SelectTeam returns the first size descriptors of the library. A library
// shorter than size yields the whole library.
func SelectTeam(library []Descriptor, size int) ([]Descriptor, error) {
	if size < 1 {
		return nil, fmt.Errorf("team size must be at least 1, got %d", size)
	}
	if len(library) == 0 {
		return nil, fmt.Errorf("agent library is empty")
	}
	if len(library) < size {
		slog.Warn("Agent library is smaller than the team size, using every agent",
			"library_size", len(library),
			"team_size", size,
		)
		size = len(library)
	}

	team := make([]Descriptor, size)
	copy(team, library[:size])
	return team, nil
}
