package registry

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// registrationFile is the on-disk format of the explicit registration
// list: a thin YAML document the daemon reads at startup and on every
// reload.
type registrationFile struct {
	Projects []registrationEntry `yaml:"projects"`
}

type registrationEntry struct {
	Name string `yaml:"name" validate:"required"`
	Path string `yaml:"path" validate:"required"`
}

var registrationValidator = validator.New()

// loadRegistrations reads and parses path. A missing file is returned as
// the unwrapped os error, so callers can recognize it with os.IsNotExist
// and treat it as "no explicit registrations"; a malformed one is a
// wrapped error, matching loadProject's os.IsNotExist carve-out.
func loadRegistrations(path string) ([]registrationEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}

	var rf registrationFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("registry: parse %s: %w", path, err)
	}

	valid := rf.Projects[:0]
	for _, entry := range rf.Projects {
		if err := registrationValidator.Struct(entry); err != nil {
			log.Printf("registry: skipping invalid entry in %s: %v", path, err)
			continue
		}
		valid = append(valid, entry)
	}
	return valid, nil
}
