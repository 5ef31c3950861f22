package registry

import "github.com/ianremillard/wireline/internal/schema"

// ToWire converts a registry Project to its wire form. The conversion is
// total but lossy: SessionFile and Exists have no wire representation.
func (p Project) ToWire() schema.Project {
	return schema.Project{Name: p.Name, Path: p.Path}
}

// FromWire converts a wire Project back into a registry Project. The
// conversion is partial: a project that only ever existed on the wire is
// assumed to exist and has no session file.
func FromWire(w schema.Project) Project {
	return Project{Name: w.Name, Path: w.Path, Exists: true}
}

// ToWireProjects converts a slice of registry Projects to their wire
// form, preserving order.
func ToWireProjects(projects []Project) []schema.Project {
	out := make([]schema.Project, len(projects))
	for i, p := range projects {
		out[i] = p.ToWire()
	}
	return out
}
