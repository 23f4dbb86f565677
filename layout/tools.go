package layout

import (
	"errors"
	"os"
	"sort"

	"farm_scheduler/descriptor"
	"farm_scheduler/farmerr"

	"github.com/rs/zerolog/log"
)

// Default tools, parked at the origin until the tools file says otherwise.
const (
	ToolSeeder     = "seeder"
	ToolPlanter    = "planter"
	ToolSoilSensor = "soilSensor"
)

// ToolRegistry maps tool names to their parking positions. It is only read
// by the actuation layer.
type ToolRegistry struct {
	tools map[string]Point
}

// DefaultTools returns a registry holding the built-in tools.
func DefaultTools() *ToolRegistry {
	return &ToolRegistry{tools: map[string]Point{
		ToolSeeder:     {},
		ToolPlanter:    {},
		ToolSoilSensor: {},
	}}
}

// LoadTools returns the default registry overlaid with the records of the
// tools file at path. A missing file leaves the defaults in place; any other
// read or parse failure is a LayoutLoadError.
func LoadTools(path string) (*ToolRegistry, error) {
	reg := DefaultTools()
	doc, err := descriptor.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("path", path).Msg("Tools file missing, using default tool positions")
			return reg, nil
		}
		return nil, &farmerr.LayoutLoadError{Path: path, Err: err}
	}
	log.Info().Str("path", path).Msg("Accessed tools")

	for i, rec := range doc.Records {
		name, pos, err := parseTool(rec)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Int("record", i).Msg("Skipping tool record")
			continue
		}
		reg.tools[name] = pos
	}
	log.Info().Int("tools", len(reg.tools)).Msg("Loaded tools")
	return reg, nil
}

// Position returns the parking position of the named tool.
func (r *ToolRegistry) Position(name string) (Point, error) {
	p, ok := r.tools[name]
	if !ok {
		return Point{}, farmerr.NotFound("tool", name)
	}
	return p, nil
}

// All returns a copy of the registry contents.
func (r *ToolRegistry) All() map[string]Point {
	out := make(map[string]Point, len(r.tools))
	for k, v := range r.tools {
		out[k] = v
	}
	return out
}

// Names returns the registered tool names in sorted order.
func (r *ToolRegistry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func parseTool(rec descriptor.Record) (string, Point, error) {
	name, err := rec.String("ident")
	if err != nil {
		return "", Point{}, err
	}
	var p Point
	if p.X, err = rec.Int("x"); err != nil {
		return "", Point{}, err
	}
	if p.Y, err = rec.Int("y"); err != nil {
		return "", Point{}, err
	}
	if p.Z, err = rec.Int("z"); err != nil {
		return "", Point{}, err
	}
	return name, p, nil
}
