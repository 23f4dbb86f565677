// Package crops holds the plant catalog: immutable per-cultivar growth data
// loaded once from plantTypes.xml (or an equivalent TOML file).
package crops

import (
	"errors"
	"fmt"
	"sort"

	"farm_scheduler/descriptor"
	"farm_scheduler/farmerr"

	"github.com/rs/zerolog/log"
)

// Catalog is the set of known plant types keyed by name.
type Catalog struct {
	types map[string]*PlantType
}

// NewCatalog builds a catalog from already validated types. Duplicate names
// are rejected.
func NewCatalog(types ...PlantType) (*Catalog, error) {
	c := &Catalog{types: make(map[string]*PlantType, len(types))}
	for i := range types {
		pt := types[i]
		if err := validate(&pt); err != nil {
			return nil, err
		}
		if _, exists := c.types[pt.Name]; exists {
			return nil, fmt.Errorf("duplicate plant type %q", pt.Name)
		}
		c.types[pt.Name] = &pt
	}
	return c, nil
}

// LoadCatalog reads the plant type description at path. A missing or
// unparsable file, or one without a single valid record, is a
// LayoutLoadError. Individual bad records are logged and skipped.
func LoadCatalog(path string) (*Catalog, error) {
	doc, err := descriptor.Read(path)
	if err != nil {
		return nil, &farmerr.LayoutLoadError{Path: path, Err: err}
	}
	log.Info().Str("path", path).Msg("Accessed plant type catalog")

	c := &Catalog{types: make(map[string]*PlantType, len(doc.Records))}
	for i, rec := range doc.Records {
		pt, err := parsePlantType(rec)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Int("record", i).Msg("Skipping plant type record")
			continue
		}
		if _, exists := c.types[pt.Name]; exists {
			log.Warn().Str("path", path).Str("name", pt.Name).Msg("Skipping duplicate plant type")
			continue
		}
		c.types[pt.Name] = pt
	}

	if len(c.types) == 0 {
		return nil, &farmerr.LayoutLoadError{Path: path, Err: errors.New("no valid plant types")}
	}
	log.Info().Int("types", len(c.types)).Msg("Loaded plant types")
	return c, nil
}

// Lookup returns the plant type with the given name.
func (c *Catalog) Lookup(name string) (*PlantType, error) {
	pt, ok := c.types[name]
	if !ok {
		return nil, farmerr.NotFound("plant type", name)
	}
	return pt, nil
}

// Names returns all type names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.types))
	for name := range c.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Catalog) Len() int { return len(c.types) }

func parsePlantType(rec descriptor.Record) (*PlantType, error) {
	name, err := rec.String("name")
	if err != nil {
		return nil, err
	}
	pt := &PlantType{Name: name}

	if pt.RequiresHole, err = rec.Bool("hole"); err != nil {
		return nil, fmt.Errorf("plant type %q: %w", name, err)
	}
	for i, key := range []string{"gt0", "gt1", "gt2"} {
		if pt.StageDays[i], err = rec.Int(key); err != nil {
			return nil, fmt.Errorf("plant type %q: %w", name, err)
		}
	}
	if pt.SeedOffset.X, err = rec.Int("x"); err != nil {
		return nil, fmt.Errorf("plant type %q: %w", name, err)
	}
	if pt.SeedOffset.Y, err = rec.Int("y"); err != nil {
		return nil, fmt.Errorf("plant type %q: %w", name, err)
	}
	if pt.SeedOffset.Z, err = rec.Int("z"); err != nil {
		return nil, fmt.Errorf("plant type %q: %w", name, err)
	}

	if err := validate(pt); err != nil {
		return nil, err
	}
	return pt, nil
}

func validate(pt *PlantType) error {
	if pt.Name == "" {
		return errors.New("plant type name is empty")
	}
	for stage, days := range pt.StageDays {
		if days < 0 {
			return fmt.Errorf("plant type %q: %s duration %d is negative", pt.Name, GrowthStage(stage), days)
		}
	}
	return nil
}
