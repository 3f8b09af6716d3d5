package catalog

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/gdg-garage/garage-fit-api/internal/logger"
	"gopkg.in/yaml.v3"
)

//go:embed achievements.yaml
var builtin []byte

// Catalog is the in-memory registry of valid definitions. It is read-only
// after construction and safe for concurrent use.
type Catalog struct {
	defs []Definition
	byID map[string]Definition
}

type file struct {
	Achievements []Definition `yaml:"achievements"`
}

// New keeps every valid definition. Invalid and duplicate ones are logged
// and dropped.
func New(defs []Definition, log *logger.Logger) *Catalog {
	c := &Catalog{byID: make(map[string]Definition, len(defs))}
	for _, def := range defs {
		if err := Validate(def); err != nil {
			log.Warn("rejected achievement definition", "achievement", def.ID, "error", err)
			continue
		}
		if _, dup := c.byID[def.ID]; dup {
			log.Warn("rejected duplicate achievement definition", "achievement", def.ID)
			continue
		}
		c.byID[def.ID] = def
		c.defs = append(c.defs, def)
	}
	return c
}

// Decode parses a YAML definition set.
func Decode(r io.Reader) ([]Definition, error) {
	var f file
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return f.Achievements, nil
}

// Load builds the catalog from path, or from the embedded set when path is
// empty.
func Load(path string, log *logger.Logger) (*Catalog, error) {
	if path == "" {
		var f file
		if err := yaml.Unmarshal(builtin, &f); err != nil {
			return nil, fmt.Errorf("decode builtin catalog: %w", err)
		}
		return New(f.Achievements, log), nil
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer fh.Close()
	defs, err := Decode(fh)
	if err != nil {
		return nil, err
	}
	return New(defs, log), nil
}

// All returns every valid definition. Callers must not rely on order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

func (c *Catalog) ByID(id string) (Definition, bool) {
	def, ok := c.byID[id]
	return def, ok
}

func (c *Catalog) ByCategory(category Category) []Definition {
	return c.filter(func(d Definition) bool { return d.Category == category })
}

func (c *Catalog) ByRank(rank Rank) []Definition {
	return c.filter(func(d Definition) bool { return d.Rank == rank })
}

// ByRequirement returns the definitions of one requirement type ordered by
// threshold ascending.
func (c *Catalog) ByRequirement(reqType string) []Definition {
	out := c.filter(func(d Definition) bool { return d.RequirementType == reqType })
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RequirementValue < out[j].RequirementValue
	})
	return out
}

func (c *Catalog) Len() int {
	return len(c.defs)
}

func (c *Catalog) filter(keep func(Definition) bool) []Definition {
	var out []Definition
	for _, d := range c.defs {
		if keep(d) {
			out = append(out, d)
		}
	}
	return out
}
