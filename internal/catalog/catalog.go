// Package catalog defines the fixed set of generation tasks: the situation
// reports and the advisor briefings.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/aiwargamer/sitroom/internal/models"
	"github.com/aiwargamer/sitroom/internal/validation"
	"gopkg.in/yaml.v3"
)

// ErrUnknownTask is returned when a lookup names no task in the catalog.
var ErrUnknownTask = errors.New("unknown task")

// Advisor is a chat persona. Each advisor also yields one briefing task.
type Advisor struct {
	Name   string `yaml:"-" json:"name"`
	Icon   string `yaml:"icon" json:"icon"`
	Prompt string `yaml:"prompt" json:"prompt"`
}

// Catalog is an immutable set of generation tasks, reports first.
type Catalog struct {
	reports   []models.GenerationTask
	briefings []models.GenerationTask
	advisors  []Advisor
	byKey     map[string]models.GenerationTask
	advisorBy map[string]Advisor
}

// New builds a catalog from reports and advisors. Names must be unique within
// their kind once canonicalized.
func New(reports []models.GenerationTask, advisors []Advisor) (*Catalog, error) {
	c := &Catalog{
		byKey:     map[string]models.GenerationTask{},
		advisorBy: map[string]Advisor{},
	}

	for _, r := range reports {
		if r.ID.Kind != models.TaskKindReport {
			return nil, fmt.Errorf("report %q has kind %q", r.ID.Name, r.ID.Kind)
		}
		if err := c.add(r); err != nil {
			return nil, err
		}
		c.reports = append(c.reports, r)
	}

	for _, a := range advisors {
		task := briefingTask(a)
		if err := c.add(task); err != nil {
			return nil, err
		}
		c.briefings = append(c.briefings, task)
		c.advisors = append(c.advisors, a)
		c.advisorBy[models.CanonicalName(a.Name)] = a
	}

	return c, nil
}

func (c *Catalog) add(t models.GenerationTask) error {
	if models.CanonicalName(t.ID.Name) == "" {
		return fmt.Errorf("%s task with empty name", t.ID.Kind)
	}
	key := t.ID.CacheKey()
	if _, dup := c.byKey[key]; dup {
		return fmt.Errorf("duplicate task %s", key)
	}
	c.byKey[key] = t
	return nil
}

func briefingTask(a Advisor) models.GenerationTask {
	return models.GenerationTask{
		ID:                models.TaskID{Kind: models.TaskKindBriefing, Name: a.Name},
		Icon:              a.Icon,
		SystemInstruction: a.Prompt,
		Instruction:       briefingInstruction,
		MaxOutputWords:    400,
	}
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(builtinReports, builtinAdvisors)
	if err != nil {
		panic(fmt.Sprintf("built-in catalog is invalid: %v", err))
	}
	return c
}

// Load builds a catalog from the built-in reports and the advisors defined in
// the prompts file at path. The file maps advisor name to {icon, prompt} and
// may be JSON or YAML; advisors keep the file's order.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if errs := validation.ValidatePromptsBytes(data); len(errs) > 0 {
		return nil, fmt.Errorf("invalid prompts file %s: %v", path, errs)
	}

	advisors, err := parseAdvisors(data)
	if err != nil {
		return nil, fmt.Errorf("parsing prompts file %s: %w", path, err)
	}
	if len(advisors) == 0 {
		return nil, fmt.Errorf("prompts file %s defines no advisors", path)
	}

	return New(builtinReports, advisors)
}

// LoadOrDefault is Load, falling back to the built-in catalog with a warning
// when the file is missing or invalid. An empty path selects the built-ins.
func LoadOrDefault(path string) *Catalog {
	if path == "" {
		return Default()
	}
	c, err := Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("Advisor prompts file not found, using built-in advisors", "path", path)
		} else {
			slog.Warn("Failed to load advisor prompts, using built-in advisors", "path", path, "error", err)
		}
		return Default()
	}
	return c
}

func parseAdvisors(data []byte) ([]Advisor, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, errors.New("expected a mapping of advisor name to definition")
	}

	advisors := make([]Advisor, 0, len(doc.Content)/2)
	for i := 0; i+1 < len(doc.Content); i += 2 {
		var a Advisor
		if err := doc.Content[i+1].Decode(&a); err != nil {
			return nil, fmt.Errorf("advisor %q: %w", doc.Content[i].Value, err)
		}
		a.Name = doc.Content[i].Value
		advisors = append(advisors, a)
	}
	return advisors, nil
}

// Tasks returns every task: all reports followed by all briefings.
func (c *Catalog) Tasks() []models.GenerationTask {
	return slices.Concat(c.reports, c.briefings)
}

func (c *Catalog) Reports() []models.GenerationTask {
	return slices.Clone(c.reports)
}

func (c *Catalog) Briefings() []models.GenerationTask {
	return slices.Clone(c.briefings)
}

func (c *Catalog) Advisors() []Advisor {
	return slices.Clone(c.advisors)
}

// Lookup finds a task by kind and name. Either the display or the canonical
// form of the name is accepted.
func (c *Catalog) Lookup(kind models.TaskKind, name string) (models.GenerationTask, error) {
	return c.LookupKey(models.TaskID{Kind: kind, Name: name}.CacheKey())
}

// LookupKey finds a task by its cache key.
func (c *Catalog) LookupKey(key string) (models.GenerationTask, error) {
	id, err := models.ParseCacheKey(key)
	if err != nil {
		return models.GenerationTask{}, fmt.Errorf("%w: %v", ErrUnknownTask, err)
	}
	t, ok := c.byKey[id.CacheKey()]
	if !ok {
		return models.GenerationTask{}, fmt.Errorf("%w: %s", ErrUnknownTask, key)
	}
	return t, nil
}

// Advisor finds an advisor persona by name.
func (c *Catalog) Advisor(name string) (Advisor, error) {
	a, ok := c.advisorBy[models.CanonicalName(name)]
	if !ok {
		return Advisor{}, fmt.Errorf("%w: advisor %q", ErrUnknownTask, name)
	}
	return a, nil
}
