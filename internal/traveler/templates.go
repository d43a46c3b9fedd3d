package traveler

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nexusmfg/traveler/model"
)

// Catalog holds the per-type process step templates used to seed a new
// traveler when the caller supplies no explicit steps. Loaded once at
// startup and never mutated afterwards.
type Catalog struct {
	templates map[model.TravelerType][]model.StepInput
}

type catalogFile struct {
	Templates map[model.TravelerType][]templateStep `yaml:"templates"`
}

type templateStep struct {
	StepNumber     int               `yaml:"step_number"`
	Operation      string            `yaml:"operation"`
	WorkCenterCode string            `yaml:"work_center_code"`
	Instructions   string            `yaml:"instructions"`
	EstimatedTime  *int              `yaml:"estimated_time"`
	IsRequired     bool              `yaml:"is_required"`
	SubSteps       []templateSubStep `yaml:"sub_steps"`
}

type templateSubStep struct {
	StepNumber  string `yaml:"step_number"`
	Description string `yaml:"description"`
}

// LoadCatalog reads a template catalog from a YAML file. An empty path
// returns the built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return BuiltinCatalog(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template catalog: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse template catalog: %w", err)
	}

	c := &Catalog{templates: make(map[model.TravelerType][]model.StepInput, len(file.Templates))}
	for typ, steps := range file.Templates {
		if !model.ValidTravelerType(typ) {
			return nil, fmt.Errorf("template catalog: unknown traveler type %q", typ)
		}
		converted := make([]model.StepInput, 0, len(steps))
		for _, s := range steps {
			in := model.StepInput{
				StepNumber:     s.StepNumber,
				Operation:      s.Operation,
				WorkCenterCode: s.WorkCenterCode,
				Instructions:   s.Instructions,
				EstimatedTime:  s.EstimatedTime,
				IsRequired:     s.IsRequired,
			}
			for _, sub := range s.SubSteps {
				in.SubSteps = append(in.SubSteps, model.SubStepInput{
					StepNumber:  sub.StepNumber,
					Description: sub.Description,
				})
			}
			converted = append(converted, in)
		}
		c.templates[typ] = converted
	}
	return c, nil
}

// StepsFor returns a copy of the template steps for a traveler type, or nil
// when the type has no template. Callers own the returned slice.
func (c *Catalog) StepsFor(t model.TravelerType) []model.StepInput {
	steps, ok := c.templates[t]
	if !ok {
		return nil
	}
	out := make([]model.StepInput, len(steps))
	for i, s := range steps {
		out[i] = s
		if s.EstimatedTime != nil {
			est := *s.EstimatedTime
			out[i].EstimatedTime = &est
		}
		out[i].SubSteps = append([]model.SubStepInput(nil), s.SubSteps...)
	}
	return out
}

// Types returns the traveler types the catalog has templates for.
func (c *Catalog) Types() []model.TravelerType {
	out := make([]model.TravelerType, 0, len(c.templates))
	for t := range c.templates {
		out = append(out, t)
	}
	return out
}

// BuiltinCatalog returns the default step templates shipped with the
// service, covering the common board, assembly, and cable flows.
func BuiltinCatalog() *Catalog {
	minutes := func(m int) *int { return &m }
	return &Catalog{templates: map[model.TravelerType][]model.StepInput{
		model.TypePCB: {
			{StepNumber: 1, Operation: "Kitting", WorkCenterCode: "KIT", IsRequired: true, EstimatedTime: minutes(30)},
			{StepNumber: 2, Operation: "SMT Placement", WorkCenterCode: "SMT", IsRequired: true, EstimatedTime: minutes(90), SubSteps: []model.SubStepInput{
				{StepNumber: "2.1", Description: "Load feeders per setup sheet"},
				{StepNumber: "2.2", Description: "First article inspection"},
			}},
			{StepNumber: 3, Operation: "Reflow", WorkCenterCode: "RFL", IsRequired: true, EstimatedTime: minutes(45)},
			{StepNumber: 4, Operation: "AOI Inspection", WorkCenterCode: "AOI", IsRequired: true, EstimatedTime: minutes(30)},
			{StepNumber: 5, Operation: "Final QC", WorkCenterCode: "QC", IsRequired: true, EstimatedTime: minutes(20)},
		},
		model.TypeAssembly: {
			{StepNumber: 1, Operation: "Kitting", WorkCenterCode: "KIT", IsRequired: true, EstimatedTime: minutes(30)},
			{StepNumber: 2, Operation: "Mechanical Assembly", WorkCenterCode: "ASM", IsRequired: true, EstimatedTime: minutes(120)},
			{StepNumber: 3, Operation: "Functional Test", WorkCenterCode: "TST", IsRequired: true, EstimatedTime: minutes(60)},
			{StepNumber: 4, Operation: "Final QC", WorkCenterCode: "QC", IsRequired: true, EstimatedTime: minutes(20)},
		},
		model.TypeCable: {
			{StepNumber: 1, Operation: "Cut and Strip", WorkCenterCode: "CUT", IsRequired: true, EstimatedTime: minutes(20)},
			{StepNumber: 2, Operation: "Crimp and Terminate", WorkCenterCode: "CRM", IsRequired: true, EstimatedTime: minutes(45)},
			{StepNumber: 3, Operation: "Continuity Test", WorkCenterCode: "TST", IsRequired: true, EstimatedTime: minutes(15)},
			{StepNumber: 4, Operation: "Final QC", WorkCenterCode: "QC", IsRequired: true, EstimatedTime: minutes(10)},
		},
	}}
}
