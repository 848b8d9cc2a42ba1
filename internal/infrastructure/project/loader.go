// Package project loads the YAML project file: the metric definitions of a
// project and the subjects they are measured for.
package project

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dreschagin/quality-history/internal/application/usecase"
	"github.com/dreschagin/quality-history/internal/domain/entity"
	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

const dateLayout = "2006-01-02"

// File mirrors the YAML document.
type File struct {
	Name     string       `yaml:"name"`
	Workers  int          `yaml:"workers"`
	Metrics  []MetricSpec `yaml:"metrics"`
	Subjects []Subject    `yaml:"subjects"`
}

// MetricSpec is one metric definition.
type MetricSpec struct {
	Kind       string        `yaml:"kind"`
	Name       string        `yaml:"name"`
	Direction  string        `yaml:"direction"`
	Target     float64       `yaml:"target"`
	LowTarget  float64       `yaml:"low_target"`
	Perfect    *float64      `yaml:"perfect"`
	YellowTier bool          `yaml:"yellow_tier"`
	Unit       string        `yaml:"unit"`
	MaxAge     time.Duration `yaml:"max_age"`
	Source     string        `yaml:"source"`
}

// Subject is a measured entity. An empty Metrics list selects every definition.
type Subject struct {
	Name      string              `yaml:"name"`
	Metrics   []string            `yaml:"metrics"`
	Overrides map[string]Override `yaml:"overrides"`
}

// Override replaces the default norm of one metric for a subject.
type Override struct {
	Target    *float64       `yaml:"target"`
	LowTarget *float64       `yaml:"low_target"`
	Dynamic   *DynamicTarget `yaml:"dynamic"`
	Waiver    *Waiver        `yaml:"waiver"`
}

// DynamicTarget moves the norm linearly between two calibration points.
type DynamicTarget struct {
	Start TargetPoint `yaml:"start"`
	End   TargetPoint `yaml:"end"`
}

// TargetPoint is a calibration point of a dynamic target.
type TargetPoint struct {
	Date      string  `yaml:"date"`
	Target    float64 `yaml:"target"`
	LowTarget float64 `yaml:"low_target"`
}

// Waiver accepts a known level of technical debt.
type Waiver struct {
	AcceptedValue float64 `yaml:"accepted_value"`
	Explanation   string  `yaml:"explanation"`
	Expires       string  `yaml:"expires"`
}

// Project is a loaded and resolved project file.
type Project struct {
	Name    string
	Workers int
	Plans   []usecase.MetricPlan
}

// Command builds the run command for this project.
func (p *Project) Command(now time.Time) usecase.RunReportCommand {
	return usecase.RunReportCommand{
		Project: p.Name,
		Workers: p.Workers,
		Plans:   p.Plans,
		Now:     now,
	}
}

// Load reads and resolves the project file at path.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("project: read %q: %w", path, err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("project %q: %w", path, err)
	}
	return p, nil
}

// Parse resolves a project document.
func Parse(data []byte) (*Project, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return f.resolve()
}

func (f *File) resolve() (*Project, error) {
	if f.Workers < 0 {
		return nil, &valueobject.ConfigurationError{Field: "workers", Reason: "must not be negative"}
	}

	defs := make(map[string]*entity.MetricDefinition, len(f.Metrics))
	order := make([]string, 0, len(f.Metrics))
	for i, spec := range f.Metrics {
		def, err := entity.NewMetricDefinition(entity.MetricDefinitionParams{
			Kind:       spec.Kind,
			Name:       spec.Name,
			Direction:  valueobject.Direction(strings.ToLower(strings.TrimSpace(spec.Direction))),
			Target:     spec.Target,
			LowTarget:  spec.LowTarget,
			Perfect:    spec.Perfect,
			YellowTier: spec.YellowTier,
			Unit:       spec.Unit,
			MaxAge:     spec.MaxAge,
			Source:     spec.Source,
		})
		if err != nil {
			return nil, fmt.Errorf("metrics[%d]: %w", i, err)
		}
		if _, dup := defs[def.Kind()]; dup {
			return nil, &valueobject.ConfigurationError{Field: def.Kind(), Reason: "metric kind is defined twice"}
		}
		defs[def.Kind()] = def
		order = append(order, def.Kind())
	}

	p := &Project{Name: f.Name, Workers: f.Workers}
	for _, subject := range f.Subjects {
		kinds := subject.Metrics
		if len(kinds) == 0 {
			kinds = order
		}

		for kind := range subject.Overrides {
			if !contains(kinds, kind) {
				return nil, &valueobject.ConfigurationError{
					Field:  subject.Name + "." + kind,
					Reason: "override for a metric the subject does not measure",
				}
			}
		}

		for _, kind := range kinds {
			def, ok := defs[kind]
			if !ok {
				return nil, &valueobject.ConfigurationError{Field: subject.Name, Reason: fmt.Sprintf("unknown metric kind %q", kind)}
			}

			plan := usecase.MetricPlan{Subject: subject.Name, Definition: def}
			if o, ok := subject.Overrides[kind]; ok {
				if err := o.apply(&plan); err != nil {
					return nil, err
				}
			}
			p.Plans = append(p.Plans, plan)
		}
	}

	return p, nil
}

func (o Override) apply(plan *usecase.MetricPlan) error {
	field := plan.Definition.IDFor(plan.Subject)

	switch {
	case o.Dynamic != nil && (o.Target != nil || o.LowTarget != nil):
		return &valueobject.ConfigurationError{Field: field, Reason: "fixed and dynamic targets are mutually exclusive"}
	case o.Dynamic != nil:
		start, err := parseDate(o.Dynamic.Start.Date)
		if err != nil {
			return &valueobject.ConfigurationError{Field: field + ".dynamic.start.date", Reason: err.Error()}
		}
		end, err := parseDate(o.Dynamic.End.Date)
		if err != nil {
			return &valueobject.ConfigurationError{Field: field + ".dynamic.end.date", Reason: err.Error()}
		}
		policy, err := valueobject.NewDynamicTarget(
			o.Dynamic.Start.Target, o.Dynamic.Start.LowTarget, start,
			o.Dynamic.End.Target, o.Dynamic.End.LowTarget, end,
		)
		if err != nil {
			return err
		}
		plan.Policy = policy
	case o.Target != nil || o.LowTarget != nil:
		target, lowTarget := plan.Definition.Target(), plan.Definition.LowTarget()
		if o.Target != nil {
			target = *o.Target
		}
		if o.LowTarget != nil {
			lowTarget = *o.LowTarget
		}
		plan.Policy = valueobject.NewFixedTarget(target, lowTarget)
	}

	if o.Waiver != nil {
		var expires time.Time
		if o.Waiver.Expires != "" {
			t, err := parseDate(o.Waiver.Expires)
			if err != nil {
				return &valueobject.ConfigurationError{Field: field + ".waiver.expires", Reason: err.Error()}
			}
			expires = t
		}
		waiver, err := valueobject.NewTechnicalDebtWaiver(o.Waiver.AcceptedValue, o.Waiver.Explanation, expires)
		if err != nil {
			return &valueobject.ConfigurationError{Field: field + ".waiver", Reason: err.Error()}
		}
		plan.Waiver = waiver
	}

	return nil
}

// parseDate accepts a plain date or a full history timestamp.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t.UTC(), nil
	}
	return valueobject.ParseHistoryDate(raw)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
