// Package file provides a value source backed by a YAML file of measured values:
//
//	measured_at: 2020-01-01T09:00:00Z
//	values:
//	  OpenBugs:
//	    Foo: 38
//	    Bar: null
//
// A null value or a missing kind/subject pair is reported as unavailable.
package file

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dreschagin/quality-history/internal/application/port"
	"github.com/dreschagin/quality-history/internal/domain/valueobject"
)

// Name is the source name metric definitions use to refer to the values file.
const Name = "file"

type valuesDocument struct {
	MeasuredAt time.Time                      `yaml:"measured_at"`
	Values     map[string]map[string]*float64 `yaml:"values"`
}

// Source serves values read once from a YAML file.
type Source struct {
	path       string
	measuredAt time.Time
	values     map[string]map[string]*float64
}

// NewSource reads the values file at path.
func NewSource(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read values file: %w", err)
	}
	return parse(path, data)
}

func parse(path string, data []byte) (*Source, error) {
	var doc valuesDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse values file %s: %w", path, err)
	}
	if doc.Values == nil {
		doc.Values = make(map[string]map[string]*float64)
	}
	return &Source{path: path, measuredAt: doc.MeasuredAt, values: doc.Values}, nil
}

func (s *Source) FetchValue(ctx context.Context, query port.ValueQuery) (port.FetchedValue, error) {
	if err := ctx.Err(); err != nil {
		return port.FetchedValue{}, err
	}

	value, ok := s.values[query.Kind][query.Subject]
	if !ok {
		return port.FetchedValue{}, fmt.Errorf("%s has no value for %s/%s: %w", s.path, query.Kind, query.Subject, port.ErrDataUnavailable)
	}

	fetched := port.FetchedValue{Value: valueobject.Unavailable(), MeasuredAt: s.measuredAt}
	if value != nil {
		fetched.Value = valueobject.NewMeasuredValue(*value)
	}
	return fetched, nil
}
