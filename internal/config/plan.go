package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/emissions-import/internal/core"
)

// PlanFile overrides per-entity settings of the import plan.
//
//	entities:
//	  emission:
//	    source: emissions-2024.csv
//	    batch_size: 2000
type PlanFile struct {
	Entities map[string]EntityOverride `yaml:"entities"`
}

// EntityOverride replaces an entity's source file or batch size.
type EntityOverride struct {
	Source    string `yaml:"source"`
	BatchSize int    `yaml:"batch_size"`
}

// LoadPlan reads a plan override file. An empty path yields an empty plan.
func LoadPlan(path string) (*PlanFile, error) {
	if path == "" {
		return &PlanFile{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}
	return ParsePlan(data)
}

// ParsePlan decodes and validates plan YAML. Unknown keys are rejected.
func ParsePlan(data []byte) (*PlanFile, error) {
	var plan PlanFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// An empty document decodes to io.EOF.
	if err := dec.Decode(&plan); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse plan file: %w", err)
	}

	for key, o := range plan.Entities {
		if o.BatchSize < 0 {
			return nil, fmt.Errorf("plan file: entity %q: batch_size must be positive", key)
		}
	}
	return &plan, nil
}

// Overrides converts the plan into the form the import service takes.
func (p *PlanFile) Overrides() map[string]core.Override {
	if len(p.Entities) == 0 {
		return nil
	}
	out := make(map[string]core.Override, len(p.Entities))
	for key, o := range p.Entities {
		out[key] = core.Override{Source: o.Source, BatchSize: o.BatchSize}
	}
	return out
}
