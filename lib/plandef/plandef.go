// Copyright 2026 The Vessel Authors
// SPDX-License-Identifier: Apache-2.0

// Package plandef provides parsing, validation, and defaulting for
// Vessel build plans. A plan is an ordered list of named build steps,
// authored on disk as YAML or as JSONC (JSON extended with comments
// and trailing commas); the two formats decode into the same
// structures.
//
// The typical flow:
//
//  1. ReadFile or Parse: bytes → Plan
//  2. Validate: structural checks, returned as a list of issues
//  3. Steps: defaulted, validated Plan → executable buildstep values
//
// By the time a buildstep value exists, every field has been
// validated and defaulted — the step implementations assume it.
package plandef

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/vessel-build/vessel/lib/buildstep"
	"github.com/vessel-build/vessel/lib/pathfilter"
)

// Plan is one parsed build plan.
type Plan struct {
	Steps []StepDef `yaml:"steps" json:"steps"`
}

// StepDef is one plan entry. Exactly one of the step-kind fields is
// set.
type StepDef struct {
	// Name identifies the step in diagnostics and in the fingerprint
	// index. Required, unique within the plan.
	Name string `yaml:"name" json:"name"`

	Depends *DependsDef `yaml:"depends,omitempty" json:"depends,omitempty"`
	Copy    *CopyDef    `yaml:"copy,omitempty" json:"copy,omitempty"`
}

// FilterDef is the shared filter configuration of both step kinds.
type FilterDef struct {
	Rules          []string `yaml:"rules,omitempty" json:"rules,omitempty"`
	NoDefaultRules bool     `yaml:"no_default_rules,omitempty" json:"no_default_rules,omitempty"`
	IgnoreRegex    string   `yaml:"ignore_regex,omitempty" json:"ignore_regex,omitempty"`
	IncludeRegex   string   `yaml:"include_regex,omitempty" json:"include_regex,omitempty"`
}

// DependsDef configures a Depends step.
type DependsDef struct {
	// Path is relative to the workspace root.
	Path      string `yaml:"path" json:"path"`
	FilterDef `yaml:",inline"`
}

// CopyDef configures a Copy step.
type CopyDef struct {
	Source string `yaml:"source" json:"source"`
	Path   string `yaml:"path" json:"path"`

	OwnerUID *int `yaml:"owner_uid,omitempty" json:"owner_uid,omitempty"`
	OwnerGID *int `yaml:"owner_gid,omitempty" json:"owner_gid,omitempty"`

	// Umask defaults to 0o002 when absent. YAML octal form: 0o022.
	Umask *int `yaml:"umask,omitempty" json:"umask,omitempty"`

	PreservePermissions bool `yaml:"preserve_permissions,omitempty" json:"preserve_permissions,omitempty"`
	FilterDef           `yaml:",inline"`
}

// Parse decodes a YAML plan.
func Parse(data []byte) (*Plan, error) {
	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("parsing plan: %w", err)
	}
	return &plan, nil
}

// ParseJSONC strips comments and trailing commas from data, then
// decodes the remaining JSON plan.
func ParseJSONC(data []byte) (*Plan, error) {
	var plan Plan
	if err := json.Unmarshal(jsonc.ToJSON(data), &plan); err != nil {
		return nil, fmt.Errorf("parsing plan: %w", err)
	}
	return &plan, nil
}

// ReadFile reads a plan from disk, dispatching on the file extension:
// .json and .jsonc are JSONC, everything else is YAML.
func ReadFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var plan *Plan
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		plan, err = ParseJSONC(data)
	default:
		plan, err = Parse(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return plan, nil
}

// Validate checks a Plan for structural issues. Returns human-readable
// issue descriptions; an empty list means the plan is valid. Filter
// rule compilation errors surface here too, so a bad plan fails before
// any filesystem access.
func Validate(plan *Plan) []string {
	var issues []string

	if len(plan.Steps) == 0 {
		issues = append(issues, "plan has no steps (at least one step is required)")
	}

	seen := make(map[string]bool)
	for index, step := range plan.Steps {
		prefix := fmt.Sprintf("steps[%d]", index)

		if step.Name == "" {
			issues = append(issues, fmt.Sprintf("%s: name is required", prefix))
		} else {
			prefix = fmt.Sprintf("steps[%d] %q", index, step.Name)
			if seen[step.Name] {
				issues = append(issues, fmt.Sprintf("%s: duplicate step name", prefix))
			}
			seen[step.Name] = true
		}

		hasDepends := step.Depends != nil
		hasCopy := step.Copy != nil
		switch {
		case hasDepends && hasCopy:
			issues = append(issues, fmt.Sprintf("%s: depends and copy are mutually exclusive (set exactly one)", prefix))
			continue
		case !hasDepends && !hasCopy:
			issues = append(issues, fmt.Sprintf("%s: must set either depends or copy", prefix))
			continue
		}

		if hasDepends {
			issues = append(issues, validateDepends(prefix, step.Depends)...)
		} else {
			issues = append(issues, validateCopy(prefix, step.Copy)...)
		}
	}

	return issues
}

func validateDepends(prefix string, def *DependsDef) []string {
	var issues []string
	switch {
	case def.Path == "":
		issues = append(issues, fmt.Sprintf("%s: path is required", prefix))
	case strings.HasPrefix(def.Path, "/"):
		issues = append(issues, fmt.Sprintf("%s: path must be relative to the workspace root", prefix))
	case def.Path == ".." || strings.HasPrefix(def.Path, "../"):
		issues = append(issues, fmt.Sprintf("%s: path must not escape the workspace root", prefix))
	}
	issues = append(issues, validateFilter(prefix, def.FilterDef)...)
	return issues
}

func validateCopy(prefix string, def *CopyDef) []string {
	var issues []string
	if def.Source == "" {
		issues = append(issues, fmt.Sprintf("%s: source is required", prefix))
	} else if !strings.HasPrefix(def.Source, "/") {
		issues = append(issues, fmt.Sprintf("%s: source must be an absolute path", prefix))
	}
	if def.Path == "" {
		issues = append(issues, fmt.Sprintf("%s: path is required", prefix))
	} else if !strings.HasPrefix(def.Path, "/") {
		issues = append(issues, fmt.Sprintf("%s: path must be an absolute destination", prefix))
	}
	if def.OwnerUID != nil && *def.OwnerUID < 0 {
		issues = append(issues, fmt.Sprintf("%s: owner_uid must be >= 0", prefix))
	}
	if def.OwnerGID != nil && *def.OwnerGID < 0 {
		issues = append(issues, fmt.Sprintf("%s: owner_gid must be >= 0", prefix))
	}
	if def.Umask != nil && (*def.Umask < 0 || *def.Umask > 0o777) {
		issues = append(issues, fmt.Sprintf("%s: umask must be between 0 and 0o777", prefix))
	}
	issues = append(issues, validateFilter(prefix, def.FilterDef)...)
	return issues
}

func validateFilter(prefix string, def FilterDef) []string {
	_, err := pathfilter.Compile(ruleSet(def))
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", prefix, err)}
	}
	return nil
}

func ruleSet(def FilterDef) pathfilter.RuleSet {
	return pathfilter.RuleSet{
		Rules:          def.Rules,
		NoDefaultRules: def.NoDefaultRules,
		IgnoreRegex:    def.IgnoreRegex,
		IncludeRegex:   def.IncludeRegex,
	}
}

// NamedStep pairs a plan-level step name with its executable step.
type NamedStep struct {
	Name string
	Step buildstep.Step
}

// Steps converts a validated plan into executable steps, applying
// defaults (umask 0o002). Returns an error listing every validation
// issue if the plan is not valid.
func Steps(plan *Plan) ([]NamedStep, error) {
	if issues := Validate(plan); len(issues) > 0 {
		return nil, fmt.Errorf("invalid plan:\n  %s", strings.Join(issues, "\n  "))
	}

	steps := make([]NamedStep, 0, len(plan.Steps))
	for _, def := range plan.Steps {
		var step buildstep.Step
		if def.Depends != nil {
			step = &buildstep.Depends{
				Path:   def.Depends.Path,
				Filter: ruleSet(def.Depends.FilterDef),
			}
		} else {
			umask := buildstep.DefaultUmask
			if def.Copy.Umask != nil {
				umask = fs.FileMode(*def.Copy.Umask)
			}
			step = &buildstep.Copy{
				Source:              def.Copy.Source,
				Path:                def.Copy.Path,
				OwnerUID:            def.Copy.OwnerUID,
				OwnerGID:            def.Copy.OwnerGID,
				Umask:               umask,
				PreservePermissions: def.Copy.PreservePermissions,
				Filter:              ruleSet(def.Copy.FilterDef),
			}
		}
		steps = append(steps, NamedStep{Name: def.Name, Step: step})
	}
	return steps, nil
}
