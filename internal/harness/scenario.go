package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/avantgardnerio/hermitage/internal/annotation"
	"github.com/avantgardnerio/hermitage/internal/conflict"
)

// Scenario is one anomaly test: a flat script of annotated statements.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario demonstrates.
	Description string `yaml:"description"`

	// Anomaly is the anomaly class, e.g. "G0" or "G2-item".
	Anomaly string `yaml:"anomaly,omitempty"`

	// Backends restricts the scenario to the named backends.
	// Empty means every backend.
	Backends []string `yaml:"backends,omitempty"`

	// Isolation is the isolation level the script selects. Informational.
	Isolation string `yaml:"isolation,omitempty"`

	// StepDelay is slept between steps, overriding the harness default.
	StepDelay time.Duration `yaml:"step_delay,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Path is the file the scenario was loaded from.
	Path string `yaml:"-"`
}

// Step holds exactly one of Exec, Query, Block, Unblock or Pause.
type Step struct {
	Exec    string        `yaml:"exec,omitempty"`
	Query   string        `yaml:"query,omitempty"`
	Block   string        `yaml:"block,omitempty"`
	Unblock string        `yaml:"unblock,omitempty"`
	Pause   time.Duration `yaml:"pause,omitempty"`

	// Settle overrides the harness settle interval for an unblock step.
	Settle time.Duration `yaml:"settle,omitempty"`

	// ExpectError declares that the step's statement must fail.
	ExpectError *ErrorExpectation `yaml:"expect_error,omitempty"`

	// BlockedError declares that the statement released by an unblock step
	// must fail. Absent means it must succeed.
	BlockedError *ErrorExpectation `yaml:"blocked_error,omitempty"`
}

// Step kinds.
const (
	StepExec    = "exec"
	StepQuery   = "query"
	StepBlock   = "block"
	StepUnblock = "unblock"
	StepPause   = "pause"
)

// Kind returns which action the step holds, or "" if it holds none.
func (s Step) Kind() string {
	switch {
	case s.Exec != "":
		return StepExec
	case s.Query != "":
		return StepQuery
	case s.Block != "":
		return StepBlock
	case s.Unblock != "":
		return StepUnblock
	case s.Pause > 0:
		return StepPause
	default:
		return ""
	}
}

// Statement returns the step's SQL, empty for pauses.
func (s Step) Statement() string {
	return s.Exec + s.Query + s.Block + s.Unblock
}

func (s Step) actions() int {
	n := 0
	for _, set := range []bool{s.Exec != "", s.Query != "", s.Block != "", s.Unblock != "", s.Pause > 0} {
		if set {
			n++
		}
	}
	return n
}

// ErrorExpectation describes an expected backend error. Kind is matched
// through the backend's classifier, Contains against the raw message.
type ErrorExpectation struct {
	Kind     conflict.Kind `yaml:"kind,omitempty"`
	Contains string        `yaml:"contains,omitempty"`
}

func (e *ErrorExpectation) String() string {
	var parts []string
	if e.Kind != "" {
		parts = append(parts, "kind "+string(e.Kind))
	}
	if e.Contains != "" {
		parts = append(parts, fmt.Sprintf("message containing %q", e.Contains))
	}
	return "error with " + strings.Join(parts, " and ")
}

// AppliesTo reports whether the scenario runs on the named backend.
func (s *Scenario) AppliesTo(backend string) bool {
	if len(s.Backends) == 0 {
		return true
	}
	for _, b := range s.Backends {
		if strings.EqualFold(b, backend) {
			return true
		}
	}
	return false
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or has an invalid script.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "querry:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.Path = path

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml and *.yml file under dir, sorted by path.
// Load failures are joined so one bad file does not hide the others.
func LoadScenarios(dir string) ([]*Scenario, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	sort.Strings(paths)

	var (
		scenarios []*Scenario
		errs      []error
		seen      = make(map[string]string)
	)
	for _, path := range paths {
		sc, err := LoadScenario(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		if prev, ok := seen[sc.Name]; ok {
			errs = append(errs, fmt.Errorf("%s: duplicate scenario name %q (also in %s)", path, sc.Name, prev))
			continue
		}
		seen[sc.Name] = path
		scenarios = append(scenarios, sc)
	}
	return scenarios, errors.Join(errs...)
}

// Validate checks that every label fits a harness with the given number of
// sessions.
func (s *Scenario) Validate(sessions int) error {
	for i, step := range s.Steps {
		stmt := step.Statement()
		if stmt == "" {
			continue
		}
		label, err := annotation.ParseLabel(stmt)
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if label.Either && sessions < 2 {
			return fmt.Errorf("steps[%d]: either needs 2 sessions, have %d", i, sessions)
		}
		if !label.Either && label.Index > sessions {
			return fmt.Errorf("steps[%d]: %s exceeds the %d configured sessions", i, label, sessions)
		}
	}
	return nil
}

// validateScenario checks the scenario's structure and every annotation.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.StepDelay < 0 {
		return fmt.Errorf("step_delay must be non-negative")
	}

	var pending *annotation.Label
	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
		stmt := step.Statement()
		if stmt == "" {
			continue
		}

		ann, err := annotation.Parse(stmt)
		if err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		label := ann.Label

		switch step.Kind() {
		case StepBlock, StepUnblock:
			if label.Either {
				return fmt.Errorf("steps[%d]: %s statement must address a single session", i, step.Kind())
			}
		}

		switch step.Kind() {
		case StepBlock:
			if pending != nil {
				return fmt.Errorf("steps[%d]: block while %s is still blocked", i, pending)
			}
			pending = &label
		case StepUnblock:
			if pending == nil {
				return fmt.Errorf("steps[%d]: unblock without a preceding block", i)
			}
			if *pending == label {
				return fmt.Errorf("steps[%d]: %s cannot release itself", i, label)
			}
			pending = nil
		default:
			if pending != nil && (label == *pending || (label.Either && pending.Index <= 2)) {
				return fmt.Errorf("steps[%d]: %s is blocked until the next unblock", i, pending)
			}
		}
	}
	if pending != nil {
		return fmt.Errorf("%s is blocked but never released", pending)
	}
	return nil
}

func validateStep(i int, step Step) error {
	if n := step.actions(); n != 1 {
		return fmt.Errorf("steps[%d]: exactly one of exec, query, block, unblock, pause is required (got %d)", i, n)
	}
	if step.Pause < 0 || step.Settle < 0 {
		return fmt.Errorf("steps[%d]: durations must be non-negative", i)
	}

	kind := step.Kind()
	if step.Settle != 0 && kind != StepUnblock {
		return fmt.Errorf("steps[%d]: settle is only valid on unblock", i)
	}
	if step.BlockedError != nil && kind != StepUnblock {
		return fmt.Errorf("steps[%d]: blocked_error is only valid on unblock", i)
	}
	if step.ExpectError != nil && (kind == StepBlock || kind == StepPause) {
		return fmt.Errorf("steps[%d]: expect_error is not valid on %s", i, kind)
	}

	checks := []struct {
		name string
		exp  *ErrorExpectation
	}{
		{"expect_error", step.ExpectError},
		{"blocked_error", step.BlockedError},
	}
	for _, c := range checks {
		name, exp := c.name, c.exp
		if exp == nil {
			continue
		}
		if exp.Kind == "" && exp.Contains == "" {
			return fmt.Errorf("steps[%d].%s: kind or contains is required", i, name)
		}
		if exp.Kind != "" {
			kind, err := conflict.ParseKind(string(exp.Kind))
			if err != nil {
				return fmt.Errorf("steps[%d].%s: %w", i, name, err)
			}
			exp.Kind = kind
		}
	}
	return nil
}
