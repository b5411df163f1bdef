/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package seed

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidCatalog = errors.New("invalid seed catalog")

//go:embed data/catalog.yaml
var defaultCatalog []byte

type FieldSpec struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type LecturerSpec struct {
	Name        string `yaml:"name"`
	Email       string `yaml:"email"`
	MaxStudents int    `yaml:"max_students"`
}

// Rule qualifies every listed lecturer for every listed field.
type Rule struct {
	Lecturers []string `yaml:"lecturers"`
	Fields    []string `yaml:"fields"`
}

// Pair is one lecturer/field qualification by natural keys.
type Pair struct {
	Email string
	Code  string
}

// Expand returns the cross product of the rule's lecturers and fields.
func (r Rule) Expand() []Pair {
	pairs := make([]Pair, 0, len(r.Lecturers)*len(r.Fields))
	for _, email := range r.Lecturers {
		for _, code := range r.Fields {
			pairs = append(pairs, Pair{Email: email, Code: code})
		}
	}
	return pairs
}

// Qualifications are applied core first, then generalists.
type Qualifications struct {
	Core        []Rule `yaml:"core"`
	Generalists []Rule `yaml:"generalists"`
}

// Catalog is the versioned seed document.
type Catalog struct {
	Version        int            `yaml:"version"`
	Fields         []FieldSpec    `yaml:"fields"`
	Lecturers      []LecturerSpec `yaml:"lecturers"`
	Qualifications Qualifications `yaml:"qualifications"`
}

// DefaultCatalog parses the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog reads a catalog from path, or the embedded one when path is
// empty. The result is validated.
func LoadCatalog(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read seed catalog %s: %w", path, err)
		}
		data = b
	}
	c, err := ParseCatalog(data)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// ParseCatalog decodes a YAML catalog. Unknown keys are rejected.
func ParseCatalog(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return &c, nil
}

// Rules returns every rule in application order.
func (c *Catalog) Rules() []Rule {
	rules := make([]Rule, 0, len(c.Qualifications.Core)+len(c.Qualifications.Generalists))
	rules = append(rules, c.Qualifications.Core...)
	return append(rules, c.Qualifications.Generalists...)
}

// Pairs expands all rules in application order.
func (c *Catalog) Pairs() []Pair {
	var pairs []Pair
	for _, r := range c.Rules() {
		pairs = append(pairs, r.Expand()...)
	}
	return pairs
}

// Validate checks natural keys are unique, rules only reference catalog
// entries and every lecturer on the roster is covered by some rule.
func (c *Catalog) Validate() error {
	var problems []error
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if c.Version < 1 {
		add("unsupported version %d", c.Version)
	}
	if len(c.Fields) == 0 {
		add("no fields")
	}
	if len(c.Lecturers) == 0 {
		add("no lecturers")
	}

	codes := make(map[string]bool, len(c.Fields))
	for i, f := range c.Fields {
		switch {
		case strings.TrimSpace(f.Code) == "":
			add("field %d has no code", i+1)
		case codes[f.Code]:
			add("duplicate field code %q", f.Code)
		case strings.TrimSpace(f.Name) == "":
			add("field %q has no name", f.Code)
		}
		codes[f.Code] = true
	}

	emails := make(map[string]bool, len(c.Lecturers))
	for i, l := range c.Lecturers {
		switch {
		case strings.TrimSpace(l.Email) == "":
			add("lecturer %d has no email", i+1)
		case emails[l.Email]:
			add("duplicate lecturer email %q", l.Email)
		case l.MaxStudents < 1:
			add("lecturer %q has max_students %d", l.Email, l.MaxStudents)
		}
		emails[l.Email] = true
	}

	covered := make(map[string]bool, len(c.Lecturers))
	for i, r := range c.Rules() {
		if len(r.Lecturers) == 0 || len(r.Fields) == 0 {
			add("rule %d is empty", i+1)
		}
		for _, email := range r.Lecturers {
			if !emails[email] {
				add("rule %d names unknown lecturer %q", i+1, email)
			}
			covered[email] = true
		}
		for _, code := range r.Fields {
			if !codes[code] {
				add("rule %d names unknown field %q", i+1, code)
			}
		}
	}
	for _, l := range c.Lecturers {
		if l.Email != "" && !covered[l.Email] {
			add("lecturer %q has no qualification rule", l.Email)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidCatalog, errors.Join(problems...))
	}
	return nil
}
