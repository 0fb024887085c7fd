package template

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultTemplateID is the layout used whenever a requested id is unknown.
const DefaultTemplateID = 1

// Section names a layout block of the document.
type Section string

const (
	SectionHeader    Section = "header"
	SectionParties   Section = "parties"
	SectionItems     Section = "items"
	SectionSummary   Section = "summary"
	SectionPayment   Section = "payment"
	SectionSignature Section = "signature"
	SectionNotes     Section = "notes"
)

var knownSections = map[Section]bool{
	SectionHeader: true, SectionParties: true, SectionItems: true, SectionSummary: true,
	SectionPayment: true, SectionSignature: true, SectionNotes: true,
}

type Typography struct {
	Font        string  `yaml:"font"`
	BaseSize    float64 `yaml:"base_size"`
	HeadingSize float64 `yaml:"heading_size"`
}

// Definition is a document layout.
type Definition struct {
	ID              int        `yaml:"id"`
	Name            string     `yaml:"name"`
	Version         int        `yaml:"version"`
	Sections        []Section  `yaml:"sections"`
	Typography      Typography `yaml:"typography"`
	Accent          []int      `yaml:"accent"`        // RGB
	AlignParties    string     `yaml:"align_parties"` // left or split
	ShowSignature   bool       `yaml:"show_signature"`
	ShowPaymentInfo bool       `yaml:"show_payment_info"`
	ShowNotes       bool       `yaml:"show_notes"`
}

// Shows reports whether the section is part of the layout and enabled.
func (d Definition) Shows(s Section) bool {
	switch s {
	case SectionSignature:
		if !d.ShowSignature {
			return false
		}
	case SectionPayment:
		if !d.ShowPaymentInfo {
			return false
		}
	case SectionNotes:
		if !d.ShowNotes {
			return false
		}
	}
	for _, sec := range d.Sections {
		if sec == s {
			return true
		}
	}
	return false
}

// UnknownTemplateError is returned for ids outside the table. It is
// recoverable: callers fall back to DefaultTemplateID.
type UnknownTemplateError struct {
	ID int
}

func (e *UnknownTemplateError) Error() string {
	return fmt.Sprintf("unknown pdf template %d", e.ID)
}

// Registry is an immutable id -> layout table.
type Registry struct {
	defs map[int]Definition
}

type file struct {
	Templates []Definition `yaml:"templates"`
}

// Parse builds a registry from YAML.
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse template table: %w", err)
	}

	defs := make(map[int]Definition, len(f.Templates))
	for _, def := range f.Templates {
		if def.ID <= 0 {
			return nil, fmt.Errorf("template %q: id must be positive", def.Name)
		}
		if _, dup := defs[def.ID]; dup {
			return nil, fmt.Errorf("template id %d declared twice", def.ID)
		}
		for _, s := range def.Sections {
			if !knownSections[s] {
				return nil, fmt.Errorf("template %d: unknown section %q", def.ID, s)
			}
		}
		defs[def.ID] = def
	}
	return &Registry{defs: defs}, nil
}

// Resolve returns the layout for id or *UnknownTemplateError.
func (r *Registry) Resolve(id int) (Definition, error) {
	if r != nil {
		if def, ok := r.defs[id]; ok {
			return def, nil
		}
	}
	return Definition{}, &UnknownTemplateError{ID: id}
}

// IDs lists the known template ids in ascending order.
func (r *Registry) IDs() []int {
	ids := make([]int, 0, len(r.defs))
	for id := range r.defs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

//go:embed templates.yaml
var builtin []byte

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the built-in table, parsed once per process.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := Parse(builtin)
		if err != nil {
			panic(err) // embedded table is part of the build
		}
		defaultReg = reg
	})
	return defaultReg
}
