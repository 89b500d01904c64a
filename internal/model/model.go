// Package model defines the in-progress semantic model draft and its
// YAML artifact form. The draft is owned by a workflow session and is
// only mutated through the session's editing operations.
package model

import (
	"fmt"
	"strings"
)

// TableRef is the fully qualified physical table a logical table reads from.
type TableRef struct {
	Database string `yaml:"database"`
	Schema   string `yaml:"schema"`
	Table    string `yaml:"table"`
}

// String returns the dotted form of the reference.
func (r TableRef) String() string {
	return fmt.Sprintf("%s.%s.%s", r.Database, r.Schema, r.Table)
}

// Dimension is a categorical column exposed to the assistant.
type Dimension struct {
	Name        string   `yaml:"name"`
	Expr        string   `yaml:"expr,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Synonyms    []string `yaml:"synonyms,omitempty"`
	Unique      bool     `yaml:"unique,omitempty"`
}

// TimeDimension is a time-typed column exposed to the assistant.
type TimeDimension struct {
	Name        string   `yaml:"name"`
	Expr        string   `yaml:"expr,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Synonyms    []string `yaml:"synonyms,omitempty"`
}

// Measure is a numeric column with an optional default aggregation.
type Measure struct {
	Name               string   `yaml:"name"`
	Expr               string   `yaml:"expr,omitempty"`
	Description        string   `yaml:"description,omitempty"`
	Synonyms           []string `yaml:"synonyms,omitempty"`
	DefaultAggregation string   `yaml:"default_aggregation,omitempty"`
}

// Table is one logical table in the draft.
type Table struct {
	Name           string          `yaml:"name"`
	BaseTable      TableRef        `yaml:"base_table"`
	Description    string          `yaml:"description,omitempty"`
	Synonyms       []string        `yaml:"synonyms,omitempty"`
	Dimensions     []Dimension     `yaml:"dimensions,omitempty"`
	TimeDimensions []TimeDimension `yaml:"time_dimensions,omitempty"`
	Measures       []Measure       `yaml:"measures,omitempty"`
}

// Draft is the in-progress, not-yet-uploaded semantic model.
type Draft struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description,omitempty"`
	Tables      []Table `yaml:"tables,omitempty"`
}

// Exists reports whether the draft is meaningfully started:
// present with a non-empty name.
func (d *Draft) Exists() bool {
	return d != nil && strings.TrimSpace(d.Name) != ""
}

// FileName derives the artifact file name from the model name:
// lowercased, spaces replaced with underscores, ".yaml" suffix.
func (d *Draft) FileName() string {
	name := strings.ToLower(strings.ReplaceAll(d.Name, " ", "_"))
	if !strings.HasSuffix(name, ".yaml") {
		name += ".yaml"
	}
	return name
}

// Table returns the named table, or nil if the draft has no such table.
func (d *Draft) Table(name string) *Table {
	for i := range d.Tables {
		if d.Tables[i].Name == name {
			return &d.Tables[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the draft. Curation attempts operate on a
// clone so a failed attempt can never disturb the session's draft.
func (d *Draft) Clone() *Draft {
	if d == nil {
		return nil
	}
	out := &Draft{Name: d.Name, Description: d.Description}
	if d.Tables != nil {
		out.Tables = make([]Table, len(d.Tables))
		for i, t := range d.Tables {
			out.Tables[i] = cloneTable(t)
		}
	}
	return out
}

func cloneTable(t Table) Table {
	out := t
	out.Synonyms = append([]string(nil), t.Synonyms...)
	out.Dimensions = append([]Dimension(nil), t.Dimensions...)
	out.TimeDimensions = append([]TimeDimension(nil), t.TimeDimensions...)
	out.Measures = append([]Measure(nil), t.Measures...)
	for i := range out.Dimensions {
		out.Dimensions[i].Synonyms = append([]string(nil), out.Dimensions[i].Synonyms...)
	}
	for i := range out.TimeDimensions {
		out.TimeDimensions[i].Synonyms = append([]string(nil), out.TimeDimensions[i].Synonyms...)
	}
	for i := range out.Measures {
		out.Measures[i].Synonyms = append([]string(nil), out.Measures[i].Synonyms...)
	}
	return out
}
