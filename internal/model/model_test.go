package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftExists(t *testing.T) {
	var nilDraft *Draft
	assert.False(t, nilDraft.Exists())
	assert.False(t, (&Draft{}).Exists())
	assert.False(t, (&Draft{Name: "   "}).Exists())
	assert.True(t, (&Draft{Name: "orders_model"}).Exists())
}

func TestDraftFileName(t *testing.T) {
	d := &Draft{Name: "Orders Model"}
	assert.Equal(t, "orders_model.yaml", d.FileName())

	d = &Draft{Name: "revenue.yaml"}
	assert.Equal(t, "revenue.yaml", d.FileName())
}

func TestDraftTableLookup(t *testing.T) {
	d := &Draft{
		Name:   "orders_model",
		Tables: []Table{{Name: "orders"}, {Name: "customers"}},
	}

	tbl := d.Table("customers")
	require.NotNil(t, tbl)
	assert.Equal(t, "customers", tbl.Name)

	assert.Nil(t, d.Table("missing"))

	// Lookup returns a pointer into the draft, so edits stick.
	tbl.Description = "one row per customer"
	assert.Equal(t, "one row per customer", d.Tables[1].Description)
}

func TestDraftClone(t *testing.T) {
	d := &Draft{
		Name: "orders_model",
		Tables: []Table{{
			Name:       "orders",
			BaseTable:  TableRef{Database: "ANALYTICS", Schema: "SEMANTIC", Table: "ORDERS"},
			Dimensions: []Dimension{{Name: "status", Synonyms: []string{"state"}}},
			Measures:   []Measure{{Name: "amount", DefaultAggregation: "sum"}},
		}},
	}

	clone := d.Clone()
	require.Equal(t, d, clone)

	clone.Tables[0].Dimensions[0].Synonyms[0] = "mutated"
	clone.Tables[0].Name = "renamed"
	assert.Equal(t, "state", d.Tables[0].Dimensions[0].Synonyms[0])
	assert.Equal(t, "orders", d.Tables[0].Name)
}

func TestYAMLRoundTrip(t *testing.T) {
	d := &Draft{
		Name:        "orders_model",
		Description: "order analytics",
		Tables: []Table{{
			Name:      "orders",
			BaseTable: TableRef{Database: "ANALYTICS", Schema: "SEMANTIC", Table: "ORDERS"},
			TimeDimensions: []TimeDimension{
				{Name: "ordered_at", Expr: "ordered_at"},
			},
		}},
	}

	text, err := ToYAML(d)
	require.NoError(t, err)
	assert.Contains(t, text, "name: orders_model")
	assert.Contains(t, text, "base_table:")

	parsed, err := FromYAML(text)
	require.NoError(t, err)
	assert.Equal(t, d, parsed)
}

func TestFromYAMLInvalid(t *testing.T) {
	_, err := FromYAML("tables: {not: [valid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse model")
}
