package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/scoutdb/scoutdb/pkg/types"
)

func TestRenderEntity(t *testing.T) {
	e := &types.Entity{
		ID: "e1", Type: types.EntityProduct, Name: "Rose Bouquet",
		Properties: map[string]types.Value{
			"stems": types.NumberValue(12),
			"color": types.StringValue("red"),
		},
		SourceURL:   "https://flowers.example.com/roses",
		ExtractedAt: time.Now(),
	}

	got := RenderEntity(e)
	assert.Equal(t, `product "Rose Bouquet" with color=red, stems=12 from https://flowers.example.com/roses`, got)
}

func TestRenderEntityBare(t *testing.T) {
	e := &types.Entity{ID: "e1", Type: types.EntityVendor, Name: "Acme Flowers"}
	assert.Equal(t, `vendor "Acme Flowers"`, RenderEntity(e))
}

func TestRenderRelationship(t *testing.T) {
	r := &types.Relationship{
		ID: "r1", Type: types.RelSoldBy, Source: "e1", Target: "e2",
		SourceURL: "https://flowers.example.com",
	}
	assert.Equal(t, "e1 SOLD_BY e2 from https://flowers.example.com", RenderRelationship(r))
}

func TestRenderFact(t *testing.T) {
	f := &types.Fact{
		ID: "f1", Subject: "e1", Predicate: "price", Object: types.StringValue("$29.99"),
	}
	assert.Equal(t, "e1 price $29.99", RenderFact(f))
}
