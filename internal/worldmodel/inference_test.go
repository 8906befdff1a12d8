package worldmodel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoutdb/scoutdb/pkg/types"
)

func TestClassifyObservation(t *testing.T) {
	cases := []struct {
		key, value string
		want       types.EntityType
	}{
		{"price", "$29.99", types.EntityPrice},
		{"sale_price", "19.99", types.EntityPrice},
		{"vendor", "Acme Flowers", types.EntityVendor},
		{"brand", "Acme", types.EntityVendor},
		{"city", "Portland", types.EntityLocation},
		{"published_date", "2026-01-15", types.EntityDate},
		{"in_stock", "true", types.EntityAvailability},
		{"category", "Bouquets", types.EntityCategory},
		{"msrp_display", "$49.00", types.EntityPrice},
		{"description", "A dozen red roses", types.EntityProduct},
		// Ambiguous keys fall back to value shape.
		{"listed", "2026-01-15", types.EntityDate},
		{"mystery", "€12.50", types.EntityPrice},
	}
	for _, c := range cases {
		got := classifyObservation(types.Observation{Key: c.key, Value: c.value})
		assert.Equal(t, c.want, got, "key=%s value=%s", c.key, c.value)
	}
}

func TestParseValue(t *testing.T) {
	assert.True(t, parseValue("true").Equal(types.BoolValue(true)))
	assert.True(t, parseValue("No").Equal(types.BoolValue(false)))
	assert.True(t, parseValue("29.99").Equal(types.NumberValue(29.99)))
	assert.True(t, parseValue("$29.99").Equal(types.StringValue("$29.99")))
	assert.True(t, parseValue("red").Equal(types.StringValue("red")))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "rose-bouquet", slugify("Rose Bouquet"))
	assert.Equal(t, "29-99", slugify("$29.99"))
	assert.Equal(t, "flowers-example-com", slugify("flowers.example.com"))
}

func flowerPage() *types.ScrapedData {
	return &types.ScrapedData{
		URL:       "https://flowers.example.com/roses",
		Domain:    "flowers.example.com",
		Timestamp: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
		Extracted: []types.Observation{
			{Key: "name", Value: "Rose Bouquet"},
			{Key: "price", Value: "$29.99"},
			{Key: "vendor", Value: "Acme Flowers"},
			{Key: "category", Value: "Bouquets"},
			{Key: "color", Value: "red"},
		},
		Confidence: 0.9,
		Goal:       "find rose bouquet prices",
	}
}

func TestInferRecords(t *testing.T) {
	inf := inferRecords(flowerPage())

	require.NotNil(t, inf.primary)
	assert.Equal(t, types.EntityProduct, inf.primary.Type)
	assert.Equal(t, "Rose Bouquet", inf.primary.Name)
	assert.Equal(t, "ent:product:flowers-example-com:rose-bouquet", inf.primary.ID)

	// Primary + price + vendor + category. The color observation stays a
	// property on the primary, not an entity of its own.
	require.Len(t, inf.entities, 4)
	assert.True(t, inf.primary.Properties["color"].Equal(types.StringValue("red")))

	byType := map[types.EntityType]*types.Entity{}
	for _, e := range inf.entities {
		byType[e.Type] = e
	}
	require.Contains(t, byType, types.EntityPrice)
	require.Contains(t, byType, types.EntityVendor)
	require.Contains(t, byType, types.EntityCategory)

	// One edge per secondary entity, drawn from the primary.
	require.Len(t, inf.relationships, 3)
	edges := map[types.RelationType]*types.Relationship{}
	for _, r := range inf.relationships {
		edges[r.Type] = r
		assert.Equal(t, inf.primary.ID, r.Source)
	}
	assert.Equal(t, byType[types.EntityPrice].ID, edges[types.RelPricedAt].Target)
	assert.Equal(t, byType[types.EntityVendor].ID, edges[types.RelSoldBy].Target)
	assert.Equal(t, byType[types.EntityCategory].ID, edges[types.RelCategoryOf].Target)

	// Every observation becomes a fact on the primary.
	require.Len(t, inf.facts, 5)
	for _, f := range inf.facts {
		assert.Equal(t, inf.primary.ID, f.Subject)
	}
}

func TestInferRecordsDeterministic(t *testing.T) {
	a := inferRecords(flowerPage())
	b := inferRecords(flowerPage())

	require.Len(t, b.entities, len(a.entities))
	for i := range a.entities {
		assert.Equal(t, a.entities[i].ID, b.entities[i].ID)
	}
	require.Len(t, b.relationships, len(a.relationships))
	for i := range a.relationships {
		assert.Equal(t, a.relationships[i].ID, b.relationships[i].ID)
	}
	require.Len(t, b.facts, len(a.facts))
	for i := range a.facts {
		assert.Equal(t, a.facts[i].ID, b.facts[i].ID)
	}
}

func TestInferRecordsVendorLocation(t *testing.T) {
	inf := inferRecords(&types.ScrapedData{
		URL:    "https://flowers.example.com/about",
		Domain: "flowers.example.com",
		Extracted: []types.Observation{
			{Key: "vendor", Value: "Acme Flowers"},
			{Key: "city", Value: "Portland"},
		},
		Confidence: 0.8,
	})

	var found *types.Relationship
	for _, r := range inf.relationships {
		if r.Type == types.RelLocatedIn && r.Source != inf.primary.ID {
			found = r
		}
	}
	require.NotNil(t, found, "vendor should be located in the observed city")
	assert.Contains(t, found.Source, "ent:vendor:")
	assert.Contains(t, found.Target, "ent:location:")
}

func TestInferRecordsFallbackName(t *testing.T) {
	inf := inferRecords(&types.ScrapedData{
		URL:    "https://flowers.example.com",
		Domain: "flowers.example.com",
		Extracted: []types.Observation{
			{Key: "price", Value: "$5.00"},
		},
		Goal: "track homepage deals",
	})
	assert.Equal(t, "track homepage deals", inf.primary.Name)

	inf = inferRecords(&types.ScrapedData{
		URL:    "https://flowers.example.com",
		Domain: "flowers.example.com",
		Extracted: []types.Observation{
			{Key: "price", Value: "$5.00"},
		},
	})
	assert.Equal(t, "flowers.example.com", inf.primary.Name)
}

func TestInferRecordsSkipsEmptyObservations(t *testing.T) {
	inf := inferRecords(&types.ScrapedData{
		URL:    "https://flowers.example.com",
		Domain: "flowers.example.com",
		Extracted: []types.Observation{
			{Key: "name", Value: "Tulips"},
			{Key: "price", Value: ""},
			{Key: "", Value: "stray"},
		},
	})
	assert.Len(t, inf.facts, 1)
	assert.Len(t, inf.entities, 1)
}
