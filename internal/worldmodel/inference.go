package worldmodel

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/scoutdb/scoutdb/pkg/types"
)

// typeKeywords maps observation-key substrings to entity types. The first
// matching type in checkOrder wins, so more specific vocabularies are listed
// before the generic ones.
var typeKeywords = map[types.EntityType][]string{
	types.EntityPrice:        {"price", "cost", "amount", "fee", "total", "msrp"},
	types.EntityVendor:       {"vendor", "seller", "merchant", "brand", "store", "shop", "manufacturer"},
	types.EntityLocation:     {"location", "address", "city", "country", "region", "warehouse"},
	types.EntityDate:         {"date", "published", "updated", "released", "expires"},
	types.EntityAvailability: {"availability", "stock", "in_stock", "available", "inventory"},
	types.EntityCategory:     {"category", "tag", "genre", "department", "section", "collection"},
}

var checkOrder = []types.EntityType{
	types.EntityPrice,
	types.EntityVendor,
	types.EntityLocation,
	types.EntityDate,
	types.EntityAvailability,
	types.EntityCategory,
}

// nameKeys mark the observation that names the page's primary product.
var nameKeys = map[string]struct{}{
	"name": {}, "title": {}, "product": {}, "product_name": {}, "item": {},
}

var moneyPattern = regexp.MustCompile(`^[$€£¥]\s?\d|^\d+([.,]\d+)?\s?(USD|EUR|GBP|usd|eur|gbp)$`)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
}

// classifyObservation infers an entity type from the observation key and,
// when the key is ambiguous, from the shape of the value.
func classifyObservation(obs types.Observation) types.EntityType {
	key := strings.ToLower(obs.Key)
	for _, t := range checkOrder {
		for _, kw := range typeKeywords[t] {
			if strings.Contains(key, kw) {
				return t
			}
		}
	}
	if moneyPattern.MatchString(strings.TrimSpace(obs.Value)) {
		return types.EntityPrice
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, strings.TrimSpace(obs.Value)); err == nil {
			return types.EntityDate
		}
	}
	return types.EntityProduct
}

// parseValue turns a raw observation string into a typed value.
func parseValue(s string) types.Value {
	trimmed := strings.TrimSpace(s)
	switch strings.ToLower(trimmed) {
	case "true", "yes":
		return types.BoolValue(true)
	case "false", "no":
		return types.BoolValue(false)
	}
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return types.NumberValue(n)
	}
	return types.StringValue(s)
}

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// slugify lowercases a display string into an id-safe fragment.
func slugify(s string) string {
	slug := slugStrip.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(slug, "-")
}

// shortHash returns a 12-hex-digit digest of the joined parts, enough to keep
// deterministic ids short while making collisions implausible at this scale.
func shortHash(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:12]
}

// entityID builds a deterministic id so the same real-world thing observed
// twice on one domain upserts instead of duplicating. The domain is part of
// the id on purpose: the same product name on two sites stays two entities,
// and the duplicate-entity audit rule is what ties them together.
func entityID(t types.EntityType, domain, name string) string {
	return "ent:" + string(t) + ":" + slugify(domain) + ":" + slugify(name)
}

func relationshipID(t types.RelationType, source, target string) string {
	return "rel:" + strings.ToLower(string(t)) + ":" + shortHash(source, target)
}

func factID(subject, predicate string) string {
	return "fct:" + shortHash(subject, predicate)
}

// primaryRelation maps a secondary entity type to the edge drawn from the
// page's primary product entity. Date entities carry no edge; the fact record
// already ties them to the product.
var primaryRelation = map[types.EntityType]types.RelationType{
	types.EntityVendor:       types.RelSoldBy,
	types.EntityPrice:        types.RelPricedAt,
	types.EntityCategory:     types.RelCategoryOf,
	types.EntityAvailability: types.RelAvailableAt,
	types.EntityLocation:     types.RelLocatedIn,
}

// inferred is the typed output of one inference pass over a scraped episode.
type inferred struct {
	entities      []*types.Entity
	relationships []*types.Relationship
	facts         []*types.Fact
	primary       *types.Entity
}

// inferRecords turns raw observations into typed entities, relationships, and
// facts. Every episode produces one primary product entity (named by a
// name/title observation, falling back to the extraction goal, then the
// domain); every observation becomes a fact on it; observations classified as
// other entity types additionally become secondary entities linked to the
// primary by the type-pair compatibility table.
func inferRecords(data *types.ScrapedData) *inferred {
	ts := data.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	confidence := data.Confidence
	if confidence <= 0 {
		confidence = 0.5
	}

	primaryName := ""
	for _, obs := range data.Extracted {
		if _, ok := nameKeys[strings.ToLower(obs.Key)]; ok && obs.Value != "" {
			primaryName = obs.Value
			break
		}
	}
	if primaryName == "" {
		primaryName = data.Goal
	}
	if primaryName == "" {
		primaryName = data.Domain
	}

	primary := &types.Entity{
		ID:          entityID(types.EntityProduct, data.Domain, primaryName),
		Type:        types.EntityProduct,
		Name:        primaryName,
		Properties:  map[string]types.Value{},
		Confidence:  confidence,
		SourceURL:   data.URL,
		ExtractedAt: ts,
		LastUpdated: ts,
	}

	inf := &inferred{primary: primary, entities: []*types.Entity{primary}}
	var vendor, location *types.Entity

	for _, obs := range data.Extracted {
		if obs.Key == "" || obs.Value == "" {
			continue
		}

		f := &types.Fact{
			ID:          factID(primary.ID, obs.Key),
			Subject:     primary.ID,
			Predicate:   obs.Key,
			Object:      parseValue(obs.Value),
			Confidence:  confidence,
			SourceURL:   data.URL,
			ExtractedAt: ts,
		}
		inf.facts = append(inf.facts, f)

		t := classifyObservation(obs)
		if t == types.EntityProduct {
			if _, ok := nameKeys[strings.ToLower(obs.Key)]; !ok {
				primary.Properties[obs.Key] = parseValue(obs.Value)
			}
			continue
		}

		e := &types.Entity{
			ID:   entityID(t, data.Domain, obs.Value),
			Type: t,
			Name: obs.Value,
			Properties: map[string]types.Value{
				"source_key": types.StringValue(obs.Key),
			},
			Confidence:  confidence,
			SourceURL:   data.URL,
			ExtractedAt: ts,
			LastUpdated: ts,
		}
		if obs.Selector != "" {
			e.Properties["selector"] = types.StringValue(obs.Selector)
		}
		inf.entities = append(inf.entities, e)

		switch t {
		case types.EntityVendor:
			vendor = e
		case types.EntityLocation:
			location = e
		}

		if relType, ok := primaryRelation[t]; ok {
			inf.relationships = append(inf.relationships, &types.Relationship{
				ID:          relationshipID(relType, primary.ID, e.ID),
				Type:        relType,
				Source:      primary.ID,
				Target:      e.ID,
				Confidence:  confidence,
				SourceURL:   data.URL,
				ExtractedAt: ts,
				ValidFrom:   &ts,
			})
		}
	}

	// A vendor observed alongside a location on the same page is taken to
	// operate from there.
	if vendor != nil && location != nil {
		inf.relationships = append(inf.relationships, &types.Relationship{
			ID:          relationshipID(types.RelLocatedIn, vendor.ID, location.ID),
			Type:        types.RelLocatedIn,
			Source:      vendor.ID,
			Target:      location.ID,
			Confidence:  confidence,
			SourceURL:   data.URL,
			ExtractedAt: ts,
			ValidFrom:   &ts,
		})
	}

	return inf
}
