package rag

import (
	"strconv"
	"strings"
)

// ResolveMetadata converts a loosely typed metadata bag into Metadata,
// applying the brand and product defaults. The review id falls back to
// vectorID when the bag carries no "id".
func ResolveMetadata(vectorID string, bag map[string]any) Metadata {
	md := Metadata{
		ReviewID:    stringField(bag, "id"),
		Brand:       stringField(bag, "brand"),
		ProductName: stringField(bag, "product_name"),
		ReviewText:  stringField(bag, "review_text"),
		Rating:      stringField(bag, "rating"),
	}
	if md.ReviewID == "" {
		md.ReviewID = vectorID
	}
	return md.withDefaults()
}

// NewMatch builds a ReviewMatch from a raw hit.
func NewMatch(vectorID string, score float32, bag map[string]any) ReviewMatch {
	md := ResolveMetadata(vectorID, bag)
	return ReviewMatch{
		ID:       vectorID,
		ReviewID: md.ReviewID,
		Score:    score,
		Metadata: md,
	}
}

func (m Metadata) withDefaults() Metadata {
	if strings.TrimSpace(m.Brand) == "" {
		m.Brand = DefaultBrand
	}
	if strings.TrimSpace(m.ProductName) == "" {
		m.ProductName = DefaultProduct
	}
	if strings.TrimSpace(m.ReviewText) == "" {
		m.ReviewText = ""
	}
	return m
}

// Bag returns the metadata as the loosely typed map stored alongside vectors.
func (m Metadata) Bag() map[string]any {
	bag := map[string]any{
		"id":           m.ReviewID,
		"brand":        m.Brand,
		"product_name": m.ProductName,
		"review_text":  m.ReviewText,
	}
	if m.Rating != "" {
		bag["rating"] = m.Rating
	}
	return bag
}

func stringField(bag map[string]any, key string) string {
	v, ok := bag[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
