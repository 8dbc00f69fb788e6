package constants

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

type Category string

const (
	Groceries     Category = "Groceries"
	Food          Category = "Food"
	Travel        Category = "Travel"
	Utilities     Category = "Utilities"
	Rent          Category = "Rent"
	Fuel          Category = "Fuel"
	Medical       Category = "Medical"
	Software      Category = "Software"
	OfficeSupply  Category = "OfficeSupplies"
	Entertainment Category = "Entertainment"
	Other         Category = "Other"
)

var allCategories = []Category{
	Groceries,
	Food,
	Travel,
	Utilities,
	Rent,
	Fuel,
	Medical,
	Software,
	OfficeSupply,
	Entertainment,
	Other,
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// keyword synonyms, lowercased. Extend as new vendors show up in review.
var synonyms = map[string]Category{
	"grocery":       Groceries,
	"supermarket":   Groceries,
	"provision":     Groceries,
	"restaurant":    Food,
	"cafe":          Food,
	"dining":        Food,
	"meal":          Food,
	"takeaway":      Food,
	"uber":          Travel,
	"lyft":          Travel,
	"airline":       Travel,
	"flight":        Travel,
	"hotel":         Travel,
	"taxi":          Travel,
	"train":         Travel,
	"electricity":   Utilities,
	"water bill":    Utilities,
	"internet":      Utilities,
	"broadband":     Utilities,
	"mobile plan":   Utilities,
	"lease":         Rent,
	"petrol":        Fuel,
	"diesel":        Fuel,
	"gas station":   Fuel,
	"pharmacy":      Medical,
	"hospital":      Medical,
	"clinic":        Medical,
	"saas":          Software,
	"subscription":  Software,
	"license":       Software,
	"stationery":    OfficeSupply,
	"office supply": OfficeSupply,
	"cinema":        Entertainment,
	"movie":         Entertainment,
	"streaming":     Entertainment,
}

// Canonicalize maps a free-text label onto the fixed taxonomy.
// Unmatched input falls into Other; the bool reports whether a real
// match was found. Never an error: category mapping is best-effort.
func Canonicalize(input string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return Other, false
	}

	// exact category name
	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}

	// keyword hit anywhere in the label ("Big Bazaar Supermarket" -> Groceries)
	for kw, cat := range synonyms {
		if strings.Contains(normalized, kw) {
			return cat, true
		}
	}

	// fuzzy last: tolerates OCR slop like "grocries"
	if best, ok := fuzzyCategory(normalized); ok {
		return best, true
	}

	return Other, false
}

func fuzzyCategory(label string) (Category, bool) {
	keys := make([]string, 0, len(synonyms)+len(allCategories))
	for kw := range synonyms {
		keys = append(keys, kw)
	}
	for _, cat := range allCategories {
		keys = append(keys, strings.ToLower(string(cat)))
	}

	matches := fuzzy.RankFindNormalizedFold(label, keys)
	if len(matches) == 0 {
		return Other, false
	}
	best := matches[0]
	for _, m := range matches[1:] {
		if m.Distance < best.Distance {
			best = m
		}
	}
	// distance grows with edit cost; beyond 3 edits it is guesswork
	if best.Distance > 3 {
		return Other, false
	}
	if cat, ok := synonyms[best.Target]; ok {
		return cat, true
	}
	for _, cat := range allCategories {
		if best.Target == strings.ToLower(string(cat)) {
			return cat, true
		}
	}
	return Other, false
}
