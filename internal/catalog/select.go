package catalog

import "strings"

// Selection is the result of resolving an interaction type to a catalog.
type Selection struct {
	Catalog Catalog
	// ResolvedViaDefault is true when no keyword matched and the named
	// default catalog was handed out instead.
	ResolvedViaDefault bool
}

// typeKeywords maps interaction-type keywords to catalogs in priority order.
// First substring match wins.
var typeKeywords = []struct {
	keyword string
	catalog *Catalog
}{
	{"sale", &salesCatalog},
	{"venta", &salesCatalog},
	{"collection", &collectionsCatalog},
	{"cobranza", &collectionsCatalog},
	{"support", &supportCatalog},
	{"soporte", &supportCatalog},
	{"technical", &supportCatalog},
}

// defaultCatalog is the explicit fallback for unrecognized interaction types.
var defaultCatalog = &supportCatalog

// Select resolves an interaction type to its rubric. It is total: matching is
// case and whitespace insensitive substring matching over a fixed priority
// list, and unrecognized types receive the named default catalog with
// ResolvedViaDefault set so callers can log and persist the fact.
func Select(interactionType string) Selection {
	needle := strings.ToLower(strings.Join(strings.Fields(interactionType), " "))
	for _, entry := range typeKeywords {
		if strings.Contains(needle, entry.keyword) {
			return Selection{Catalog: *entry.catalog}
		}
	}
	return Selection{Catalog: *defaultCatalog, ResolvedViaDefault: true}
}
