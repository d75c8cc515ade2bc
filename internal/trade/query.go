package trade

import (
	"errors"

	"github.com/sirupsen/logrus"

	"trade-companion/backend/internal/item"
)

// ErrUnsupportedItemClass rejects items whose class has no trade category
// before any stat resolution is attempted.
var ErrUnsupportedItemClass = errors.New("unsupported item class")

// ErrNoValidStats reports that no pasted stat line resolved to a catalog id.
var ErrNoValidStats = errors.New("no valid stats found")

// StatResolver maps a raw stat line to a catalog id. Satisfied by
// catalog.Resolver.
type StatResolver interface {
	Resolve(rawLine string) (string, bool)
}

// classCategories maps the item-text "Item Class" line onto the trade API's
// category filter options.
var classCategories = map[string]string{
	"Body Armours":    "armour.chest",
	"Boots":           "armour.boots",
	"Gloves":          "armour.gloves",
	"Helmets":         "armour.helmet",
	"Shields":         "armour.shield",
	"Quivers":         "armour.quiver",
	"Amulets":         "accessory.amulet",
	"Belts":           "accessory.belt",
	"Rings":           "accessory.ring",
	"Bows":            "weapon.bow",
	"Claws":           "weapon.claw",
	"Daggers":         "weapon.dagger",
	"One Hand Axes":   "weapon.oneaxe",
	"One Hand Maces":  "weapon.onemace",
	"One Hand Swords": "weapon.onesword",
	"Sceptres":        "weapon.sceptre",
	"Staves":          "weapon.staff",
	"Two Hand Axes":   "weapon.twoaxe",
	"Two Hand Maces":  "weapon.twomace",
	"Two Hand Swords": "weapon.twosword",
	"Wands":           "weapon.wand",
}

// SearchPayload is the POST body of the upstream search endpoint.
type SearchPayload struct {
	Query Query `json:"query"`
	Sort  Sort  `json:"sort"`
}

// Query describes the search itself.
type Query struct {
	Status StatusFilter `json:"status"`
	Name   string       `json:"name,omitempty"`
	Type   string       `json:"type,omitempty"`
	Stats  []StatGroup  `json:"stats"`
	Filter *Filters     `json:"filters,omitempty"`
}

// StatusFilter restricts listings by seller status.
type StatusFilter struct {
	Option string `json:"option"`
}

// StatGroup is one AND-group of stat filters.
type StatGroup struct {
	Type    string       `json:"type"`
	Filters []StatFilter `json:"filters"`
}

// StatFilter matches one resolved stat with a minimum value.
type StatFilter struct {
	ID       string    `json:"id"`
	Value    StatValue `json:"value"`
	Disabled bool      `json:"disabled"`
}

// StatValue carries the numeric bound for a stat filter.
type StatValue struct {
	Min float64 `json:"min"`
}

// Filters nests the type filters the way the upstream expects them.
type Filters struct {
	TypeFilters TypeFilters `json:"type_filters"`
}

// TypeFilters hold category and item-level constraints.
type TypeFilters struct {
	Filters TypeFilterValues `json:"filters"`
}

// TypeFilterValues enumerates the supported type filters.
type TypeFilterValues struct {
	Category  *OptionFilter `json:"category,omitempty"`
	ItemLevel *MinFilter    `json:"ilvl,omitempty"`
}

// OptionFilter selects one option value.
type OptionFilter struct {
	Option string `json:"option"`
}

// MinFilter bounds a numeric field from below.
type MinFilter struct {
	Min int `json:"min"`
}

// QueryOptions tune query construction.
type QueryOptions struct {
	IncludeItemLevel bool
}

// BuildQuery assembles a search payload from a parsed item. Unique items
// search by exact name and base type; everything else searches by resolved
// stat filters. Stat lines that fail to resolve are dropped, not fatal; the
// build fails only when nothing resolves.
func BuildQuery(parsed item.ParsedItem, resolver StatResolver, opts QueryOptions) (SearchPayload, error) {
	category, categoryKnown := "", false
	if parsed.ItemClass != "" {
		category, categoryKnown = classCategories[parsed.ItemClass]
		if !categoryKnown {
			return SearchPayload{}, ErrUnsupportedItemClass
		}
	}

	payload := SearchPayload{
		Query: Query{
			Status: StatusFilter{Option: "online"},
			Stats:  []StatGroup{},
		},
		Sort: Sort{Price: "asc"},
	}

	typeFilters := TypeFilterValues{}
	if categoryKnown {
		typeFilters.Category = &OptionFilter{Option: category}
	}
	if opts.IncludeItemLevel && parsed.HasLevel {
		typeFilters.ItemLevel = &MinFilter{Min: parsed.ItemLevel}
	}
	if typeFilters.Category != nil || typeFilters.ItemLevel != nil {
		payload.Query.Filter = &Filters{TypeFilters: TypeFilters{Filters: typeFilters}}
	}

	// A unique's name and base type narrow precisely enough that stat
	// filters only hurt recall.
	if parsed.Rarity == "Unique" && parsed.Name != "" && parsed.BaseType != "" {
		payload.Query.Name = parsed.Name
		payload.Query.Type = parsed.BaseType
		return payload, nil
	}

	group := StatGroup{Type: "and"}
	for _, line := range parsed.Stats {
		id, ok := resolver.Resolve(line)
		if !ok {
			logrus.WithField("line", line).Warn("stat line did not resolve, dropping")
			continue
		}
		group.Filters = append(group.Filters, StatFilter{
			ID:    id,
			Value: StatValue{Min: item.FirstNumber(line)},
		})
	}
	if len(group.Filters) == 0 {
		return SearchPayload{}, ErrNoValidStats
	}
	payload.Query.Stats = append(payload.Query.Stats, group)

	return payload, nil
}

// Sort orders search results.
type Sort struct {
	Price string `json:"price"`
}
