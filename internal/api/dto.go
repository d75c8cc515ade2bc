package api

import (
	"encoding/json"
	"time"

	"trade-companion/backend/internal/item"
	"trade-companion/backend/internal/store"
	"trade-companion/backend/internal/trade"
)

// SearchRequest is the price-check payload: the raw item text plus optional
// overrides.
type SearchRequest struct {
	Text             string `json:"text"`
	League           string `json:"league"`
	IncludeItemLevel bool   `json:"include_item_level"`
}

// ParsedItemDTO echoes back what the parser extracted so the client can show
// which lines drove the search.
type ParsedItemDTO struct {
	ItemClass string   `json:"item_class"`
	ItemLevel int      `json:"item_level,omitempty"`
	Rarity    string   `json:"rarity"`
	Name      string   `json:"name,omitempty"`
	BaseType  string   `json:"base_type,omitempty"`
	Stats     []string `json:"stats"`
}

// SearchResponse is the successful price-check result.
type SearchResponse struct {
	ID        string            `json:"id"`
	Total     int               `json:"total"`
	Listings  []json.RawMessage `json:"listings"`
	WebURL    string            `json:"web_url"`
	League    string            `json:"league"`
	Item      ParsedItemDTO     `json:"item"`
	RateLimit []trade.TierState `json:"rate_limit"`
	LatencyMs int64             `json:"latency_ms"`
}

// ErrorResponse carries the error message plus whatever context the client
// needs to recover, most importantly the retry hint on rate-limit denials.
type ErrorResponse struct {
	Error      string            `json:"error"`
	RetryAfter int               `json:"retry_after,omitempty"`
	RateLimit  []trade.TierState `json:"rate_limit,omitempty"`
}

// StatsResponse proxies the cached reference dataset with its freshness.
type StatsResponse struct {
	Data        json.RawMessage `json:"data"`
	LastUpdated time.Time       `json:"lastUpdated"`
	Stale       bool            `json:"stale,omitempty"`
}

// SearchRecordDTO is the API representation for a persisted search.
type SearchRecordDTO struct {
	ID          uint      `json:"id"`
	League      string    `json:"league"`
	ItemClass   string    `json:"item_class"`
	Rarity      string    `json:"rarity"`
	ItemName    string    `json:"item_name,omitempty"`
	StatCount   int       `json:"stat_count"`
	UpstreamID  string    `json:"upstream_id,omitempty"`
	ResultTotal int       `json:"result_total"`
	Status      string    `json:"status"`
	LatencyMs   int64     `json:"latency_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// SearchesResponse lists recent search records.
type SearchesResponse struct {
	Items []SearchRecordDTO `json:"items"`
	Total int64             `json:"total"`
}

// RateLimitResponse reports the limiter's current tier states.
type RateLimitResponse struct {
	Tiers []trade.TierState `json:"tiers"`
}

// ParsedItemFromModel converts a parsed item into its DTO.
func ParsedItemFromModel(parsed item.ParsedItem) ParsedItemDTO {
	stats := parsed.Stats
	if stats == nil {
		stats = []string{}
	}
	return ParsedItemDTO{
		ItemClass: parsed.ItemClass,
		ItemLevel: parsed.ItemLevel,
		Rarity:    parsed.Rarity,
		Name:      parsed.Name,
		BaseType:  parsed.BaseType,
		Stats:     stats,
	}
}

// SearchRecordFromModel converts a store.SearchRecord into the DTO representation.
func SearchRecordFromModel(r store.SearchRecord) SearchRecordDTO {
	return SearchRecordDTO{
		ID:          r.ID,
		League:      r.League,
		ItemClass:   r.ItemClass,
		Rarity:      r.Rarity,
		ItemName:    r.ItemName,
		StatCount:   r.StatCount,
		UpstreamID:  r.UpstreamID,
		ResultTotal: r.ResultTotal,
		Status:      r.Status,
		LatencyMs:   r.LatencyMs,
		CreatedAt:   r.CreatedAt,
	}
}
