package store

import (
	"encoding/json"
	"strings"
	"time"
)

// SearchRecord is one executed price check persisted for history queries.
type SearchRecord struct {
	ID          uint   `gorm:"primaryKey"`
	League      string `gorm:"size:64;index"`
	ItemClass   string `gorm:"size:64;index"`
	Rarity      string `gorm:"size:32"`
	ItemName    string `gorm:"size:128"`
	StatCount   int
	UpstreamID  string `gorm:"size:64"`
	ResultTotal int
	Status      string    `gorm:"size:32;index"`
	LatencyMs   int64
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// CatalogSnapshot stores a fetched stats dataset so the service can come back
// up with a usable catalog before the upstream is reachable again.
type CatalogSnapshot struct {
	ID         uint   `gorm:"primaryKey"`
	Source     string `gorm:"size:255"`
	RawJSON    string `gorm:"type:text"`
	EntryCount int
	FetchedAt  time.Time `gorm:"index"`
	CreatedAt  time.Time
}

// SetRaw stores the upstream dataset body.
func (s *CatalogSnapshot) SetRaw(raw json.RawMessage) {
	s.RawJSON = string(raw)
}

// Raw returns the stored dataset body, or nil when empty.
func (s *CatalogSnapshot) Raw() json.RawMessage {
	if strings.TrimSpace(s.RawJSON) == "" {
		return nil
	}
	return json.RawMessage(s.RawJSON)
}
