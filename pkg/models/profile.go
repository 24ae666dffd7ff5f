package models

import "time"

// AgentProfile is the registry document describing one agent: who it is and
// what it can do. ProfileText is the free-text description used for resonance
// encoding; Capabilities are free-form tags surfaced in offers and plans.
type AgentProfile struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"display_name"`
	ProfileText  string    `json:"profile_text"`
	Capabilities []string  `json:"capabilities"`
	Active       bool      `json:"active"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Clone returns a copy safe to hand out from shared stores.
func (p *AgentProfile) Clone() *AgentProfile {
	c := *p
	c.Capabilities = append([]string(nil), p.Capabilities...)
	return &c
}
