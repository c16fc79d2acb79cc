package reporting

import "github.com/Hons90/CRM/internal/calls"

// CallStats is the dashboard's call summary.
// Answered and Missed are the provider-reported outcomes; ByStatus covers every status seen.
type CallStats struct {
	Answered int            `json:"answered"`
	Missed   int            `json:"missed"`
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
}

// Dashboard is the payload of GET /api/dashboard.
// Leaderboard is never null.
type Dashboard struct {
	CallStats   CallStats             `json:"callStats"`
	Leaderboard []calls.UserCallCount `json:"leaderboard"`
}
