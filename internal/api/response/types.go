package response

import (
	"time"

	"github.com/mcoot/wordbomb/internal/model"
)

// MessageResponse is the response for commands that only acknowledge
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse reports whether the session loop is serving
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// MatchSummary represents a finished match in API responses
type MatchSummary struct {
	ID         string             `json:"id"`
	Winner     *string            `json:"winner"`
	Teams      []model.TeamView   `json:"teams"`
	Words      []model.PlayedWord `json:"words"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	DurationMs int64              `json:"duration_ms"`
}

// MatchSummaryFromModel converts model.MatchSummary
func MatchSummaryFromModel(m *model.MatchSummary) MatchSummary {
	var winner *string
	if m.Winner != "" {
		w := m.Winner
		winner = &w
	}
	words := m.Words
	if words == nil {
		words = []model.PlayedWord{}
	}
	return MatchSummary{
		ID:         m.ID,
		Winner:     winner,
		Teams:      m.Teams,
		Words:      words,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
		DurationMs: m.FinishedAt.Sub(m.StartedAt).Milliseconds(),
	}
}

// HistoryResponse lists finished matches, newest first
type HistoryResponse struct {
	Matches []MatchSummary `json:"matches"`
}

// HistoryFromModel converts a list of model.MatchSummary
func HistoryFromModel(matches []*model.MatchSummary) HistoryResponse {
	resp := HistoryResponse{Matches: make([]MatchSummary, len(matches))}
	for i, m := range matches {
		resp.Matches[i] = MatchSummaryFromModel(m)
	}
	return resp
}
