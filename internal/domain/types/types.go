// Package types contains read-only projections shared across the application.
package types

import "time"

// Standing is one row of the per-phrase rankings.
type Standing struct {
	Rank         int     `json:"rank"`
	ContestantID string  `json:"contestant_id"`
	Progress     float64 `json:"progress"`
	Errors       int     `json:"errors"`
	Completed    bool    `json:"completed"`
	Winner       bool    `json:"winner"`
	// Elapsed is fixed at completion time for completed contestants and
	// grows with the clock for in-progress ones.
	Elapsed time.Duration `json:"elapsed"`
	Score   float64       `json:"score"`
}

// TeamResult is a derived rollup over the team roster; it is a snapshot,
// never a live view.
type TeamResult struct {
	TeamID           string `json:"team_id"`
	CompletedMembers int    `json:"completed_members"`
	TotalMembers     int    `json:"total_members"`
	Complete         bool   `json:"complete"`
	// CompletionTime is the slowest member's completion instant; zero until
	// the whole team has finished.
	CompletionTime time.Time `json:"completion_time"`
}

// PlayerStats reports one contestant's live state for a phrase.
type PlayerStats struct {
	ContestantID  string        `json:"contestant_id"`
	Phrase        string        `json:"phrase"`
	Buffer        string        `json:"buffer"`
	Progress      float64       `json:"progress"`
	Errors        int           `json:"errors"`
	Keystrokes    int           `json:"keystrokes"`
	InvalidInputs int           `json:"invalid_inputs"`
	Completed     bool          `json:"completed"`
	Winner        bool          `json:"winner"`
	Elapsed       time.Duration `json:"elapsed"`
	Score         float64       `json:"score"`
}
