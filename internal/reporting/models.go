package reporting

import "time"

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

type HistoryRequest struct {
	RoomID string    `json:"room_id"`
	Range  TimeRange `json:"range"`
}

// HistorySummary aggregates a room's call activity over a time range.
type HistorySummary struct {
	RoomID string `json:"room_id"`

	TotalCalls   int `json:"total_calls"`
	EndedCalls   int `json:"ended_calls"`
	OngoingCalls int `json:"ongoing_calls"`

	AudioCalls int `json:"audio_calls"`
	VideoCalls int `json:"video_calls"`

	// Missed counts calls where nobody but the initiator ever joined.
	MissedCalls int `json:"missed_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`
}
