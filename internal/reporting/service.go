package reporting

import (
	"context"
	"errors"
	"time"

	"github.com/Vivekkumarprince1/backend-vaani/internal/calls"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts the session reads reporting needs. The call session
// store satisfies it.
type Repository interface {
	ListSessionsForRoom(ctx context.Context, roomID string, from, to time.Time) ([]*calls.CallSession, error)
}

// Service produces read-only call history views. It never mutates sessions.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

// History lists a room's call sessions in the range, newest first.
func (s *Service) History(ctx context.Context, req HistoryRequest) ([]*calls.CallSession, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	return s.repo.ListSessionsForRoom(ctx, req.RoomID, req.Range.From, req.Range.To)
}

// Summary aggregates a room's call activity in the range.
func (s *Service) Summary(ctx context.Context, req HistoryRequest) (HistorySummary, error) {
	if err := s.check(req); err != nil {
		return HistorySummary{}, err
	}

	rows, err := s.repo.ListSessionsForRoom(ctx, req.RoomID, req.Range.From, req.Range.To)
	if err != nil {
		return HistorySummary{}, err
	}

	out := HistorySummary{RoomID: req.RoomID}
	for _, c := range rows {
		out.TotalCalls++
		switch c.CallType {
		case calls.CallTypeAudio:
			out.AudioCalls++
		case calls.CallTypeVideo:
			out.VideoCalls++
		}
		if c.Status != calls.StatusEnded {
			out.OngoingCalls++
			continue
		}
		out.EndedCalls++
		out.TotalDurationSeconds += c.DurationSeconds

		answered := false
		for _, p := range c.Participants {
			if p.UserID == c.InitiatorID {
				continue
			}
			if p.Status == calls.ParticipantJoined || p.Status == calls.ParticipantLeft {
				answered = true
				break
			}
		}
		if !answered {
			out.MissedCalls++
		}
	}
	if out.EndedCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.EndedCalls
	}
	return out, nil
}

func (s *Service) check(req HistoryRequest) error {
	if req.RoomID == "" {
		return ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return ErrInvalidRequest
	}
	if s.repo == nil {
		return errors.New("reporting: repository not configured")
	}
	return nil
}
