package domain

import "time"

type SessionStatus string

const (
	SessionDraft  SessionStatus = "draft"
	SessionActive SessionStatus = "active"
	SessionClosed SessionStatus = "closed"
)

// VotingSession is owned by the governance workflows; this service only reads it.
type VotingSession struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Status           SessionStatus  `json:"status"`
	ScheduledEndTime *time.Time     `json:"scheduled_end_time,omitempty"`
	AllowAnonymous   bool           `json:"allow_anonymous"`
	QuorumPercent    int            `json:"quorum_percent"`
	Options          []VotingOption `json:"options"`
	CreatedAt        time.Time      `json:"created_at"`
}

type VotingOption struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Label     string `json:"label"`
	Order     int    `json:"order"`
}

type VoterEligibility struct {
	SessionID  string
	MemberID   string
	IsEligible bool
}

// HasOption reports whether optionID belongs to the session.
func (s *VotingSession) HasOption(optionID string) bool {
	for _, opt := range s.Options {
		if opt.ID == optionID && opt.SessionID == s.ID {
			return true
		}
	}
	return false
}

// EndedAt reports whether the scheduled end time has passed at now.
func (s *VotingSession) EndedAt(now time.Time) bool {
	return s.ScheduledEndTime != nil && !now.Before(*s.ScheduledEndTime)
}
