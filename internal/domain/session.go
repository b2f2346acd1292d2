package domain

import (
	"time"
)

// TutorSession is the in-memory state kept for one realtime tutor connection.
// It lives exactly as long as the connection does.
type TutorSession struct {
	ConnectionID string
	SessionID    string
	GoalID       string
	CurrentWeek  string
	LastActivity time.Time
}
