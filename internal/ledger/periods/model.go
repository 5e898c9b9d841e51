package periods

import "time"

// Status enumerates valid period states.
type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// Period represents a named fiscal window. Both endpoints are
// inclusive: an entry dated D belongs to the period with
// StartDate <= D <= EndDate.
type Period struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	StartDate time.Time  `json:"start_date"`
	EndDate   time.Time  `json:"end_date"`
	Status    Status     `json:"status"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	ClosedBy  *int64     `json:"closed_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Contains reports whether the date falls inside the window.
func (p Period) Contains(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	return !d.Before(p.StartDate) && !d.After(p.EndDate)
}

// Overlaps reports whether two inclusive windows intersect.
func (p Period) Overlaps(start, end time.Time) bool {
	return !p.EndDate.Before(start) && !p.StartDate.After(end)
}
