package periods

import (
	"context"
	"fmt"
	"time"

	"github.com/matbaa-erp/matbaa-erp/internal/ledger/shared"
)

// Service manages the accounting period registry.
type Service struct {
	repo       Repository
	autoCreate bool
	now        func() time.Time
}

// NewService constructs the registry. When autoCreate is enabled,
// EnsurePeriodForDate creates the monthly window on demand for the
// expense/income convenience flows.
func NewService(repo Repository, autoCreate bool) *Service {
	return &Service{repo: repo, autoCreate: autoCreate, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateInput carries fields for a new period.
type CreateInput struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
}

// Create stores a new open period, rejecting overlaps with any
// existing window.
func (s *Service) Create(ctx context.Context, in CreateInput) (Period, error) {
	if in.Name == "" {
		return Period{}, fmt.Errorf("%w: period name required", shared.ErrValidation)
	}
	if in.EndDate.Before(in.StartDate) {
		return Period{}, fmt.Errorf("%w: period end before start", shared.ErrValidation)
	}
	existing, err := s.repo.FindOverlapping(ctx, in.StartDate, in.EndDate)
	if err != nil {
		return Period{}, err
	}
	if len(existing) > 0 {
		return Period{}, shared.ErrPeriodOverlap
	}
	return s.repo.Insert(ctx, Period{
		Name:      in.Name,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Status:    StatusOpen,
	})
}

// Close forbids new entries and unposts within the period.
func (s *Service) Close(ctx context.Context, id, actor int64) (Period, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Period{}, err
	}
	if p.Status == StatusClosed {
		return p, nil
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusClosed, actor, s.now()); err != nil {
		return Period{}, err
	}
	return s.repo.GetByID(ctx, id)
}

// Reopen returns a closed period to the open state.
func (s *Service) Reopen(ctx context.Context, id, actor int64) (Period, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Period{}, err
	}
	if p.Status == StatusOpen {
		return p, nil
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusOpen, actor, s.now()); err != nil {
		return Period{}, err
	}
	return s.repo.GetByID(ctx, id)
}

// Get returns a period by id.
func (s *Service) Get(ctx context.Context, id int64) (Period, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all periods ordered by start date.
func (s *Service) List(ctx context.Context) ([]Period, error) {
	return s.repo.List(ctx)
}

// ResolveByDate returns the unique period containing the date.
func (s *Service) ResolveByDate(ctx context.Context, date time.Time) (Period, error) {
	return s.repo.FindByDate(ctx, date)
}

// EnsurePeriodForDate resolves the period containing the date, creating
// the calendar-month window when auto-create is enabled and no period
// exists. A closed period is returned as-is; callers enforce posting
// rules.
func (s *Service) EnsurePeriodForDate(ctx context.Context, date time.Time) (Period, error) {
	p, err := s.repo.FindByDate(ctx, date)
	if err == nil {
		return p, nil
	}
	if !s.autoCreate {
		return Period{}, err
	}
	start := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return s.Create(ctx, CreateInput{
		Name:      start.Format("2006-01"),
		StartDate: start,
		EndDate:   end,
	})
}
