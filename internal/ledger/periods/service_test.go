package periods

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/matbaa-erp/matbaa-erp/internal/ledger/shared"
)

type memoryRepo struct {
	periods map[int64]Period
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{periods: make(map[int64]Period)}
}

func (r *memoryRepo) GetByID(ctx context.Context, id int64) (Period, error) {
	p, ok := r.periods[id]
	if !ok {
		return Period{}, shared.ErrPeriodNotFound
	}
	return p, nil
}

func (r *memoryRepo) List(ctx context.Context) ([]Period, error) {
	var out []Period
	for _, p := range r.periods {
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryRepo) FindByDate(ctx context.Context, date time.Time) (Period, error) {
	for _, p := range r.periods {
		if p.Contains(date) {
			return p, nil
		}
	}
	return Period{}, shared.ErrPeriodNotFound
}

func (r *memoryRepo) FindOverlapping(ctx context.Context, start, end time.Time) ([]Period, error) {
	var out []Period
	for _, p := range r.periods {
		if p.Overlaps(start, end) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryRepo) Insert(ctx context.Context, p Period) (Period, error) {
	r.nextID++
	p.ID = r.nextID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	r.periods[p.ID] = p
	return p, nil
}

func (r *memoryRepo) UpdateStatus(ctx context.Context, id int64, status Status, actor int64, at time.Time) error {
	p, ok := r.periods[id]
	if !ok {
		return shared.ErrPeriodNotFound
	}
	p.Status = status
	if status == StatusClosed {
		p.ClosedAt = &at
		p.ClosedBy = &actor
	} else {
		p.ClosedAt = nil
		p.ClosedBy = nil
	}
	r.periods[id] = p
	return nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCreateRejectsOverlap(t *testing.T) {
	svc := NewService(newMemoryRepo(), false)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Name: "2025", StartDate: day(2025, 1, 1), EndDate: day(2025, 12, 31)})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{Name: "2025-H2", StartDate: day(2025, 7, 1), EndDate: day(2026, 6, 30)})
	require.ErrorIs(t, err, shared.ErrPeriodOverlap)
	require.ErrorIs(t, err, shared.ErrValidation)

	// Adjacent windows do not overlap with inclusive endpoints.
	_, err = svc.Create(ctx, CreateInput{Name: "2026", StartDate: day(2026, 1, 1), EndDate: day(2026, 12, 31)})
	require.NoError(t, err)
}

func TestResolveByDateInclusiveEndpoints(t *testing.T) {
	svc := NewService(newMemoryRepo(), false)
	ctx := context.Background()
	p, err := svc.Create(ctx, CreateInput{Name: "2025-01", StartDate: day(2025, 1, 1), EndDate: day(2025, 1, 31)})
	require.NoError(t, err)

	for _, d := range []time.Time{day(2025, 1, 1), day(2025, 1, 15), day(2025, 1, 31)} {
		got, err := svc.ResolveByDate(ctx, d)
		require.NoError(t, err)
		require.Equal(t, p.ID, got.ID)
	}
	_, err = svc.ResolveByDate(ctx, day(2025, 2, 1))
	require.ErrorIs(t, err, shared.ErrPeriodNotFound)
}

func TestCloseAndReopenIdempotent(t *testing.T) {
	svc := NewService(newMemoryRepo(), false)
	ctx := context.Background()
	p, err := svc.Create(ctx, CreateInput{Name: "2024", StartDate: day(2024, 1, 1), EndDate: day(2024, 12, 31)})
	require.NoError(t, err)

	closed, err := svc.Close(ctx, p.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	again, err := svc.Close(ctx, p.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, again.Status)

	reopened, err := svc.Reopen(ctx, p.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, reopened.Status)
	require.Nil(t, reopened.ClosedAt)
}

func TestEnsurePeriodForDateAutoCreatesMonth(t *testing.T) {
	svc := NewService(newMemoryRepo(), true)
	ctx := context.Background()

	p, err := svc.EnsurePeriodForDate(ctx, day(2025, 3, 14))
	require.NoError(t, err)
	require.Equal(t, "2025-03", p.Name)
	require.Equal(t, day(2025, 3, 1), p.StartDate)
	require.Equal(t, day(2025, 3, 31), p.EndDate)

	// Second resolve reuses the created window.
	again, err := svc.EnsurePeriodForDate(ctx, day(2025, 3, 1))
	require.NoError(t, err)
	require.Equal(t, p.ID, again.ID)
}

func TestEnsurePeriodForDateDisabled(t *testing.T) {
	svc := NewService(newMemoryRepo(), false)
	_, err := svc.EnsurePeriodForDate(context.Background(), day(2025, 3, 14))
	require.ErrorIs(t, err, shared.ErrPeriodNotFound)
}
