package entries

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/matbaa-erp/matbaa-erp/internal/ledger/accounts"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/periods"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/shared"
	internalShared "github.com/matbaa-erp/matbaa-erp/internal/shared"
)

// AuditPort records entry lifecycle events.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// QueryInvalidator drops derived report caches for mutated accounts.
// Failures are logged, never propagated: the query cache is not part of
// correctness.
type QueryInvalidator interface {
	InvalidateAccounts(ctx context.Context, accountIDs []int64) error
}

// PeriodResolver supplies periods for the convenience flows.
type PeriodResolver interface {
	EnsurePeriodForDate(ctx context.Context, date time.Time) (periods.Period, error)
}

// Service coordinates the journal entry lifecycle.
type Service struct {
	repo        Repository
	audit       AuditPort
	invalidator QueryInvalidator
	resolver    PeriodResolver
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(repo Repository, audit AuditPort, invalidator QueryInvalidator, resolver PeriodResolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, invalidator: invalidator, resolver: resolver, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Get returns an entry with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Entry, error) {
	return s.repo.GetWithLines(ctx, id)
}

// List returns entries in (date, id) order.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	return s.repo.List(ctx, filter)
}

// CreateDraft validates the input and stores a draft entry. Nothing
// outside the store is touched; drafts are invisible to reports.
func (s *Service) CreateDraft(ctx context.Context, in CreateInput) (Entry, error) {
	if err := in.Validate(); err != nil {
		return Entry{}, err
	}
	if in.EntryType == "" {
		in.EntryType = EntryTypeManual
	}
	if in.Reference == "" {
		in.Reference = NewReference(in.EntryType.ReferencePrefix(), s.now())
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := s.checkLineAccounts(ctx, tx, in.Lines); err != nil {
			return err
		}
		period, err := tx.GetPeriodByDate(ctx, in.Date)
		if err == nil && period.Status == periods.StatusClosed {
			return shared.ErrPeriodClosed
		}
		inserted, err := tx.InsertEntry(ctx, Entry{
			Reference:   in.Reference,
			Date:        in.Date,
			Description: in.Description,
			Notes:       in.Notes,
			Status:      StatusDraft,
			EntryType:   in.EntryType,
			CreatedBy:   in.CreatedBy,
		})
		if err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, inserted.ID, in.Lines); err != nil {
			return err
		}
		entry = inserted
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	return s.repo.GetWithLines(ctx, entry.ID)
}

// Post transitions a draft to posted. Re-validates balance against the
// stored lines, resolves the period containing the entry date under a
// row lock, stamps posted_by/posted_at, and flags the balance caches of
// every line account. Posting an already-posted entry is a no-op.
func (s *Service) Post(ctx context.Context, id, actor int64) (Entry, error) {
	var entry Entry
	var affected []int64
	var alreadyPosted bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status == StatusPosted {
			// A concurrent post won the race; report success.
			entry = current
			alreadyPosted = true
			return nil
		}
		if current.Status == StatusCancelled {
			return shared.ErrNotDraft
		}
		lines, err := tx.GetLines(ctx, id)
		if err != nil {
			return err
		}
		current.Lines = lines
		if !current.IsBalanced() {
			return shared.ErrUnbalanced
		}
		inputs := make([]LineInput, len(lines))
		for i, l := range lines {
			inputs[i] = LineInput{AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit}
		}
		if err := s.checkLineAccounts(ctx, tx, inputs); err != nil {
			return err
		}
		period, err := tx.GetPeriodByDateForUpdate(ctx, current.Date)
		if err != nil {
			return err
		}
		if period.Status == periods.StatusClosed {
			return shared.ErrPeriodClosed
		}
		postedAt := s.now()
		if err := tx.MarkPosted(ctx, id, period.ID, actor, postedAt); err != nil {
			return err
		}
		affected = current.AccountIDs()
		if err := tx.MarkCachesStale(ctx, affected, id); err != nil {
			return err
		}
		current.Status = StatusPosted
		current.PeriodID = &period.ID
		current.PostedBy = &actor
		current.PostedAt = &postedAt
		entry = current
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	if alreadyPosted {
		return entry, nil
	}
	s.invalidateQueries(ctx, affected)
	s.record(ctx, actor, "entry.post", entry)
	return entry, nil
}

// Unpost reverses a posting while the entry's period remains open.
func (s *Service) Unpost(ctx context.Context, id, actor int64) (Entry, error) {
	var entry Entry
	var affected []int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusPosted {
			return shared.ErrNotPosted
		}
		if current.PeriodID != nil {
			period, err := tx.GetPeriodForUpdate(ctx, *current.PeriodID)
			if err != nil {
				return err
			}
			if period.Status == periods.StatusClosed {
				return shared.ErrUnpostClosedPeriod
			}
		}
		if err := tx.MarkDraft(ctx, id); err != nil {
			return err
		}
		lines, err := tx.GetLines(ctx, id)
		if err != nil {
			return err
		}
		current.Lines = lines
		affected = current.AccountIDs()
		if err := tx.MarkCachesStale(ctx, affected, id); err != nil {
			return err
		}
		current.Status = StatusDraft
		current.PeriodID = nil
		current.PostedBy = nil
		current.PostedAt = nil
		entry = current
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	s.invalidateQueries(ctx, affected)
	s.record(ctx, actor, "entry.unpost", entry)
	return entry, nil
}

// Update edits a draft header and, when lines are supplied, replaces
// the line set after full re-validation.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput, actor int64) (Entry, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return shared.ErrNotDraft
		}
		date := current.Date
		if in.Date != nil {
			date = *in.Date
		}
		description := current.Description
		if in.Description != nil {
			description = *in.Description
		}
		notes := current.Notes
		if in.Notes != nil {
			notes = *in.Notes
		}
		period, err := tx.GetPeriodByDate(ctx, date)
		if err == nil && period.Status == periods.StatusClosed {
			return shared.ErrPeriodClosed
		}
		if in.Lines != nil {
			check := CreateInput{Date: date, Description: description, Lines: in.Lines}
			if err := check.Validate(); err != nil {
				return err
			}
			if err := s.checkLineAccounts(ctx, tx, in.Lines); err != nil {
				return err
			}
			if err := tx.ReplaceLines(ctx, id, in.Lines); err != nil {
				return err
			}
		}
		return tx.UpdateHeader(ctx, id, date, description, notes)
	})
	if err != nil {
		return Entry{}, err
	}
	entry, err := s.repo.GetWithLines(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	s.record(ctx, actor, "entry.update", entry)
	return entry, nil
}

// Delete hard-removes a draft entry and its lines.
func (s *Service) Delete(ctx context.Context, id, actor int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return shared.ErrNotDraft
		}
		return tx.DeleteEntry(ctx, id)
	})
	if err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, internalShared.AuditLog{
			ActorID: actor, Action: "entry.delete", Entity: "journal_entry",
			EntityID: fmt.Sprintf("%d", id), At: s.now(),
		})
	}
	return nil
}

// Cancel marks a draft as cancelled. Posted entries must be unposted
// first.
func (s *Service) Cancel(ctx context.Context, id, actor int64) (Entry, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return shared.ErrNotDraft
		}
		return tx.MarkCancelled(ctx, id)
	})
	if err != nil {
		return Entry{}, err
	}
	entry, err := s.repo.GetWithLines(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	s.record(ctx, actor, "entry.cancel", entry)
	return entry, nil
}

// RecordExpense translates an expense trigger into a posted two-line
// entry: debit the expense account, credit the payment account. The
// period is resolved or auto-created for the month.
func (s *Service) RecordExpense(ctx context.Context, in TriggerInput) (Entry, error) {
	return s.recordTrigger(ctx, in, EntryTypeExpense)
}

// RecordIncome translates an income trigger into a posted two-line
// entry: debit the receiving account, credit the revenue account.
func (s *Service) RecordIncome(ctx context.Context, in TriggerInput) (Entry, error) {
	return s.recordTrigger(ctx, in, EntryTypeIncome)
}

func (s *Service) recordTrigger(ctx context.Context, in TriggerInput, typ EntryType) (Entry, error) {
	if err := in.Validate(); err != nil {
		return Entry{}, err
	}
	if s.resolver != nil {
		if _, err := s.resolver.EnsurePeriodForDate(ctx, in.Date); err != nil {
			return Entry{}, err
		}
	}
	draft, err := s.CreateDraft(ctx, CreateInput{
		Reference:   NewReference(typ.ReferencePrefix(), s.now()),
		Date:        in.Date,
		Description: in.Description,
		Notes:       in.Notes,
		EntryType:   typ,
		CreatedBy:   in.CreatedBy,
		Lines: []LineInput{
			{AccountID: in.DebitAccountID, Debit: in.Amount, Description: in.Description},
			{AccountID: in.CreditAccount, Credit: in.Amount, Description: in.Description},
		},
	})
	if err != nil {
		return Entry{}, err
	}
	return s.Post(ctx, draft.ID, in.CreatedBy)
}

func (s *Service) checkLineAccounts(ctx context.Context, tx TxRepository, lines []LineInput) error {
	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]struct{}, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.AccountID]; ok {
			continue
		}
		seen[l.AccountID] = struct{}{}
		ids = append(ids, l.AccountID)
	}
	accs, err := tx.GetAccounts(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[int64]accounts.Account, len(accs))
	for _, a := range accs {
		byID[a.ID] = a
	}
	for _, id := range ids {
		acc, ok := byID[id]
		if !ok {
			return fmt.Errorf("account %d: %w", id, shared.ErrAccountNotFound)
		}
		if !acc.IsLeaf {
			return fmt.Errorf("account %s: %w", acc.Code, shared.ErrAccountNotLeaf)
		}
		if !acc.IsActive {
			return fmt.Errorf("account %s: %w", acc.Code, shared.ErrAccountInactive)
		}
	}
	return nil
}

func (s *Service) invalidateQueries(ctx context.Context, accountIDs []int64) {
	if s.invalidator == nil || len(accountIDs) == 0 {
		return
	}
	if err := s.invalidator.InvalidateAccounts(ctx, accountIDs); err != nil {
		s.logger.Warn("query cache invalidation failed", slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actor int64, action string, entry Entry) {
	if s.audit == nil || entry.ID == 0 {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta: map[string]any{
			"number":    entry.Number,
			"reference": entry.Reference,
			"status":    string(entry.Status),
		},
		At: s.now(),
	})
}
