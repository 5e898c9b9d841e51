package balance

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/matbaa-erp/matbaa-erp/internal/ledger/accounts"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/querycache"
	"github.com/matbaa-erp/matbaa-erp/internal/shared"
)

// Engine computes account balances. Undated queries serve from the
// balance cache when it is valid; dated queries roll forward from the
// latest snapshot at or before the target date and aggregate only the
// tail. The journal lines stay authoritative throughout: every cached
// figure can be rebuilt from them.
type Engine struct {
	repo    Repository
	queries *querycache.Cache
	logger  *slog.Logger
	now     func() time.Time
}

func NewEngine(repo Repository, queries *querycache.Cache, logger *slog.Logger) *Engine {
	return &Engine{repo: repo, queries: queries, logger: logger, now: time.Now}
}

// combine nets debits against credits in the account's natural
// direction, so a healthy balance reads positive for both natures.
func combine(nature accounts.Nature, debit, credit decimal.Decimal) decimal.Decimal {
	if nature == accounts.NatureDebit {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// Balance returns the account balance for the given window. Nil bounds
// mean open-ended: (nil, nil) is the lifetime balance, (nil, to) the
// balance as of a date, (from, to) the net movement inside the window.
// An inverted window yields zero. Results are served from the query
// cache keyed by (account, window); current balances live 5 minutes,
// dated ones an hour. Posting drops the account's keys.
func (e *Engine) Balance(ctx context.Context, accountID int64, from, to *time.Time, opts Options) (decimal.Decimal, error) {
	key := querycache.BuildKey("balance", "query", map[string]string{
		"account_id": strconv.FormatInt(accountID, 10),
		"date_from":  querycache.DateParam(from),
		"date_to":    querycache.DateParam(to),
	})
	if !opts.ForceRefresh {
		var cached decimal.Decimal
		if e.queries.GetJSON(ctx, key, &cached) {
			return cached, nil
		}
	}
	result, err := e.compute(ctx, accountID, from, to, opts)
	if err != nil {
		return decimal.Zero, err
	}
	ttl := querycache.TTLCurrentBalance
	if from != nil || to != nil {
		ttl = querycache.TTLHistoricalBalance
	}
	e.queries.SetJSON(ctx, key, result, ttl)
	return result, nil
}

func (e *Engine) compute(ctx context.Context, accountID int64, from, to *time.Time, opts Options) (decimal.Decimal, error) {
	account, err := e.repo.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	if from != nil && to != nil && from.After(*to) {
		return decimal.Zero, nil
	}

	if from == nil && to == nil {
		if opts.UseCache && !opts.ForceRefresh {
			row, ok, err := e.repo.GetCache(ctx, accountID)
			if err != nil {
				return decimal.Zero, err
			}
			if ok && row.IsValid && !row.NeedsRefresh {
				return row.CurrentBalance, nil
			}
		}
		if opts.UseCache {
			row, err := e.Refresh(ctx, accountID)
			if err != nil {
				return decimal.Zero, err
			}
			return row.CurrentBalance, nil
		}
		sums, err := e.repo.SumPostedLines(ctx, accountID, nil, nil)
		if err != nil {
			return decimal.Zero, err
		}
		return combine(account.Nature, sums.Debit, sums.Credit), nil
	}

	if from == nil {
		return e.asOf(ctx, account, *to)
	}
	sums, err := e.repo.SumPostedLines(ctx, accountID, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return combine(account.Nature, sums.Debit, sums.Credit), nil
}

// asOf resolves a historical balance, preferring the snapshot tail path
// over a full scan. Same-day entries beyond the snapshot's last entry id
// still count toward the tail.
func (e *Engine) asOf(ctx context.Context, account accounts.Account, to time.Time) (decimal.Decimal, error) {
	snap, ok, err := e.repo.LatestSnapshotBefore(ctx, account.ID, to)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		sums, err := e.repo.SumPostedLines(ctx, account.ID, nil, &to)
		if err != nil {
			return decimal.Zero, err
		}
		return combine(account.Nature, sums.Debit, sums.Credit), nil
	}
	tail, err := e.repo.SumPostedLinesAfter(ctx, account.ID, snap.SnapshotDate, snap.LastEntryID, to)
	if err != nil {
		return decimal.Zero, err
	}
	return snap.Balance.Add(combine(account.Nature, tail.Debit, tail.Credit)), nil
}

// Refresh recomputes the cache row from the journal under the account's
// cache lock and records the mutation in the balance audit log.
func (e *Engine) Refresh(ctx context.Context, accountID int64) (CacheRow, error) {
	account, err := e.repo.GetAccount(ctx, accountID)
	if err != nil {
		return CacheRow{}, err
	}
	var fresh CacheRow
	err = e.repo.WithAccountLock(ctx, accountID, func(ctx context.Context, store TxStore) error {
		prev, existed, err := store.GetCacheForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		posted, err := e.repo.SumPostedLines(ctx, accountID, nil, nil)
		if err != nil {
			return err
		}
		drafts, err := e.repo.SumDraftLines(ctx, accountID)
		if err != nil {
			return err
		}
		current := combine(account.Nature, posted.Debit, posted.Credit)
		fresh = CacheRow{
			AccountID:         accountID,
			CurrentBalance:    current,
			AvailableBalance:  current,
			PendingBalance:    combine(account.Nature, drafts.Debit, drafts.Credit),
			TotalDebits:       posted.Debit,
			TotalCredits:      posted.Credit,
			TransactionsCount: posted.Count,
			LastEntryID:       posted.LastEntryID,
			IsValid:           true,
			NeedsRefresh:      false,
			LastUpdated:       e.now(),
		}
		if err := store.UpsertCache(ctx, fresh); err != nil {
			return err
		}
		audit := AuditEntry{
			AccountID:       accountID,
			Action:          AuditCalculate,
			NewBalance:      &fresh.CurrentBalance,
			Notes:           "cache rebuilt from journal",
			SystemGenerated: true,
		}
		if existed {
			audit.Action = AuditRefresh
			audit.OldBalance = &prev.CurrentBalance
		}
		if actor := shared.ActorFromContext(ctx); actor.ID != 0 {
			audit.ActorID = &actor.ID
			audit.SystemGenerated = false
		}
		return store.InsertAudit(ctx, audit)
	})
	if err != nil {
		return CacheRow{}, err
	}
	e.logger.Debug("balance cache refreshed",
		slog.Int64("account_id", accountID),
		slog.String("balance", fresh.CurrentBalance.StringFixed(2)))
	return fresh, nil
}

// Invalidate flags the cache row stale without recomputing it. Posting
// paths call this inside their own transaction; this variant covers
// out-of-band corrections.
func (e *Engine) Invalidate(ctx context.Context, accountID int64, reason string) error {
	return e.repo.WithAccountLock(ctx, accountID, func(ctx context.Context, store TxStore) error {
		row, ok, err := store.GetCacheForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		row.IsValid = false
		row.NeedsRefresh = true
		if err := store.UpsertCache(ctx, row); err != nil {
			return err
		}
		return store.InsertAudit(ctx, AuditEntry{
			AccountID:       accountID,
			Action:          AuditInvalidate,
			OldBalance:      &row.CurrentBalance,
			Notes:           reason,
			SystemGenerated: true,
		})
	})
}

// BulkRefresh rebuilds caches account by account. One failing account
// does not abort the run; failures come back in the result.
func (e *Engine) BulkRefresh(ctx context.Context, accountIDs []int64) BulkResult {
	var res BulkResult
	for _, id := range accountIDs {
		if _, err := e.Refresh(ctx, id); err != nil {
			e.logger.Warn("balance refresh failed",
				slog.Int64("account_id", id), slog.Any("error", err))
			res.Failures = append(res.Failures, RefreshOutcome{AccountID: id, Err: err})
			continue
		}
		res.Refreshed++
	}
	return res
}

// CreateSnapshot fixes the exact balance at a date straight from the
// journal, bypassing the cache entirely.
func (e *Engine) CreateSnapshot(ctx context.Context, accountID int64, date time.Time) (Snapshot, error) {
	account, err := e.repo.GetAccount(ctx, accountID)
	if err != nil {
		return Snapshot{}, err
	}
	sums, err := e.repo.SumPostedLines(ctx, accountID, nil, &date)
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := e.repo.InsertSnapshot(ctx, Snapshot{
		AccountID:         accountID,
		SnapshotDate:      date,
		Balance:           combine(account.Nature, sums.Debit, sums.Credit),
		TransactionsCount: sums.Count,
		LastEntryID:       sums.LastEntryID,
	})
	if err != nil {
		return Snapshot{}, err
	}
	err = e.repo.InsertAudit(ctx, AuditEntry{
		AccountID:       accountID,
		Action:          AuditSnapshot,
		NewBalance:      &snap.Balance,
		Notes:           fmt.Sprintf("snapshot as of %s", date.Format("2006-01-02")),
		SystemGenerated: true,
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// RunningLedger lists an account's posted lines with running balances,
// oldest first.
func (e *Engine) RunningLedger(ctx context.Context, accountID int64, from, to *time.Time) ([]RunningLine, error) {
	if _, err := e.repo.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return e.repo.RunningLines(ctx, accountID, from, to)
}
