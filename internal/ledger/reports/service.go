package reports

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/matbaa-erp/matbaa-erp/internal/ledger/accounts"
	"github.com/matbaa-erp/matbaa-erp/internal/ledger/querycache"
)

// Config carries the report account conventions. BaseCode prefixes
// select account subtrees by code.
type Config struct {
	CashCodePrefix string
	ReceivableCode string
	PayableCode    string
}

// Service generates the financial reports. Results are cached by
// report identity; concurrent identical requests collapse to one
// database pass via singleflight.
type Service struct {
	repo   Repository
	cache  *querycache.Cache
	logger *slog.Logger
	cfg    Config
	group  singleflight.Group
}

func NewService(repo Repository, cache *querycache.Cache, logger *slog.Logger, cfg Config) *Service {
	return &Service{repo: repo, cache: cache, logger: logger, cfg: cfg}
}

// build runs fn once per key across concurrent callers, consulting the
// query cache before and feeding it after.
func build[T any](ctx context.Context, s *Service, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var cached T
	if s.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}
	result, err, _ := s.group.Do(key, func() (any, error) {
		fresh, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		s.cache.SetJSON(ctx, key, fresh, ttl)
		return fresh, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

func (s *Service) TrialBalance(ctx context.Context, from, to *time.Time, opts TrialBalanceOptions) (TrialBalance, error) {
	key := querycache.BuildKey("trial_balance", "report", map[string]string{
		"from":  querycache.DateParam(from),
		"to":    querycache.DateParam(to),
		"zero":  strconv.FormatBool(opts.IncludeZero),
		"group": strconv.FormatBool(opts.GroupByCategory),
	})
	return build(ctx, s, key, querycache.TTLTrialBalance, func(ctx context.Context) (TrialBalance, error) {
		rows, err := s.repo.AccountTotals(ctx, from, to, nil)
		if err != nil {
			return TrialBalance{}, err
		}
		tb := BuildTrialBalance(rows, from, to, opts)
		s.logger.Debug("trial balance generated",
			slog.Int("rows", len(tb.Rows)), slog.Bool("balanced", tb.Balanced))
		return tb, nil
	})
}

func (s *Service) IncomeStatement(ctx context.Context, from, to time.Time, comparative bool) (IncomeStatement, error) {
	key := querycache.BuildKey("reports", "income_statement", map[string]string{
		"from":        from.Format("2006-01-02"),
		"to":          to.Format("2006-01-02"),
		"comparative": strconv.FormatBool(comparative),
	})
	return build(ctx, s, key, querycache.TTLReport, func(ctx context.Context) (IncomeStatement, error) {
		st, err := s.incomeStatement(ctx, from, to)
		if err != nil {
			return IncomeStatement{}, err
		}
		if comparative {
			priorFrom, priorTo := ComparativeWindow(from, to)
			prior, err := s.incomeStatement(ctx, priorFrom, priorTo)
			if err != nil {
				return IncomeStatement{}, err
			}
			st = WithComparative(st, prior)
		}
		return st, nil
	})
}

func (s *Service) incomeStatement(ctx context.Context, from, to time.Time) (IncomeStatement, error) {
	rows, err := s.repo.AccountTotals(ctx, &from, &to,
		[]accounts.Category{accounts.CategoryRevenue, accounts.CategoryExpense})
	if err != nil {
		return IncomeStatement{}, err
	}
	return BuildIncomeStatement(rows, from, to), nil
}

func (s *Service) BalanceSheet(ctx context.Context, asOf time.Time) (BalanceSheet, error) {
	key := querycache.BuildKey("reports", "balance_sheet", map[string]string{
		"as_of": asOf.Format("2006-01-02"),
	})
	return build(ctx, s, key, querycache.TTLReport, func(ctx context.Context) (BalanceSheet, error) {
		rows, err := s.repo.AccountTotals(ctx, nil, &asOf,
			[]accounts.Category{accounts.CategoryAsset, accounts.CategoryLiability, accounts.CategoryEquity})
		if err != nil {
			return BalanceSheet{}, err
		}
		return BuildBalanceSheet(rows, asOf), nil
	})
}

func (s *Service) CashFlow(ctx context.Context, from, to time.Time) (CashFlow, error) {
	key := querycache.BuildKey("reports", "cash_flow", map[string]string{
		"from": from.Format("2006-01-02"),
		"to":   to.Format("2006-01-02"),
	})
	return build(ctx, s, key, querycache.TTLReport, func(ctx context.Context) (CashFlow, error) {
		ids, err := s.repo.CashAccountIDs(ctx, s.cfg.CashCodePrefix)
		if err != nil {
			return CashFlow{}, err
		}
		lines, err := s.repo.CashLines(ctx, ids, from, to)
		if err != nil {
			return CashFlow{}, err
		}
		opening, err := s.repo.CashBalance(ctx, ids, from.AddDate(0, 0, -1))
		if err != nil {
			return CashFlow{}, err
		}
		closing, err := s.repo.CashBalance(ctx, ids, to)
		if err != nil {
			return CashFlow{}, err
		}
		cf := BuildCashFlow(lines, opening, closing, from, to)
		if !cf.Reconciled {
			s.logger.Warn("cash flow does not reconcile",
				slog.String("opening", cf.Opening.StringFixed(2)),
				slog.String("net_change", cf.NetChange.StringFixed(2)),
				slog.String("closing", cf.Closing.StringFixed(2)))
		}
		return cf, nil
	})
}

func (s *Service) Aging(ctx context.Context, typ AgingType, asOf time.Time) (Aging, error) {
	baseCode := s.cfg.ReceivableCode
	nature := accounts.NatureDebit
	if typ == AgingPayables {
		baseCode = s.cfg.PayableCode
		nature = accounts.NatureCredit
	}
	key := querycache.BuildKey("reports", "aging", map[string]string{
		"type":  string(typ),
		"as_of": asOf.Format("2006-01-02"),
	})
	return build(ctx, s, key, querycache.TTLReport, func(ctx context.Context) (Aging, error) {
		var amounts [4]decimal.Decimal
		for i, w := range BucketWindows(asOf) {
			amount, err := s.repo.WindowBalance(ctx, baseCode, nature, w.From, w.To)
			if err != nil {
				return Aging{}, err
			}
			amounts[i] = amount
		}
		return BuildAging(typ, baseCode, asOf, amounts), nil
	})
}

func (s *Service) FinancialRatios(ctx context.Context, asOf time.Time) (Ratios, error) {
	key := querycache.BuildKey("reports", "ratios", map[string]string{
		"as_of": asOf.Format("2006-01-02"),
	})
	return build(ctx, s, key, querycache.TTLReport, func(ctx context.Context) (Ratios, error) {
		bs, err := s.BalanceSheet(ctx, asOf)
		if err != nil {
			return Ratios{}, err
		}
		ytdFrom, ytdTo := YearToDateWindow(asOf)
		pl, err := s.incomeStatement(ctx, ytdFrom, ytdTo)
		if err != nil {
			return Ratios{}, err
		}
		return BuildRatios(bs, pl), nil
	})
}
