package accounts

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/matbaa-erp/matbaa-erp/internal/ledger/shared"
)

// Service coordinates chart of accounts maintenance and lookups.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateTypeInput carries fields for a new account type.
type CreateTypeInput struct {
	Code     string
	Name     string
	Category Category
	Nature   Nature
}

// CreateType validates category/nature consistency and stores the type.
func (s *Service) CreateType(ctx context.Context, in CreateTypeInput) (AccountType, error) {
	if in.Code == "" || in.Name == "" {
		return AccountType{}, shared.ErrValidation
	}
	if in.Nature == "" {
		in.Nature = NatureFor(in.Category)
	}
	if in.Nature != NatureFor(in.Category) {
		return AccountType{}, shared.ErrNatureMismatch
	}
	return s.repo.InsertType(ctx, AccountType{Code: in.Code, Name: in.Name, Category: in.Category, Nature: in.Nature})
}

// CreateInput carries fields for a new chart account.
type CreateInput struct {
	Code          string
	Name          string
	ParentID      *int64
	TypeID        int64
	IsLeaf        bool
	IsCashAccount bool
	IsBankAccount bool
}

// Create stores a new account after validating the parent and type.
func (s *Service) Create(ctx context.Context, in CreateInput) (Account, error) {
	if strings.TrimSpace(in.Code) == "" || strings.TrimSpace(in.Name) == "" {
		return Account{}, shared.ErrValidation
	}
	typ, err := s.repo.GetType(ctx, in.TypeID)
	if err != nil {
		return Account{}, err
	}
	if in.ParentID != nil {
		if _, err := s.repo.GetByID(ctx, *in.ParentID); err != nil {
			return Account{}, err
		}
	}
	acc := Account{
		Code:          strings.TrimSpace(in.Code),
		Name:          strings.TrimSpace(in.Name),
		ParentID:      in.ParentID,
		TypeID:        typ.ID,
		Category:      typ.Category,
		Nature:        typ.Nature,
		IsLeaf:        in.IsLeaf,
		IsActive:      true,
		IsCashAccount: in.IsCashAccount,
		IsBankAccount: in.IsBankAccount,
	}
	return s.repo.Insert(ctx, acc)
}

// Deactivate marks an account inactive. Referenced accounts are never
// hard-deleted; this is the only retirement path for them.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.SetActive(ctx, id, false)
}

// Reactivate marks an account active again.
func (s *Service) Reactivate(ctx context.Context, id int64) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.SetActive(ctx, id, true)
}

// Delete removes an account only while no journal line references it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	count, err := s.repo.CountLines(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return shared.ErrAccountReferenced
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByCode(ctx context.Context, code string) (Account, error) {
	return s.repo.GetByCode(ctx, code)
}

func (s *Service) List(ctx context.Context, filter Filter) ([]Account, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) ListTypes(ctx context.Context) ([]AccountType, error) {
	return s.repo.ListTypes(ctx)
}

// Tree materializes the code-ordered flat list with depth for
// presentation. Reads dominate writes here, so the tree is recomputed
// per call instead of cached.
func (s *Service) Tree(ctx context.Context) ([]TreeNode, error) {
	all, err := s.repo.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	depth := make(map[int64]int, len(all))
	byID := make(map[int64]Account, len(all))
	for _, a := range all {
		byID[a.ID] = a
	}
	var resolve func(a Account) int
	resolve = func(a Account) int {
		if d, ok := depth[a.ID]; ok {
			return d
		}
		d := 0
		if a.ParentID != nil {
			if parent, ok := byID[*a.ParentID]; ok {
				d = resolve(parent) + 1
			}
		}
		depth[a.ID] = d
		return d
	}
	nodes := make([]TreeNode, 0, len(all))
	for _, a := range all {
		nodes = append(nodes, TreeNode{Account: a, Depth: resolve(a)})
	}
	return nodes, nil
}

// SortByName orders accounts by display name using Arabic collation,
// falling back to code for equal names. Used by display lists; report
// iteration stays code-ordered.
func SortByName(accs []Account) {
	c := collate.New(language.Arabic)
	sort.SliceStable(accs, func(i, j int) bool {
		if cmp := c.CompareString(accs[i].Name, accs[j].Name); cmp != 0 {
			return cmp < 0
		}
		return accs[i].Code < accs[j].Code
	})
}
