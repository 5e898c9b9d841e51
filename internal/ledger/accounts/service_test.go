package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/matbaa-erp/matbaa-erp/internal/ledger/shared"
)

type memoryRepo struct {
	accounts map[int64]Account
	types    map[int64]AccountType
	lineRefs map[int64]int64
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		accounts: make(map[int64]Account),
		types:    make(map[int64]AccountType),
		lineRefs: make(map[int64]int64),
	}
}

func (r *memoryRepo) addType(t AccountType) AccountType {
	r.nextID++
	t.ID = r.nextID
	r.types[t.ID] = t
	return t
}

func (r *memoryRepo) GetByID(ctx context.Context, id int64) (Account, error) {
	a, ok := r.accounts[id]
	if !ok {
		return Account{}, shared.ErrAccountNotFound
	}
	return a, nil
}

func (r *memoryRepo) GetByCode(ctx context.Context, code string) (Account, error) {
	for _, a := range r.accounts {
		if a.Code == code {
			return a, nil
		}
	}
	return Account{}, shared.ErrAccountNotFound
}

func (r *memoryRepo) List(ctx context.Context, filter Filter) ([]Account, error) {
	var out []Account
	for _, a := range r.accounts {
		if filter.LeafOnly && !a.IsLeaf {
			continue
		}
		if filter.ActiveOnly && !a.IsActive {
			continue
		}
		if filter.Category != "" && a.Category != filter.Category {
			continue
		}
		if filter.CashOnly && !a.IsCashAccount {
			continue
		}
		if filter.BankOnly && !a.IsBankAccount {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *memoryRepo) Insert(ctx context.Context, acc Account) (Account, error) {
	for _, a := range r.accounts {
		if a.Code == acc.Code {
			return Account{}, shared.ErrValidation
		}
	}
	r.nextID++
	acc.ID = r.nextID
	acc.CreatedAt = time.Now()
	acc.UpdatedAt = acc.CreatedAt
	r.accounts[acc.ID] = acc
	return acc, nil
}

func (r *memoryRepo) SetActive(ctx context.Context, id int64, active bool) error {
	a, ok := r.accounts[id]
	if !ok {
		return shared.ErrAccountNotFound
	}
	a.IsActive = active
	r.accounts[id] = a
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.accounts[id]; !ok {
		return shared.ErrAccountNotFound
	}
	delete(r.accounts, id)
	return nil
}

func (r *memoryRepo) CountLines(ctx context.Context, id int64) (int64, error) {
	return r.lineRefs[id], nil
}

func (r *memoryRepo) GetType(ctx context.Context, id int64) (AccountType, error) {
	t, ok := r.types[id]
	if !ok {
		return AccountType{}, shared.ErrNotFound
	}
	return t, nil
}

func (r *memoryRepo) ListTypes(ctx context.Context) ([]AccountType, error) {
	var out []AccountType
	for _, t := range r.types {
		out = append(out, t)
	}
	return out, nil
}

func (r *memoryRepo) InsertType(ctx context.Context, t AccountType) (AccountType, error) {
	return r.addType(t), nil
}

func TestCreateInheritsTypeNature(t *testing.T) {
	repo := newMemoryRepo()
	assetType := repo.addType(AccountType{Code: "AST", Name: "أصول", Category: CategoryAsset, Nature: NatureDebit})
	svc := NewService(repo)

	acc, err := svc.Create(context.Background(), CreateInput{
		Code: "1001", Name: "الصندوق", TypeID: assetType.ID, IsLeaf: true, IsCashAccount: true,
	})
	require.NoError(t, err)
	require.Equal(t, NatureDebit, acc.Nature)
	require.Equal(t, CategoryAsset, acc.Category)
	require.True(t, acc.IsActive)
}

func TestCreateTypeRejectsNatureMismatch(t *testing.T) {
	svc := NewService(newMemoryRepo())
	_, err := svc.CreateType(context.Background(), CreateTypeInput{
		Code: "REV", Name: "إيرادات", Category: CategoryRevenue, Nature: NatureDebit,
	})
	require.ErrorIs(t, err, shared.ErrNatureMismatch)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeleteReferencedAccountForbidden(t *testing.T) {
	repo := newMemoryRepo()
	typ := repo.addType(AccountType{Code: "AST", Name: "Assets", Category: CategoryAsset, Nature: NatureDebit})
	svc := NewService(repo)
	acc, err := svc.Create(context.Background(), CreateInput{Code: "1001", Name: "Cash", TypeID: typ.ID, IsLeaf: true})
	require.NoError(t, err)

	repo.lineRefs[acc.ID] = 3
	err = svc.Delete(context.Background(), acc.ID)
	require.ErrorIs(t, err, shared.ErrAccountReferenced)

	// Deactivation remains available.
	require.NoError(t, svc.Deactivate(context.Background(), acc.ID))
	got, err := svc.Get(context.Background(), acc.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)
}

func TestNatureFor(t *testing.T) {
	cases := map[Category]Nature{
		CategoryAsset:     NatureDebit,
		CategoryExpense:   NatureDebit,
		CategoryLiability: NatureCredit,
		CategoryEquity:    NatureCredit,
		CategoryRevenue:   NatureCredit,
	}
	for cat, want := range cases {
		if got := NatureFor(cat); got != want {
			t.Fatalf("nature for %s: got %s want %s", cat, got, want)
		}
	}
}

func TestTreeDepth(t *testing.T) {
	repo := newMemoryRepo()
	typ := repo.addType(AccountType{Code: "AST", Name: "Assets", Category: CategoryAsset, Nature: NatureDebit})
	svc := NewService(repo)

	root, err := svc.Create(context.Background(), CreateInput{Code: "1", Name: "الأصول", TypeID: typ.ID})
	require.NoError(t, err)
	child, err := svc.Create(context.Background(), CreateInput{Code: "10", Name: "الأصول المتداولة", TypeID: typ.ID, ParentID: &root.ID})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), CreateInput{Code: "1001", Name: "الصندوق", TypeID: typ.ID, ParentID: &child.ID, IsLeaf: true})
	require.NoError(t, err)

	nodes, err := svc.Tree(context.Background())
	require.NoError(t, err)
	depths := make(map[string]int)
	for _, n := range nodes {
		depths[n.Code] = n.Depth
	}
	require.Equal(t, 0, depths["1"])
	require.Equal(t, 1, depths["10"])
	require.Equal(t, 2, depths["1001"])
}

func TestSortByNameArabic(t *testing.T) {
	accs := []Account{
		{Code: "2", Name: "مصروفات"},
		{Code: "1", Name: "إيرادات"},
	}
	SortByName(accs)
	if accs[0].Name != "إيرادات" {
		t.Fatalf("expected alef-initial name first, got %s", accs[0].Name)
	}
}

func TestCreateRequiresExistingParent(t *testing.T) {
	repo := newMemoryRepo()
	typ := repo.addType(AccountType{Code: "AST", Name: "Assets", Category: CategoryAsset, Nature: NatureDebit})
	svc := NewService(repo)
	missing := int64(99)
	_, err := svc.Create(context.Background(), CreateInput{Code: "1001", Name: "Cash", TypeID: typ.ID, ParentID: &missing})
	require.True(t, errors.Is(err, shared.ErrNotFound))
}
