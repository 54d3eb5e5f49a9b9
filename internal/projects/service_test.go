package projects

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kis-labs/webbuilder/internal/actionlog"
	"github.com/kis-labs/webbuilder/internal/gate"
	"github.com/kis-labs/webbuilder/internal/platform/db"
	"github.com/kis-labs/webbuilder/internal/principal"
	"github.com/kis-labs/webbuilder/internal/shared"
)

// memoryRepo enforces global alias uniqueness the way the table does.
type memoryRepo struct {
	mu       sync.Mutex
	nextID   int64
	items    map[int64]*Project
	aliases  map[string]bool
	stealFor int // number of inserts to fail as if another writer won
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[int64]*Project{}, aliases: map[string]bool{}}
}

func (m *memoryRepo) Insert(_ context.Context, p *Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stealFor > 0 {
		m.stealFor--
		m.aliases[p.Alias] = true
		return shared.ErrAliasConflict
	}
	if m.aliases[p.Alias] {
		return shared.ErrAliasConflict
	}
	m.nextID++
	p.ID = m.nextID
	cp := *p
	m.items[p.ID] = &cp
	m.aliases[p.Alias] = true
	return nil
}

func (m *memoryRepo) FindByID(_ context.Context, ownerID, id int64) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok || p.OwnerID != ownerID {
		return nil, shared.NotFound("Project not found")
	}
	cp := *p
	return &cp, nil
}

func (m *memoryRepo) FindByAlias(_ context.Context, ownerID int64, alias string) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.items {
		if p.OwnerID == ownerID && p.Alias == alias {
			cp := *p
			return &cp, nil
		}
	}
	return nil, shared.NotFound("Project not found")
}

func (m *memoryRepo) AliasesLike(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.ReplaceAll(strings.TrimSuffix(pattern, "%"), `\`, "")
	var out []string
	for a := range m.aliases {
		if strings.HasPrefix(a, prefix) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryRepo) List(_ context.Context, ownerID int64, q ListQuery) ([]Project, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Project
	for id := int64(1); id <= m.nextID; id++ {
		p, ok := m.items[id]
		if !ok || p.OwnerID != ownerID {
			continue
		}
		if q.Name != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(q.Name)) {
			continue
		}
		out = append(out, *p)
	}
	total := len(out)
	start := min(q.Page.Offset(), total)
	end := min(start+q.Page.PerPage, total)
	return out[start:end], total, nil
}

type captureRecorder struct {
	mu      sync.Mutex
	actions []actionlog.Action
}

func (c *captureRecorder) Record(_ context.Context, _ int64, a actionlog.Action) {
	c.mu.Lock()
	c.actions = append(c.actions, a)
	c.mu.Unlock()
}

type fixture struct {
	repo     *memoryRepo
	recorder *captureRecorder
	service  *Service
	owner    gate.Grant
	other    gate.Grant
}

func newFixture(t *testing.T, maxAttempts int) *fixture {
	t.Helper()
	repo := newMemoryRepo()
	rec := &captureRecorder{}
	return &fixture{
		repo:     repo,
		recorder: rec,
		service:  NewService(func(db.Conn) RepositoryPort { return repo }, rec, nil, maxAttempts),
		owner:    gate.Grant{Principal: &principal.Principal{ID: 1, LoginName: "owner", Role: principal.RoleUser}},
		other:    gate.Grant{Principal: &principal.Principal{ID: 2, LoginName: "other", Role: principal.RoleUser}},
	}
}

func TestCreateDerivesAliasAndStripsThumbnailQuery(t *testing.T) {
	f := newFixture(t, 0)
	p, err := f.service.Create(context.Background(), f.owner, CreateInput{
		Name:      "Trang Chủ",
		Thumbnail: "https://cdn.example.com/a.png?X-Amz-Signature=abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "trang-chu", p.Alias)
	assert.Equal(t, "https://cdn.example.com/a.png", p.Thumbnail)
	assert.Equal(t, int64(1), p.OwnerID)
	assert.Equal(t, []actionlog.Action{actionlog.ActionProjectCreate}, f.recorder.actions)
}

func TestCreateRejectsBadAlias(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.service.Create(context.Background(), f.owner, CreateInput{Name: "Site", Alias: "Not Valid"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.service.Create(context.Background(), f.owner, CreateInput{Name: "***"})
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Empty(t, f.recorder.actions)
}

func TestCreateExistingAliasConflicts(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.service.Create(context.Background(), f.owner, CreateInput{Name: "Site", Alias: "site"})
	require.NoError(t, err)
	_, err = f.service.Create(context.Background(), f.other, CreateInput{Name: "Site", Alias: "site"})
	require.ErrorIs(t, err, shared.ErrAliasConflict)
}

func TestListPaginatesOwnProjects(t *testing.T) {
	f := newFixture(t, 0)
	for i := range 5 {
		_, err := f.service.Create(context.Background(), f.owner, CreateInput{Name: fmt.Sprintf("Site %d", i)})
		require.NoError(t, err)
	}
	_, err := f.service.Create(context.Background(), f.other, CreateInput{Name: "Foreign"})
	require.NoError(t, err)

	page, err := f.service.List(context.Background(), f.owner, ListQuery{
		Page:   shared.PageRequest{Page: 2, PerPage: 2},
		SortBy: "bogus",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Count)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.Limit)
	require.Len(t, page.Projects, 2)
	assert.Equal(t, "Site 2", page.Projects[0].Name)
}

func TestListEmptyReturnsEmptySlice(t *testing.T) {
	f := newFixture(t, 0)
	page, err := f.service.List(context.Background(), f.owner, ListQuery{Page: shared.PageRequest{Page: 1, PerPage: 10}})
	require.NoError(t, err)
	assert.NotNil(t, page.Projects)
	assert.Zero(t, page.Count)
}

func TestGetByAliasScopedToOwner(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.service.Create(context.Background(), f.owner, CreateInput{Name: "Mine", Alias: "mine"})
	require.NoError(t, err)

	p, err := f.service.GetByAlias(context.Background(), f.owner, "mine")
	require.NoError(t, err)
	assert.Equal(t, "Mine", p.Name)

	_, err = f.service.GetByAlias(context.Background(), f.other, "mine")
	require.ErrorIs(t, err, shared.ErrNotFound)
	assert.EqualError(t, err, "Project not found")
}

func TestDuplicateAssignsNextCopyAlias(t *testing.T) {
	f := newFixture(t, 0)
	src, err := f.service.Create(context.Background(), f.owner, CreateInput{Name: "Shop", Alias: "shop", Description: "d"})
	require.NoError(t, err)

	first, err := f.service.Duplicate(context.Background(), f.owner, src.ID)
	require.NoError(t, err)
	assert.Equal(t, "shop-copy-1", first.Alias)
	assert.Equal(t, "Copy of Shop", first.Name)
	assert.Equal(t, "d", first.Description)

	second, err := f.service.Duplicate(context.Background(), f.owner, src.ID)
	require.NoError(t, err)
	assert.Equal(t, "shop-copy-2", second.Alias)
	assert.Equal(t, actionlog.ActionProjectDuplicate, f.recorder.actions[len(f.recorder.actions)-1])
}

func TestDuplicateRetriesWhenAliasIsTaken(t *testing.T) {
	f := newFixture(t, 3)
	src, err := f.service.Create(context.Background(), f.owner, CreateInput{Name: "Shop", Alias: "shop"})
	require.NoError(t, err)

	f.repo.stealFor = 2
	dup, err := f.service.Duplicate(context.Background(), f.owner, src.ID)
	require.NoError(t, err)
	assert.Equal(t, "shop-copy-3", dup.Alias)
}

func TestDuplicateExhaustsAttempts(t *testing.T) {
	f := newFixture(t, 2)
	src, err := f.service.Create(context.Background(), f.owner, CreateInput{Name: "Shop", Alias: "shop"})
	require.NoError(t, err)

	f.repo.stealFor = 2
	_, err = f.service.Duplicate(context.Background(), f.owner, src.ID)
	require.ErrorIs(t, err, shared.ErrAliasConflict)
}

func TestDuplicateForeignProjectNotFound(t *testing.T) {
	f := newFixture(t, 0)
	src, err := f.service.Create(context.Background(), f.owner, CreateInput{Name: "Shop", Alias: "shop"})
	require.NoError(t, err)

	_, err = f.service.Duplicate(context.Background(), f.other, src.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestConcurrentDuplicatesGetDistinctAliases(t *testing.T) {
	f := newFixture(t, 20)
	src, err := f.service.Create(context.Background(), f.owner, CreateInput{Name: "Shop", Alias: "shop"})
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	aliases := make([]string, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dup, err := f.service.Duplicate(context.Background(), f.owner, src.ID)
			errs[i] = err
			if err == nil {
				aliases[i] = dup.Alias
			}
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := range n {
		require.NoError(t, errs[i])
		assert.False(t, seen[aliases[i]], aliases[i])
		seen[aliases[i]] = true
	}
}
