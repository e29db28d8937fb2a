package memory

import (
	"context"
	"sort"

	"recruitcore.io/internal/directory"
)

type companyStore struct{ s *Store }

func (c companyStore) Create(_ context.Context, company *directory.Company) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, ok := c.s.companies[company.ID]; ok {
		return directory.ErrAlreadyExists
	}
	c.s.companies[company.ID] = *company
	return nil
}

func (c companyStore) Update(_ context.Context, company *directory.Company) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, ok := c.s.companies[company.ID]; !ok {
		return directory.ErrNotFound
	}
	c.s.companies[company.ID] = *company
	return nil
}

func (c companyStore) FindByID(_ context.Context, id string) (*directory.Company, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	company, ok := c.s.companies[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return &company, nil
}

func (c companyStore) FindByIDs(_ context.Context, ids []string) ([]directory.Company, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	out := make([]directory.Company, 0, len(ids))
	for _, id := range dedupe(ids) {
		if company, ok := c.s.companies[id]; ok {
			out = append(out, company)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type branchStore struct{ s *Store }

func (b branchStore) Create(_ context.Context, branch *directory.Branch) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if _, ok := b.s.branches[branch.ID]; ok {
		return directory.ErrAlreadyExists
	}
	b.s.branches[branch.ID] = *branch
	return nil
}

func (b branchStore) Update(_ context.Context, branch *directory.Branch) error {
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if _, ok := b.s.branches[branch.ID]; !ok {
		return directory.ErrNotFound
	}
	b.s.branches[branch.ID] = *branch
	return nil
}

func (b branchStore) FindByID(_ context.Context, id string) (*directory.Branch, error) {
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()
	branch, ok := b.s.branches[id]
	if !ok {
		return nil, directory.ErrNotFound
	}
	return &branch, nil
}

func (b branchStore) ListByCompanies(_ context.Context, companyIDs []string, activeOnly bool) ([]directory.Branch, error) {
	want := set(companyIDs)
	b.s.mu.RLock()
	defer b.s.mu.RUnlock()
	out := []directory.Branch{}
	for _, branch := range b.s.branches {
		if _, ok := want[branch.CompanyID]; !ok {
			continue
		}
		if activeOnly && !branch.IsActive {
			continue
		}
		out = append(out, branch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memberStore struct{ s *Store }

func (m memberStore) Add(_ context.Context, member *directory.Membership) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.members {
		if existing.CompanyID == member.CompanyID && existing.UserID == member.UserID {
			return directory.ErrAlreadyExists
		}
	}
	m.s.members[member.ID] = *member
	return nil
}

func (m memberStore) Remove(_ context.Context, companyID, userID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for id, existing := range m.s.members {
		if existing.CompanyID == companyID && existing.UserID == userID {
			delete(m.s.members, id)
			return nil
		}
	}
	return directory.ErrNotFound
}

func (m memberStore) Find(_ context.Context, companyID, userID string) (*directory.Membership, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	for _, existing := range m.s.members {
		if existing.CompanyID == companyID && existing.UserID == userID {
			out := existing
			return &out, nil
		}
	}
	return nil, directory.ErrNotFound
}

func (m memberStore) ListByUser(_ context.Context, userID string) ([]directory.Membership, error) {
	return m.list(func(ms directory.Membership) bool { return ms.UserID == userID }), nil
}

func (m memberStore) ListByCompany(_ context.Context, companyID string) ([]directory.Membership, error) {
	return m.list(func(ms directory.Membership) bool { return ms.CompanyID == companyID }), nil
}

func (m memberStore) list(match func(directory.Membership) bool) []directory.Membership {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	out := []directory.Membership{}
	for _, ms := range m.s.members {
		if match(ms) {
			out = append(out, ms)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
