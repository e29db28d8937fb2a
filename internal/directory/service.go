package directory

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"recruitcore.io/internal/cache"
	"recruitcore.io/internal/ids"
)

const (
	companyTTL         = time.Hour
	branchTTL          = time.Hour
	userCompaniesTTL   = 30 * time.Minute
	userBranchesTTL    = 30 * time.Minute
	companyBranchesTTL = 5 * time.Minute
	userAccessTTL      = 5 * time.Minute
	statsTTL           = 5 * time.Minute
)

var validRoles = map[string]struct{}{
	RoleOwner:   {},
	RoleAdmin:   {},
	RoleManager: {},
	RoleMember:  {},
}

// MemberCompany is a company as seen by one of its members.
type MemberCompany struct {
	Company
	Role string `json:"role"`
}

// CompanyInput creates a company.
type CompanyInput struct {
	Name        string `json:"name"`
	ShortName   string `json:"short_name"`
	Code        string `json:"code"`
	Email       string `json:"email"`
	Website     string `json:"website"`
	Industry    string `json:"industry"`
	Description string `json:"description"`
}

// CompanyUpdate patches a company; nil fields are left unchanged.
type CompanyUpdate struct {
	Name        *string `json:"name"`
	ShortName   *string `json:"short_name"`
	Email       *string `json:"email"`
	Website     *string `json:"website"`
	Industry    *string `json:"industry"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

type BranchInput struct {
	Name         string `json:"name"`
	BusinessType string `json:"business_type"`
	Address      string `json:"address"`
	City         string `json:"city"`
	Country      string `json:"country"`
	Size         int    `json:"size"`
}

type BranchUpdate struct {
	Name         *string `json:"name"`
	BusinessType *string `json:"business_type"`
	Address      *string `json:"address"`
	City         *string `json:"city"`
	Country      *string `json:"country"`
	Size         *int    `json:"size"`
	IsActive     *bool   `json:"is_active"`
}

// Service serves company, branch and membership data through the cache. Every write
// invalidates the entity, its parent lists, each member's derived entries and the statistics.
type Service struct {
	repo  Repository
	cache *cache.Cache
	now   func() time.Time

	// fanouts holds companies whose per-user keys could not be enumerated, with the extra
	// users named by the write. While any are queued, per-user reads skip the cache.
	mu      sync.Mutex
	fanouts map[string]*pendingFanOut
}

type pendingFanOut struct {
	users map[string]struct{}
	// queued counts failures; a retry only clears the entry if none arrived meanwhile.
	queued int
}

type Option func(*Service)

func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService builds the directory service. c may be nil.
func NewService(repo Repository, c *cache.Cache, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("directory repository is required")
	}
	if c == nil {
		c = cache.New(nil)
	}
	s := &Service{repo: repo, cache: c, now: time.Now, fanouts: make(map[string]*pendingFanOut)}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Company returns the company and whether it was served from the cache.
func (s *Service) Company(ctx context.Context, id string) (*Company, bool, error) {
	return cache.Fetch(ctx, s.cache, cache.CompanyKey(id), companyTTL, func(ctx context.Context) (*Company, error) {
		return s.repo.Companies(ctx).FindByID(ctx, id)
	})
}

func (s *Service) Branch(ctx context.Context, id string) (*Branch, bool, error) {
	return cache.Fetch(ctx, s.cache, cache.BranchKey(id), branchTTL, func(ctx context.Context) (*Branch, error) {
		return s.repo.Branches(ctx).FindByID(ctx, id)
	})
}

// UserCompanies lists the active companies the user belongs to, with the user's role.
func (s *Service) UserCompanies(ctx context.Context, userID string) ([]MemberCompany, bool, error) {
	return cache.Fetch(ctx, s.userCache(), cache.UserCompaniesKey(userID), userCompaniesTTL, func(ctx context.Context) ([]MemberCompany, error) {
		members, err := s.repo.Members(ctx).ListByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		roles := make(map[string]string, len(members))
		companyIDs := make([]string, 0, len(members))
		for _, m := range members {
			roles[m.CompanyID] = m.Role
			companyIDs = append(companyIDs, m.CompanyID)
		}
		out := []MemberCompany{}
		if len(companyIDs) == 0 {
			return out, nil
		}
		companies, err := s.repo.Companies(ctx).FindByIDs(ctx, companyIDs)
		if err != nil {
			return nil, err
		}
		for _, c := range companies {
			if !c.IsActive {
				continue
			}
			out = append(out, MemberCompany{Company: c, Role: roles[c.ID]})
		}
		return out, nil
	})
}

func (s *Service) CompanyBranches(ctx context.Context, companyID string, activeOnly bool) ([]Branch, bool, error) {
	return cache.Fetch(ctx, s.cache, cache.CompanyBranchesKey(companyID, activeOnly), companyBranchesTTL, func(ctx context.Context) ([]Branch, error) {
		if _, err := s.repo.Companies(ctx).FindByID(ctx, companyID); err != nil {
			return nil, err
		}
		return s.repo.Branches(ctx).ListByCompanies(ctx, []string{companyID}, activeOnly)
	})
}

// UserBranches lists the active branches of the active companies the user belongs to.
func (s *Service) UserBranches(ctx context.Context, userID string) ([]Branch, bool, error) {
	return cache.Fetch(ctx, s.userCache(), cache.UserBranchesKey(userID), userBranchesTTL, func(ctx context.Context) ([]Branch, error) {
		companyIDs, err := s.activeCompanyIDs(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(companyIDs) == 0 {
			return []Branch{}, nil
		}
		return s.repo.Branches(ctx).ListByCompanies(ctx, companyIDs, true)
	})
}

func (s *Service) activeCompanyIDs(ctx context.Context, userID string) ([]string, error) {
	members, err := s.repo.Members(ctx).ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.CompanyID)
	}
	companies, err := s.repo.Companies(ctx).FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(companies))
	for _, c := range companies {
		if c.IsActive {
			out = append(out, c.ID)
		}
	}
	return out, nil
}

// ValidateUserAccess reports whether the user may act in the branch: the branch and its company
// are active and the user is a member of the company.
func (s *Service) ValidateUserAccess(ctx context.Context, userID, branchID string) (bool, bool, error) {
	return cache.Fetch(ctx, s.userCache(), cache.UserAccessKey(userID, branchID), userAccessTTL, func(ctx context.Context) (bool, error) {
		branch, err := s.repo.Branches(ctx).FindByID(ctx, branchID)
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if !branch.IsActive {
			return false, nil
		}
		company, err := s.repo.Companies(ctx).FindByID(ctx, branch.CompanyID)
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if !company.IsActive {
			return false, nil
		}
		_, err = s.repo.Members(ctx).Find(ctx, company.ID, userID)
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return err == nil, err
	})
}

func (s *Service) CompanyStatistics(ctx context.Context, companyID string) (*Statistics, bool, error) {
	return cache.Fetch(ctx, s.cache, cache.CompanyStatsKey(companyID), statsTTL, func(ctx context.Context) (*Statistics, error) {
		company, err := s.repo.Companies(ctx).FindByID(ctx, companyID)
		if err != nil {
			return nil, err
		}
		branches, err := s.repo.Branches(ctx).ListByCompanies(ctx, []string{companyID}, true)
		if err != nil {
			return nil, err
		}
		members, err := s.repo.Members(ctx).ListByCompany(ctx, companyID)
		if err != nil {
			return nil, err
		}
		stats := &Statistics{
			CompanyID:      company.ID,
			CompanyName:    company.Name,
			BranchCount:    len(branches),
			MemberCount:    len(members),
			MembersByRole:  make(map[string]int),
			CompanyCreated: company.CreatedAt,
			LastUpdated:    company.UpdatedAt,
		}
		for _, m := range members {
			stats.MembersByRole[m.Role]++
		}
		if len(branches) > 0 {
			stats.AvgMembersPerBranch = float64(len(members)) / float64(len(branches))
		}
		return stats, nil
	})
}

// Members lists a company's memberships straight from the store.
func (s *Service) Members(ctx context.Context, companyID string) ([]Membership, error) {
	if _, err := s.repo.Companies(ctx).FindByID(ctx, companyID); err != nil {
		return nil, err
	}
	return s.repo.Members(ctx).ListByCompany(ctx, companyID)
}

// CreateCompany creates an active company owned by ownerID, who becomes its first member.
func (s *Service) CreateCompany(ctx context.Context, ownerID string, in CompanyInput) (*Company, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: company name and owner are required", ErrInvalidInput)
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	ts := s.now().UTC()
	company := &Company{
		ID:          ids.New(),
		OwnerID:     ownerID,
		Name:        name,
		ShortName:   strings.TrimSpace(in.ShortName),
		Code:        strings.TrimSpace(in.Code),
		Email:       email,
		Website:     strings.TrimSpace(in.Website),
		Industry:    strings.TrimSpace(in.Industry),
		Description: strings.TrimSpace(in.Description),
		IsActive:    true,
		UpdatedBy:   ownerID,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if err := s.repo.Companies(ctx).Create(ctx, company); err != nil {
		return nil, err
	}
	err = s.repo.Members(ctx).Add(ctx, &Membership{
		ID:         ids.New(),
		CompanyID:  company.ID,
		UserID:     ownerID,
		Role:       RoleOwner,
		AssignedBy: ownerID,
		AssignedAt: ts,
	})
	if err != nil {
		return nil, fmt.Errorf("add owner membership: %w", err)
	}
	s.invalidateCompany(ctx, company.ID)
	return company, nil
}

func (s *Service) UpdateCompany(ctx context.Context, id string, upd CompanyUpdate, by string) (*Company, error) {
	companies := s.repo.Companies(ctx)
	company, err := companies.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: company name is required", ErrInvalidInput)
		}
		company.Name = name
	}
	if upd.Email != nil {
		email, err := normalizeEmail(*upd.Email)
		if err != nil {
			return nil, err
		}
		company.Email = email
	}
	setString(&company.ShortName, upd.ShortName)
	setString(&company.Website, upd.Website)
	setString(&company.Industry, upd.Industry)
	setString(&company.Description, upd.Description)
	if upd.IsActive != nil {
		company.IsActive = *upd.IsActive
	}
	company.UpdatedBy = by
	company.UpdatedAt = s.now().UTC()
	if err := companies.Update(ctx, company); err != nil {
		return nil, err
	}
	s.invalidateCompany(ctx, company.ID)
	return company, nil
}

// DeactivateCompany is the soft delete; members lose access to every branch of the company.
func (s *Service) DeactivateCompany(ctx context.Context, id, by string) error {
	inactive := false
	_, err := s.UpdateCompany(ctx, id, CompanyUpdate{IsActive: &inactive}, by)
	return err
}

func (s *Service) CreateBranch(ctx context.Context, companyID string, in BranchInput, by string) (*Branch, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: branch name is required", ErrInvalidInput)
	}
	if in.Size < 0 {
		return nil, fmt.Errorf("%w: branch size must not be negative", ErrInvalidInput)
	}
	if _, err := s.repo.Companies(ctx).FindByID(ctx, companyID); err != nil {
		return nil, err
	}
	ts := s.now().UTC()
	branch := &Branch{
		ID:           ids.New(),
		CompanyID:    companyID,
		Name:         name,
		BusinessType: strings.TrimSpace(in.BusinessType),
		Address:      strings.TrimSpace(in.Address),
		City:         strings.TrimSpace(in.City),
		Country:      strings.TrimSpace(in.Country),
		Size:         in.Size,
		IsActive:     true,
		CreatedBy:    by,
		UpdatedBy:    by,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	if err := s.repo.Branches(ctx).Create(ctx, branch); err != nil {
		return nil, err
	}
	s.invalidateCompany(ctx, companyID)
	return branch, nil
}

func (s *Service) UpdateBranch(ctx context.Context, id string, upd BranchUpdate, by string) (*Branch, error) {
	branches := s.repo.Branches(ctx)
	branch, err := branches.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: branch name is required", ErrInvalidInput)
		}
		branch.Name = name
	}
	if upd.Size != nil {
		if *upd.Size < 0 {
			return nil, fmt.Errorf("%w: branch size must not be negative", ErrInvalidInput)
		}
		branch.Size = *upd.Size
	}
	setString(&branch.BusinessType, upd.BusinessType)
	setString(&branch.Address, upd.Address)
	setString(&branch.City, upd.City)
	setString(&branch.Country, upd.Country)
	if upd.IsActive != nil {
		branch.IsActive = *upd.IsActive
	}
	branch.UpdatedBy = by
	branch.UpdatedAt = s.now().UTC()
	if err := branches.Update(ctx, branch); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx, cache.BranchKey(branch.ID))
	s.invalidateCompany(ctx, branch.CompanyID)
	return branch, nil
}

func (s *Service) DeactivateBranch(ctx context.Context, id, by string) error {
	inactive := false
	_, err := s.UpdateBranch(ctx, id, BranchUpdate{IsActive: &inactive}, by)
	return err
}

// AddMember places a user in a company. A repeated add is ErrAlreadyExists.
func (s *Service) AddMember(ctx context.Context, companyID, userID, role, by string) (*Membership, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if role == "" {
		role = RoleMember
	}
	if _, ok := validRoles[role]; !ok {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	if _, err := s.repo.Companies(ctx).FindByID(ctx, companyID); err != nil {
		return nil, err
	}
	m := &Membership{
		ID:         ids.New(),
		CompanyID:  companyID,
		UserID:     userID,
		Role:       role,
		AssignedBy: by,
		AssignedAt: s.now().UTC(),
	}
	if err := s.repo.Members(ctx).Add(ctx, m); err != nil {
		return nil, err
	}
	s.invalidateCompany(ctx, companyID)
	return m, nil
}

// RemoveMember drops the membership; the user's cached access entries go with it.
func (s *Service) RemoveMember(ctx context.Context, companyID, userID string) error {
	if err := s.repo.Members(ctx).Remove(ctx, companyID, userID); err != nil {
		return err
	}
	s.invalidateCompany(ctx, companyID, userID)
	return nil
}

// invalidateCompany drops every entry derived from the company: its record, branch lists,
// statistics, and for each member (plus extraUsers) the company and branch lists and the
// per-branch access checks. When members or branches cannot be listed the company-level keys
// still go and the fan-out is queued for Flush.
func (s *Service) invalidateCompany(ctx context.Context, companyID string, extraUsers ...string) {
	if err := s.fanOut(ctx, companyID, extraUsers); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("event", "cache_invalidation_failed").
			Str("company_id", companyID).
			Msg("company fan-out deferred")
		s.queueFanOut(companyID, extraUsers)
	}
}

func (s *Service) fanOut(ctx context.Context, companyID string, extraUsers []string) error {
	s.cache.Invalidate(ctx,
		cache.CompanyKey(companyID),
		cache.CompanyBranchesKey(companyID, true),
		cache.CompanyBranchesKey(companyID, false),
		cache.CompanyStatsKey(companyID),
	)
	members, err := s.repo.Members(ctx).ListByCompany(ctx, companyID)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}
	branches, err := s.repo.Branches(ctx).ListByCompanies(ctx, []string{companyID}, false)
	if err != nil {
		return fmt.Errorf("list branches: %w", err)
	}
	users := append([]string{}, extraUsers...)
	for _, m := range members {
		users = append(users, m.UserID)
	}
	var keys []string
	for _, u := range users {
		keys = append(keys, cache.UserCompaniesKey(u), cache.UserBranchesKey(u))
		for _, b := range branches {
			keys = append(keys, cache.UserAccessKey(u, b.ID))
		}
	}
	s.cache.Invalidate(ctx, keys...)
	return nil
}

func (s *Service) queueFanOut(companyID string, extraUsers []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.fanouts[companyID]
	if !ok {
		p = &pendingFanOut{users: make(map[string]struct{}, len(extraUsers))}
		s.fanouts[companyID] = p
	}
	p.queued++
	for _, u := range extraUsers {
		p.users[u] = struct{}{}
	}
}

// Flush retries queued company fan-outs and returns how many remain.
func (s *Service) Flush(ctx context.Context) int {
	type snapshot struct {
		users  []string
		queued int
	}
	s.mu.Lock()
	work := make(map[string]snapshot, len(s.fanouts))
	for companyID, p := range s.fanouts {
		users := make([]string, 0, len(p.users))
		for u := range p.users {
			users = append(users, u)
		}
		sort.Strings(users)
		work[companyID] = snapshot{users: users, queued: p.queued}
	}
	s.mu.Unlock()

	for companyID, snap := range work {
		if err := s.fanOut(ctx, companyID, snap.users); err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Str("company_id", companyID).Msg("company fan-out retry failed")
			continue
		}
		s.mu.Lock()
		if p, ok := s.fanouts[companyID]; ok && p.queued == snap.queued {
			delete(s.fanouts, companyID)
		}
		s.mu.Unlock()
	}
	return s.PendingFanOuts()
}

// PendingFanOuts reports how many companies still wait for a fan-out.
func (s *Service) PendingFanOuts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fanouts)
}

// userCache is the cache for per-user entries; it is disabled while a fan-out is queued because
// the affected users are unknown.
func (s *Service) userCache() *cache.Cache {
	if s.PendingFanOuts() > 0 {
		return nil
	}
	return s.cache
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", nil
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	return email, nil
}
