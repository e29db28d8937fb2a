package directory

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("directory: not found")
	ErrAlreadyExists = errors.New("directory: already exists")
	ErrInvalidInput  = errors.New("directory: invalid input")
)

// Membership roles.
const (
	RoleOwner   = "owner"
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleMember  = "member"
)

type Company struct {
	ID          string    `bson:"_id" json:"id"`
	OwnerID     string    `bson:"owner_id" json:"owner_id"`
	Name        string    `bson:"name" json:"name"`
	ShortName   string    `bson:"short_name,omitempty" json:"short_name,omitempty"`
	Code        string    `bson:"code,omitempty" json:"code,omitempty"`
	Email       string    `bson:"email,omitempty" json:"email,omitempty"`
	Website     string    `bson:"website,omitempty" json:"website,omitempty"`
	Industry    string    `bson:"industry,omitempty" json:"industry,omitempty"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	IsActive    bool      `bson:"is_active" json:"is_active"`
	UpdatedBy   string    `bson:"updated_by,omitempty" json:"updated_by,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

type Branch struct {
	ID           string    `bson:"_id" json:"id"`
	CompanyID    string    `bson:"company_id" json:"company_id"`
	Name         string    `bson:"name" json:"name"`
	BusinessType string    `bson:"business_type,omitempty" json:"business_type,omitempty"`
	Address      string    `bson:"address,omitempty" json:"address,omitempty"`
	City         string    `bson:"city,omitempty" json:"city,omitempty"`
	Country      string    `bson:"country,omitempty" json:"country,omitempty"`
	Size         int       `bson:"size" json:"size"`
	IsActive     bool      `bson:"is_active" json:"is_active"`
	CreatedBy    string    `bson:"created_by,omitempty" json:"created_by,omitempty"`
	UpdatedBy    string    `bson:"updated_by,omitempty" json:"updated_by,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// Membership places a user in a company. (CompanyID, UserID) is unique.
type Membership struct {
	ID         string    `bson:"_id" json:"id"`
	CompanyID  string    `bson:"company_id" json:"company_id"`
	UserID     string    `bson:"user_id" json:"user_id"`
	Role       string    `bson:"role" json:"role"`
	AssignedBy string    `bson:"assigned_by,omitempty" json:"assigned_by,omitempty"`
	AssignedAt time.Time `bson:"assigned_at" json:"assigned_at"`
}

// Statistics is the cached aggregate over one company.
type Statistics struct {
	CompanyID           string         `json:"company_id"`
	CompanyName         string         `json:"company_name"`
	BranchCount         int            `json:"branch_count"`
	MemberCount         int            `json:"member_count"`
	MembersByRole       map[string]int `json:"members_by_role"`
	AvgMembersPerBranch float64        `json:"avg_members_per_branch"`
	CompanyCreated      time.Time      `json:"company_created"`
	LastUpdated         time.Time      `json:"last_updated"`
}

// Repository is the persistence consumed by Service.
type Repository interface {
	Companies(ctx context.Context) CompanyStore
	Branches(ctx context.Context) BranchStore
	Members(ctx context.Context) MemberStore
}

type CompanyStore interface {
	Create(ctx context.Context, c *Company) error
	Update(ctx context.Context, c *Company) error
	FindByID(ctx context.Context, id string) (*Company, error)
	FindByIDs(ctx context.Context, ids []string) ([]Company, error)
}

type BranchStore interface {
	Create(ctx context.Context, b *Branch) error
	Update(ctx context.Context, b *Branch) error
	FindByID(ctx context.Context, id string) (*Branch, error)
	ListByCompanies(ctx context.Context, companyIDs []string, activeOnly bool) ([]Branch, error)
}

type MemberStore interface {
	// Add returns ErrAlreadyExists when the user is already a member.
	Add(ctx context.Context, m *Membership) error
	Remove(ctx context.Context, companyID, userID string) error
	Find(ctx context.Context, companyID, userID string) (*Membership, error)
	ListByUser(ctx context.Context, userID string) ([]Membership, error)
	ListByCompany(ctx context.Context, companyID string) ([]Membership, error)
}
