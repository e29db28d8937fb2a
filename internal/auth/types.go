package auth

import "time"

// User is an identity record. PasswordHash never leaves the process in JSON, which also keeps it
// out of every cache entry.
type User struct {
	ID           string    `bson:"_id" json:"id"`
	Email        string    `bson:"email" json:"email"`
	FullName     string    `bson:"full_name,omitempty" json:"full_name,omitempty"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	IsActive     bool      `bson:"is_active" json:"is_active"`
	IsVerified   bool      `bson:"is_verified" json:"is_verified"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// Actor is a named role. System actors cannot be deleted, renamed or deactivated.
type Actor struct {
	ID          string    `bson:"_id" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	IsActive    bool      `bson:"is_active" json:"is_active"`
	IsDefault   bool      `bson:"is_default" json:"is_default"`
	IsSystem    bool      `bson:"is_system" json:"is_system"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// Permission is a capability string, conventionally resource:action.
type Permission struct {
	ID          string    `bson:"_id" json:"id"`
	Name        string    `bson:"name" json:"name"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	IsActive    bool      `bson:"is_active" json:"is_active"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updated_at"`
}

// ActorPermission grants a permission to an actor. (ActorID, PermissionID) is unique.
type ActorPermission struct {
	ID           string    `bson:"_id" json:"id"`
	ActorID      string    `bson:"actor_id" json:"actor_id"`
	PermissionID string    `bson:"permission_id" json:"permission_id"`
	CreatedBy    string    `bson:"created_by,omitempty" json:"created_by,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

// UserActor assigns an actor to a user. (UserID, ActorID) is unique; a user may hold several actors.
type UserActor struct {
	ID        string    `bson:"_id" json:"id"`
	UserID    string    `bson:"user_id" json:"user_id"`
	ActorID   string    `bson:"actor_id" json:"actor_id"`
	CreatedBy string    `bson:"created_by,omitempty" json:"created_by,omitempty"`
	UpdatedBy string    `bson:"updated_by,omitempty" json:"updated_by,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
