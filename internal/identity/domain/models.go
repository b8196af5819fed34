// Package domain contains the verified identity model trusted by the core.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Role is the platform-wide role attached to a user account.
type Role string

const (
	RoleUser          Role = "user"
	RoleArtist        Role = "artist"
	RoleArtistPending Role = "artist-pending"
	RoleAdmin         Role = "admin"
)

// User is the account record behind a verified identity.
type User struct {
	ID           snowflake.ID  `gorm:"primaryKey"`
	Name         string        `gorm:"type:text;not null"`
	Email        string        `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash string        `gorm:"type:text"`
	Role         Role          `gorm:"type:text;not null;default:user"`
	RoleVersion  int           `gorm:"not null;default:1"`
	ArtistID     *snowflake.ID `gorm:""`
	CreatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// Identity is the per-request verified identity supplied by the auth layer.
type Identity struct {
	UserID      snowflake.ID
	Role        Role
	ArtistID    *snowflake.ID
	RoleVersion int
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// OwnsArtist reports whether the identity is the artist with the given id.
func (i Identity) OwnsArtist(artistID snowflake.ID) bool {
	return i.Role == RoleArtist && i.ArtistID != nil && *i.ArtistID == artistID
}

var (
	ErrUserNotFound = errors.New("user_not_found")
	ErrInvalidRole  = errors.New("invalid_role")
)
