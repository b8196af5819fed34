// Package domain contains persistence models for the music catalog.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AccessType is the per-item monetization policy.
type AccessType string

const (
	AccessTypeFree         AccessType = "free"
	AccessTypeSubscription AccessType = "subscription"
	AccessTypePurchaseOnly AccessType = "purchase-only"
)

// ValidAccessType reports whether v is one of the enumerated policies.
func ValidAccessType(v AccessType) bool {
	switch v {
	case AccessTypeFree, AccessTypeSubscription, AccessTypePurchaseOnly:
		return true
	default:
		return false
	}
}

// SongStatus tracks the upload/processing pipeline.
type SongStatus string

const (
	SongStatusDraft      SongStatus = "draft"
	SongStatusUploading  SongStatus = "uploading"
	SongStatusUploaded   SongStatus = "uploaded"
	SongStatusProcessing SongStatus = "processing"
	SongStatusReady      SongStatus = "ready"
	SongStatusFailed     SongStatus = "failed"
)

// Price is a base price in minor units.
type Price struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Artist is a monetizable catalog owner.
type Artist struct {
	ID                snowflake.ID `gorm:"primaryKey"`
	Name              string       `gorm:"type:text;not null"`
	Slug              string       `gorm:"type:text;not null;uniqueIndex"`
	Bio               string       `gorm:"type:text"`
	ProfileImageKey   string       `gorm:"type:text"`
	PayoutDestination string       `gorm:"type:text"`
	IsDeleted         bool         `gorm:"not null;default:false"`
	DeletedAt         *time.Time   `gorm:""`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Artist) TableName() string { return "artists" }

// Album groups songs under one access policy and price.
type Album struct {
	ID                snowflake.ID   `gorm:"primaryKey"`
	Title             string         `gorm:"type:text;not null"`
	Slug              string         `gorm:"type:text;not null;uniqueIndex"`
	ArtistID          snowflake.ID   `gorm:"not null;index"`
	Description       string         `gorm:"type:text"`
	Genre             string         `gorm:"type:text"`
	AccessType        AccessType     `gorm:"type:text;not null;default:subscription"`
	BasePriceAmount   *int64         `gorm:""`
	BasePriceCurrency *string        `gorm:"type:text"`
	ConvertedPrices   datatypes.JSON `gorm:"type:jsonb"`
	CoverImageKey     string         `gorm:"type:text"`
	ReleaseDate       *time.Time     `gorm:""`
	IsDeleted         bool           `gorm:"not null;default:false"`
	DeletedAt         *time.Time     `gorm:""`
	CreatedAt         time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Album) TableName() string { return "albums" }

// BasePrice returns the album price, if any.
func (a Album) BasePrice() *Price {
	if a.BasePriceAmount == nil || a.BasePriceCurrency == nil {
		return nil
	}
	return &Price{Amount: *a.BasePriceAmount, Currency: *a.BasePriceCurrency}
}

// Song is a streamable catalog item. Audio lives in object storage; only
// the key is stored here.
type Song struct {
	ID                snowflake.ID   `gorm:"primaryKey"`
	Title             string         `gorm:"type:text;not null"`
	Slug              string         `gorm:"type:text;not null;uniqueIndex"`
	ArtistID          snowflake.ID   `gorm:"not null;index"`
	AlbumID           *snowflake.ID  `gorm:"index"`
	Genre             string         `gorm:"type:text"`
	ISRC              *string        `gorm:"type:text"`
	DurationSeconds   int            `gorm:"not null;default:0"`
	AudioKey          string         `gorm:"type:text"`
	CoverImageKey     string         `gorm:"type:text"`
	AccessType        AccessType     `gorm:"type:text;not null;default:subscription"`
	AlbumOnly         bool           `gorm:"not null;default:false"`
	BasePriceAmount   *int64         `gorm:""`
	BasePriceCurrency *string        `gorm:"type:text"`
	ConvertedPrices   datatypes.JSON `gorm:"type:jsonb"`
	Status            SongStatus     `gorm:"type:text;not null;default:draft"`
	ReleaseDate       *time.Time     `gorm:""`
	IsDeleted         bool           `gorm:"not null;default:false"`
	DeletedAt         *time.Time     `gorm:""`
	CreatedAt         time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Song) TableName() string { return "songs" }

// BasePrice returns the song price, if any.
func (s Song) BasePrice() *Price {
	if s.BasePriceAmount == nil || s.BasePriceCurrency == nil {
		return nil
	}
	return &Price{Amount: *s.BasePriceAmount, Currency: *s.BasePriceCurrency}
}
