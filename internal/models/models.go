package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AffiliateOwned is implemented by every record filtered by affiliate.
type AffiliateOwned interface {
	GetAffiliateID() string
	SetAffiliateID(id string)
}

// Authored is implemented by records that track their author for *_own permissions.
type Authored interface {
	GetAuthorID() string
	SetAuthorID(id string)
}

// Publishable is implemented by records whose status changes need publish permissions.
type Publishable interface {
	GetStatus() ContentStatus
}

// Content holds the columns shared by stories, pages, modules and categories.
type Content struct {
	AuthorID    string         `gorm:"type:uuid;index" json:"authorId"`
	AffiliateID string         `gorm:"type:uuid;index" json:"affiliateId"`
	Status      ContentStatus  `gorm:"not null;default:'draft'" json:"status" validate:"omitempty,content_status"`
	Body        datatypes.JSON `gorm:"type:jsonb" json:"content,omitempty"`
}

func (c Content) GetAuthorID() string       { return c.AuthorID }
func (c *Content) SetAuthorID(id string)    { c.AuthorID = id }
func (c Content) GetAffiliateID() string    { return c.AffiliateID }
func (c *Content) SetAffiliateID(id string) { c.AffiliateID = id }
func (c Content) IsPublished() bool         { return c.Status == ContentStatusPublished }
func (c Content) GetStatus() ContentStatus  { return c.Status }

type Story struct {
	Base
	Content
	Title       string     `gorm:"not null" json:"title" validate:"required,min=2"`
	Slug        string     `gorm:"index" json:"slug"`
	Summary     string     `json:"summary"`
	CategoryID  *string    `gorm:"type:uuid" json:"categoryId,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

type Page struct {
	Base
	Content
	Title string `gorm:"not null" json:"title" validate:"required,min=2"`
	Slug  string `gorm:"index" json:"slug"`
}

type Module struct {
	Base
	Content
	Name string `gorm:"not null" json:"name" validate:"required,min=2"`
	Kind string `json:"kind"`
}

type Category struct {
	Base
	Content
	Name     string  `gorm:"not null" json:"name" validate:"required,min=2"`
	Slug     string  `gorm:"index" json:"slug"`
	ParentID *string `gorm:"type:uuid" json:"parentId,omitempty"`
}

// Menu stores its item tree as a JSON document in Links.
type Menu struct {
	Base
	Title       string         `gorm:"not null" json:"title" validate:"required,min=2"`
	Platform    Platform       `gorm:"not null;default:'Web'" json:"platform" validate:"omitempty,menu_platform"`
	Status      ContentStatus  `gorm:"not null;default:'draft'" json:"status" validate:"omitempty,content_status"`
	AffiliateID string         `gorm:"type:uuid;index" json:"affiliateId"`
	Links       datatypes.JSON `gorm:"type:jsonb" json:"links"`
	TotalItems  int            `gorm:"-" json:"totalItems"`
}

func (m Menu) GetAffiliateID() string    { return m.AffiliateID }
func (m *Menu) SetAffiliateID(id string) { m.AffiliateID = id }

type File struct {
	Base
	AffiliateID string `gorm:"type:uuid;index" json:"affiliateId" validate:"omitempty,uuid"`
	Path        string `gorm:"not null" json:"path" validate:"required"`
	UserID      string `gorm:"type:uuid;default:NULL" json:"userId" validate:"omitempty,uuid"`
	User        *User  `json:"user,omitempty"`
	Name        string `gorm:"not null" json:"name" validate:"required"`
	Size        int64  `gorm:"not null" json:"size" validate:"required,min=1"`
	Type        string `gorm:"not null" json:"type" validate:"required"`
	SignedURL   string `gorm:"-" json:"signedUrl,omitempty"` // Virtual field
}

func (f File) GetAffiliateID() string    { return f.AffiliateID }
func (f *File) SetAffiliateID(id string) { f.AffiliateID = id }

// AfterFind attaches a signed URL. A signing failure leaves SignedURL empty so one bad
// object does not fail a whole listing.
func (f *File) AfterFind(tx *gorm.DB) error {
	url, err := signFileURL(tx.Statement.Context, f.Path)
	if err != nil {
		log.Warn("Failed to sign file %s: %v", f.ID, err)
		return nil
	}
	f.SignedURL = url
	return nil
}
