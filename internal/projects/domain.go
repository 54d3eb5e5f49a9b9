// Package projects manages the site projects owned by a principal, including
// duplication under a collision-free alias.
package projects

import (
	"regexp"
	"time"

	"github.com/kis-labs/webbuilder/internal/shared"
)

var aliasFormat = regexp.MustCompile(`^[a-z0-9-_]+$`)

// Project is a site owned by one principal.
type Project struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"ownerId"`
	Name        string    `json:"name"`
	Alias       string    `json:"alias"`
	Description string    `json:"description"`
	Thumbnail   string    `json:"thumbnail"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateInput is the payload for a new project.
type CreateInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Alias       string `json:"alias" validate:"omitempty,max=120"`
	Description string `json:"description" validate:"max=2000"`
	Thumbnail   string `json:"thumbnail" validate:"max=2048"`
}

// SortField is a whitelisted listing order.
type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortUpdatedAt SortField = "updatedAt"
	SortName      SortField = "name"
)

var sortColumns = map[SortField]string{
	SortCreatedAt: "created_at",
	SortUpdatedAt: "updated_at",
	SortName:      "name",
}

// ListQuery filters an owner's projects.
type ListQuery struct {
	Page   shared.PageRequest
	Name   string
	SortBy SortField
}

// Page is one page of projects.
type Page struct {
	Projects   []Project `json:"projects"`
	TotalPages int       `json:"totalPages"`
	Count      int       `json:"count"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
}
