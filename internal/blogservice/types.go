package blogservice

import (
	"database/sql"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sushihentaime/postboard/internal/mediaservice"
	"github.com/sushihentaime/postboard/internal/userservice"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Tag is one entry of the fixed tag vocabulary.
type Tag string

const (
	TagTechnology  Tag = "technology"
	TagProgramming Tag = "programming"
	TagWebdev      Tag = "webdev"
	TagReact       Tag = "react"
	TagNodejs      Tag = "nodejs"
	TagMongodb     Tag = "mongodb"
)

var Tags = []Tag{TagTechnology, TagProgramming, TagWebdev, TagReact, TagNodejs, TagMongodb}

const (
	maxTitleLength   = 120
	minContentLength = 50
	maxExcerptLength = 200
	maxCommentLength = 500
	wordsPerMinute   = 200
	excerptEllipsis  = "..."

	DefaultListLimit = 10
	MaxListLimit     = 100
)

type Blog struct {
	ID      uuid.UUID `json:"id"`
	Title   string    `json:"title"`
	Content string    `json:"content"`
	Excerpt string    `json:"excerpt"`
	// ExcerptExplicit is set when the author wrote the excerpt instead of
	// having it derived from the content.
	ExcerptExplicit bool        `json:"-"`
	CoverImage      string      `json:"coverImage"`
	Tags            []Tag       `json:"tags"`
	AuthorID        uuid.UUID   `json:"author"`
	Status          Status      `json:"status"`
	ReadTime        int         `json:"readTime"`
	Likes           []uuid.UUID `json:"likes"`
	Comments        []Comment   `json:"comments"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
	Version         int         `json:"version"`
}

type Comment struct {
	ID        uuid.UUID `json:"id"`
	BlogID    uuid.UUID `json:"-"`
	UserID    uuid.UUID `json:"user"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// BlogDetail is a Blog with the author, likers and commenters resolved to
// profiles. The populated fields replace the bare ids in the JSON output.
type BlogDetail struct {
	Blog
	Author   userservice.Profile   `json:"author"`
	Likes    []userservice.Profile `json:"likes"`
	Comments []CommentDetail       `json:"comments"`
}

type CommentDetail struct {
	ID        uuid.UUID           `json:"id"`
	User      userservice.Profile `json:"user"`
	Text      string              `json:"text"`
	CreatedAt time.Time           `json:"createdAt"`
}

// BlogPatch holds the fields of an update. Nil fields are left unchanged.
type BlogPatch struct {
	Title      *string
	Content    *string
	Excerpt    *string
	CoverImage *string
	Tags       *[]Tag
	Status     *Status
	AuthorID   *uuid.UUID
}

// Upload is an image attached to a create or update request.
type Upload struct {
	Body        io.Reader
	ContentType string
}

type CreateBlogInput struct {
	Title      string
	Content    string
	Excerpt    string
	Tags       []Tag
	Status     Status
	CoverImage *Upload
}

type UpdateBlogInput struct {
	Title      *string
	Content    *string
	Excerpt    *string
	Tags       *[]Tag
	Status     *Status
	AuthorID   *uuid.UUID
	CoverImage *Upload
}

type Filter struct {
	Tag      Tag
	AuthorID uuid.UUID
	Limit    int
	Offset   int
}

type BlogModel struct {
	db      *sql.DB
	timeout time.Duration
}

type BlogService struct {
	m            store
	media        mediaservice.Gateway
	users        profileDirectory
	cleanup      cleanupScheduler
	defaultCover string
	logger       *slog.Logger
}
