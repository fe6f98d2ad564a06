package blogservice

import (
	"context"
	"database/sql"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sushihentaime/postboard/internal/common"
	"github.com/sushihentaime/postboard/internal/mediaservice"
	"github.com/sushihentaime/postboard/internal/userservice"
)

type profileDirectory interface {
	GetProfiles(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]userservice.Profile, error)
}

type cleanupScheduler interface {
	ScheduleCleanup(ctx context.Context, url string) error
}

// NewBlogService wires the content repository to the object store and the
// user directory. cleanup may be nil, in which case failed deletions are
// only logged.
func NewBlogService(db *sql.DB, dbTimeout time.Duration, media mediaservice.Gateway, users profileDirectory, cleanup cleanupScheduler, defaultCover string, logger *slog.Logger) *BlogService {
	return &BlogService{
		m:            newBlogModel(db, dbTimeout),
		media:        media,
		users:        users,
		cleanup:      cleanup,
		defaultCover: defaultCover,
		logger:       logger,
	}
}

// DefaultCover is the placeholder image of blogs without an upload.
func (s *BlogService) DefaultCover() string {
	return s.defaultCover
}

// CreateBlog stores a new blog written by p. The cover image, if any, is
// uploaded before anything is written.
func (s *BlogService) CreateBlog(ctx context.Context, p *userservice.Principal, in CreateBlogInput) (*Blog, error) {
	if p.IsAnonymous() {
		return nil, common.ErrUnauthenticated
	}

	excerpt := strings.TrimSpace(in.Excerpt)
	b := &Blog{
		Title:           in.Title,
		Content:         in.Content,
		Excerpt:         excerpt,
		ExcerptExplicit: excerpt != "",
		CoverImage:      s.defaultCover,
		Tags:            slices.Clone(in.Tags),
		Status:          in.Status,
	}

	if err := Authorize(p, b, ActionCreate); err != nil {
		return nil, err
	}

	// reject bad input before spending an upload on it
	draft := *b
	if err := draft.prepare(); err != nil {
		return nil, err
	}

	uploaded := ""
	if in.CoverImage != nil {
		url, err := s.media.Upload(ctx, in.CoverImage.Body, in.CoverImage.ContentType)
		if err != nil {
			return nil, err
		}
		uploaded = url
		b.CoverImage = url
	}

	if err := s.m.insert(ctx, b); err != nil {
		if uploaded != "" {
			s.release(ctx, uploaded)
		}
		return nil, err
	}

	s.logger.Info("blog created", slog.String("blog_id", b.ID.String()), slog.String("author_id", p.ID.String()))

	return b, nil
}

// GetBlog returns the blog with its author, likers and commenters resolved.
func (s *BlogService) GetBlog(ctx context.Context, id uuid.UUID) (*BlogDetail, error) {
	b, err := s.m.get(ctx, id)
	if err != nil {
		return nil, err
	}

	details, err := s.populate(ctx, []Blog{*b})
	if err != nil {
		return nil, err
	}

	return &details[0], nil
}

// ListPublished returns published blogs, newest first. Default limit is 10,
// capped at 100.
func (s *BlogService) ListPublished(ctx context.Context, f Filter) ([]BlogDetail, error) {
	v := common.NewValidator()
	validateFilter(v, f)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	if f.Limit < 1 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	blogs, err := s.m.listPublished(ctx, f)
	if err != nil {
		return nil, err
	}

	return s.populate(ctx, blogs)
}

// ListByAuthor returns the author's blogs in the given status. Only the
// author may list drafts; any other viewer gets the published ones.
func (s *BlogService) ListByAuthor(ctx context.Context, viewer *userservice.Principal, authorID uuid.UUID, status Status) ([]BlogDetail, error) {
	if status == "" {
		status = StatusPublished
	}

	v := common.NewValidator()
	validateStatus(v, status)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	if status == StatusDraft && (viewer.IsAnonymous() || viewer.ID != authorID) {
		status = StatusPublished
	}

	blogs, err := s.m.listByAuthor(ctx, authorID, status)
	if err != nil {
		return nil, err
	}

	return s.populate(ctx, blogs)
}

// UpdateBlog applies in to the blog if p is its author. A new cover image is
// uploaded first; the one it replaces is removed only after the update is
// stored, and never when it is the placeholder.
func (s *BlogService) UpdateBlog(ctx context.Context, p *userservice.Principal, id uuid.UUID, in UpdateBlogInput) (*Blog, error) {
	if p.IsAnonymous() {
		return nil, common.ErrUnauthenticated
	}

	current, err := s.m.get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := Authorize(p, current, ActionUpdate); err != nil {
		return nil, err
	}

	patch := BlogPatch{
		Title:    in.Title,
		Content:  in.Content,
		Excerpt:  in.Excerpt,
		Tags:     in.Tags,
		Status:   in.Status,
		AuthorID: in.AuthorID,
	}

	preview := *current
	if err := patch.apply(&preview); err != nil {
		return nil, err
	}
	if err := preview.prepare(); err != nil {
		return nil, err
	}

	uploaded := ""
	if in.CoverImage != nil {
		url, err := s.media.Upload(ctx, in.CoverImage.Body, in.CoverImage.ContentType)
		if err != nil {
			return nil, err
		}
		uploaded = url
		patch.CoverImage = &uploaded
	}

	updated, err := s.m.update(ctx, id, patch)
	if err != nil {
		if uploaded != "" {
			s.release(ctx, uploaded)
		}
		return nil, err
	}

	if uploaded != "" && current.CoverImage != uploaded {
		s.release(ctx, current.CoverImage)
	}

	return updated, nil
}

// DeleteBlog removes the blog if p is its author or an admin. The cover image
// is released first; failing to release it does not stop the delete.
func (s *BlogService) DeleteBlog(ctx context.Context, p *userservice.Principal, id uuid.UUID) error {
	if p.IsAnonymous() {
		return common.ErrUnauthenticated
	}

	b, err := s.m.get(ctx, id)
	if err != nil {
		return err
	}

	if err := Authorize(p, b, ActionDelete); err != nil {
		return err
	}

	s.release(ctx, b.CoverImage)

	if err := s.m.delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("blog deleted", slog.String("blog_id", id.String()), slog.String("by", p.ID.String()))

	return nil
}

// LikeBlog adds p to the likes of the blog. A second like by the same user
// fails with common.ErrAlreadyLiked.
func (s *BlogService) LikeBlog(ctx context.Context, p *userservice.Principal, id uuid.UUID) (*Blog, error) {
	if p.IsAnonymous() {
		return nil, common.ErrUnauthenticated
	}

	if err := Authorize(p, &Blog{ID: id}, ActionLike); err != nil {
		return nil, err
	}

	return s.m.addLike(ctx, id, p.ID)
}

// CommentBlog appends a comment by p and returns all comments of the blog.
func (s *BlogService) CommentBlog(ctx context.Context, p *userservice.Principal, id uuid.UUID, text string) ([]Comment, error) {
	if p.IsAnonymous() {
		return nil, common.ErrUnauthenticated
	}

	if err := Authorize(p, &Blog{ID: id}, ActionComment); err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)

	v := common.NewValidator()
	validateComment(v, text)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	return s.m.appendComment(ctx, id, p.ID, text)
}

// release deletes a cover image on a best-effort basis. The placeholder is
// never deleted. Failures are logged and handed to the cleanup worker.
func (s *BlogService) release(ctx context.Context, url string) {
	if url == "" || url == s.defaultCover || !s.media.Owns(url) {
		return
	}

	ctx = context.WithoutCancel(ctx)

	err := s.media.Delete(ctx, url)
	if err == nil {
		return
	}

	s.logger.Warn("could not delete cover image", slog.String("url", url), slog.String("error", err.Error()))

	if s.cleanup == nil {
		return
	}

	if err := s.cleanup.ScheduleCleanup(ctx, url); err != nil {
		s.logger.Error("could not schedule cover image cleanup", slog.String("url", url), slog.String("error", err.Error()))
	}
}

// populate resolves every user id referenced by blogs to a profile.
func (s *BlogService) populate(ctx context.Context, blogs []Blog) ([]BlogDetail, error) {
	var ids []uuid.UUID
	for _, b := range blogs {
		ids = append(ids, b.AuthorID)
		ids = append(ids, b.Likes...)
		for _, c := range b.Comments {
			ids = append(ids, c.UserID)
		}
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })
	ids = slices.Compact(ids)

	profiles, err := s.users.GetProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	profile := func(id uuid.UUID) userservice.Profile {
		if p, ok := profiles[id]; ok {
			return p
		}
		return userservice.Profile{ID: id}
	}

	details := make([]BlogDetail, 0, len(blogs))
	for _, b := range blogs {
		d := BlogDetail{
			Blog:     b,
			Author:   profile(b.AuthorID),
			Likes:    make([]userservice.Profile, 0, len(b.Likes)),
			Comments: make([]CommentDetail, 0, len(b.Comments)),
		}
		for _, id := range b.Likes {
			d.Likes = append(d.Likes, profile(id))
		}
		for _, c := range b.Comments {
			d.Comments = append(d.Comments, CommentDetail{ID: c.ID, User: profile(c.UserID), Text: c.Text, CreatedAt: c.CreatedAt})
		}
		details = append(details, d)
	}

	return details, nil
}
