package blogservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/sushihentaime/postboard/internal/common"
	"github.com/sushihentaime/postboard/internal/userservice"
)

// store is the Content Repository as seen by the service.
type store interface {
	insert(ctx context.Context, b *Blog) error
	get(ctx context.Context, id uuid.UUID) (*Blog, error)
	listPublished(ctx context.Context, f Filter) ([]Blog, error)
	listByAuthor(ctx context.Context, authorID uuid.UUID, status Status) ([]Blog, error)
	update(ctx context.Context, id uuid.UUID, patch BlogPatch) (*Blog, error)
	delete(ctx context.Context, id uuid.UUID) error
	addLike(ctx context.Context, id, userID uuid.UUID) (*Blog, error)
	appendComment(ctx context.Context, id, userID uuid.UUID, text string) ([]Comment, error)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

const blogColumns = `id, title, content, excerpt, excerpt_explicit, cover_image, tags, author_id, status, read_time, created_at, updated_at, version`

func newBlogModel(db *sql.DB, timeout time.Duration) *BlogModel {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &BlogModel{db: db, timeout: timeout}
}

func (m *BlogModel) insert(ctx context.Context, b *Blog) error {
	if err := b.prepare(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	query := `
		INSERT INTO blogs (title, content, excerpt, excerpt_explicit, cover_image, tags, author_id, status, read_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at, version`

	args := []any{
		b.Title,
		b.Content,
		b.Excerpt,
		b.ExcerptExplicit,
		b.CoverImage,
		pq.Array(tagStrings(b.Tags)),
		b.AuthorID,
		b.Status,
		b.ReadTime,
	}

	err := m.db.QueryRowContext(ctx, query, args...).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt, &b.Version)
	if err != nil {
		switch {
		case common.ForeignKeyError(err, "blogs_author_id_fkey"):
			return userservice.ErrPrincipalNotFound
		default:
			return common.StoreError(err)
		}
	}

	b.Likes = []uuid.UUID{}
	b.Comments = []Comment{}

	return nil
}

func (m *BlogModel) get(ctx context.Context, id uuid.UUID) (*Blog, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	query := `SELECT ` + blogColumns + ` FROM blogs WHERE id = $1`

	b, err := scanBlog(m.db.QueryRowContext(ctx, query, id))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, common.ErrRecordNotFound
		default:
			return nil, common.StoreError(err)
		}
	}

	blogs := []Blog{*b}
	if err := loadRelations(ctx, m.db, blogs); err != nil {
		return nil, common.StoreError(err)
	}

	return &blogs[0], nil
}

// listPublished returns published blogs, newest first, optionally narrowed by tag and author.
func (m *BlogModel) listPublished(ctx context.Context, f Filter) ([]Blog, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var author any
	if f.AuthorID != uuid.Nil {
		author = f.AuthorID
	}

	query := `
		SELECT ` + blogColumns + `
		FROM blogs
		WHERE status = 'published'
		AND ($1::text = '' OR $1::text = ANY(tags))
		AND ($2::uuid IS NULL OR author_id = $2::uuid)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4`

	return m.list(ctx, query, string(f.Tag), author, f.Limit, f.Offset)
}

// listByAuthor returns the author's blogs in the given status, newest first.
func (m *BlogModel) listByAuthor(ctx context.Context, authorID uuid.UUID, status Status) ([]Blog, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	query := `
		SELECT ` + blogColumns + `
		FROM blogs
		WHERE author_id = $1 AND status = $2
		ORDER BY created_at DESC, id`

	return m.list(ctx, query, authorID, status)
}

func (m *BlogModel) list(ctx context.Context, query string, args ...any) ([]Blog, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, common.StoreError(err)
	}
	defer rows.Close()

	blogs := []Blog{}
	for rows.Next() {
		b, err := scanBlog(rows)
		if err != nil {
			return nil, common.StoreError(err)
		}
		blogs = append(blogs, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, common.StoreError(err)
	}

	if err := loadRelations(ctx, m.db, blogs); err != nil {
		return nil, common.StoreError(err)
	}

	return blogs, nil
}

// update applies patch under a row lock, so the derived fields are always
// computed from the content that is actually written. Concurrent updates are
// serialized and the last one wins.
func (m *BlogModel) update(ctx context.Context, id uuid.UUID, patch BlogPatch) (*Blog, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, common.StoreError(err)
	}
	defer tx.Rollback()

	query := `SELECT ` + blogColumns + ` FROM blogs WHERE id = $1 FOR UPDATE`

	b, err := scanBlog(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, common.ErrRecordNotFound
		default:
			return nil, common.StoreError(err)
		}
	}

	if err := patch.apply(b); err != nil {
		return nil, err
	}
	if err := b.prepare(); err != nil {
		return nil, err
	}

	query = `
		UPDATE blogs
		SET title = $1, content = $2, excerpt = $3, excerpt_explicit = $4, cover_image = $5,
			tags = $6, status = $7, read_time = $8, updated_at = now(), version = version + 1
		WHERE id = $9
		RETURNING updated_at, version`

	args := []any{
		b.Title,
		b.Content,
		b.Excerpt,
		b.ExcerptExplicit,
		b.CoverImage,
		pq.Array(tagStrings(b.Tags)),
		b.Status,
		b.ReadTime,
		b.ID,
	}

	err = tx.QueryRowContext(ctx, query, args...).Scan(&b.UpdatedAt, &b.Version)
	if err != nil {
		return nil, common.StoreError(err)
	}

	blogs := []Blog{*b}
	if err := loadRelations(ctx, tx, blogs); err != nil {
		return nil, common.StoreError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, common.StoreError(err)
	}

	return &blogs[0], nil
}

func (m *BlogModel) delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	query := `
		DELETE FROM blogs
		WHERE id = $1`

	res, err := m.db.ExecContext(ctx, query, id)
	if err != nil {
		return common.StoreError(err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if rows != 1 {
		switch {
		case rows == 0:
			return common.ErrRecordNotFound
		default:
			return fmt.Errorf("expected 1 row to be affected, got %d", rows)
		}
	}

	return nil
}

// addLike records a like by userID. The primary key on (blog_id, user_id)
// makes the check and the insert a single atomic statement.
func (m *BlogModel) addLike(ctx context.Context, id, userID uuid.UUID) (*Blog, error) {
	insertCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	query := `
		INSERT INTO blog_likes (blog_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	res, err := m.db.ExecContext(insertCtx, query, id, userID)
	if err != nil {
		switch {
		case common.ForeignKeyError(err, "blog_likes_blog_id_fkey"):
			return nil, common.ErrRecordNotFound
		case common.ForeignKeyError(err, "blog_likes_user_id_fkey"):
			return nil, userservice.ErrPrincipalNotFound
		default:
			return nil, common.StoreError(err)
		}
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, common.ErrAlreadyLiked
	}

	return m.get(ctx, id)
}

// appendComment adds a comment and returns every comment of the blog, oldest first.
func (m *BlogModel) appendComment(ctx context.Context, id, userID uuid.UUID, text string) ([]Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	query := `
		INSERT INTO blog_comments (blog_id, user_id, text)
		VALUES ($1, $2, $3)`

	_, err := m.db.ExecContext(ctx, query, id, userID, text)
	if err != nil {
		switch {
		case common.ForeignKeyError(err, "blog_comments_blog_id_fkey"):
			return nil, common.ErrRecordNotFound
		case common.ForeignKeyError(err, "blog_comments_user_id_fkey"):
			return nil, userservice.ErrPrincipalNotFound
		case common.CheckError(err, "blog_comments_text_check"):
			return nil, common.ValidationError{Errors: map[string]string{"text": "must be between 1 and 500 characters long"}}
		default:
			return nil, common.StoreError(err)
		}
	}

	comments, err := loadComments(ctx, m.db, []uuid.UUID{id})
	if err != nil {
		return nil, common.StoreError(err)
	}

	return comments[id], nil
}

func scanBlog(row rowScanner) (*Blog, error) {
	var b Blog
	var tags pq.StringArray

	err := row.Scan(&b.ID, &b.Title, &b.Content, &b.Excerpt, &b.ExcerptExplicit, &b.CoverImage, &tags, &b.AuthorID, &b.Status, &b.ReadTime, &b.CreatedAt, &b.UpdatedAt, &b.Version)
	if err != nil {
		return nil, err
	}

	b.Tags = make([]Tag, 0, len(tags))
	for _, t := range tags {
		b.Tags = append(b.Tags, Tag(t))
	}

	return &b, nil
}

// loadRelations fills in the likes and comments of every blog.
func loadRelations(ctx context.Context, q queryer, blogs []Blog) error {
	if len(blogs) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, 0, len(blogs))
	for _, b := range blogs {
		ids = append(ids, b.ID)
	}

	likes, err := loadLikes(ctx, q, ids)
	if err != nil {
		return err
	}

	comments, err := loadComments(ctx, q, ids)
	if err != nil {
		return err
	}

	for i := range blogs {
		blogs[i].Likes = likes[blogs[i].ID]
		if blogs[i].Likes == nil {
			blogs[i].Likes = []uuid.UUID{}
		}
		blogs[i].Comments = comments[blogs[i].ID]
		if blogs[i].Comments == nil {
			blogs[i].Comments = []Comment{}
		}
	}

	return nil
}

func loadLikes(ctx context.Context, q queryer, ids []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	query := `
		SELECT blog_id, user_id
		FROM blog_likes
		WHERE blog_id = ANY($1::uuid[])
		ORDER BY created_at, user_id`

	rows, err := q.QueryContext(ctx, query, pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	likes := make(map[uuid.UUID][]uuid.UUID, len(ids))
	for rows.Next() {
		var blogID, userID uuid.UUID
		if err := rows.Scan(&blogID, &userID); err != nil {
			return nil, err
		}
		likes[blogID] = append(likes[blogID], userID)
	}

	return likes, rows.Err()
}

func loadComments(ctx context.Context, q queryer, ids []uuid.UUID) (map[uuid.UUID][]Comment, error) {
	query := `
		SELECT id, blog_id, user_id, text, created_at
		FROM blog_comments
		WHERE blog_id = ANY($1::uuid[])
		ORDER BY created_at, id`

	rows, err := q.QueryContext(ctx, query, pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make(map[uuid.UUID][]Comment, len(ids))
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.BlogID, &c.UserID, &c.Text, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments[c.BlogID] = append(comments[c.BlogID], c)
	}

	return comments, rows.Err()
}

func tagStrings(tags []Tag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, string(t))
	}
	return out
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
