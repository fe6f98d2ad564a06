package blogservice

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sushihentaime/postboard/internal/common"
)

func validBlog() Blog {
	return Blog{
		Title:      "  Shipping Go  ",
		Content:    words(20),
		CoverImage: "https://images.example.com/placeholder.jpg",
		AuthorID:   uuid.New(),
	}
}

func TestPrepare(t *testing.T) {
	testCases := []struct {
		name        string
		modify      func(b *Blog)
		expectedErr map[string]string
	}{
		{name: "valid", modify: func(*Blog) {}},
		{name: "title of 120 characters", modify: func(b *Blog) { b.Title = strings.Repeat("t", 120) }},
		{
			name:        "title of 121 characters",
			modify:      func(b *Blog) { b.Title = strings.Repeat("t", 121) },
			expectedErr: map[string]string{"title": "must not be more than 120 characters long"},
		},
		{
			name:        "content shrinks below minimum after sanitizing",
			modify:      func(b *Blog) { b.Content = "<script>" + strings.Repeat("x", 60) + "</script>short" },
			expectedErr: map[string]string{"content": "must be at least 50 characters long"},
		},
		{
			name:        "unknown status",
			modify:      func(b *Blog) { b.Status = "archived" },
			expectedErr: map[string]string{"status": "must be either draft or published"},
		},
		{
			name:        "empty cover image",
			modify:      func(b *Blog) { b.CoverImage = "" },
			expectedErr: map[string]string{"coverImage": "must be provided"},
		},
		{
			name: "explicit excerpt of 201 characters",
			modify: func(b *Blog) {
				b.Excerpt = strings.Repeat("e", 201)
				b.ExcerptExplicit = true
			},
			expectedErr: map[string]string{"excerpt": "must not be more than 200 characters long"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := validBlog()
			tc.modify(&b)

			err := b.prepare()
			if tc.expectedErr == nil {
				require.NoError(t, err)
				assert.Equal(t, strings.TrimSpace(b.Title), b.Title)
				assert.Equal(t, StatusDraft, b.Status)
				assert.Equal(t, 1, b.ReadTime)
				return
			}
			assert.Equal(t, common.ValidationError{Errors: tc.expectedErr}, err)
		})
	}
}

func TestPrepare_NormalizesTags(t *testing.T) {
	b := validBlog()
	b.Tags = []Tag{"React", "webdev", " react ", "", "webdev"}

	require.NoError(t, b.prepare())
	assert.Equal(t, []Tag{TagReact, TagWebdev}, b.Tags)
}

func TestPatchApply(t *testing.T) {
	base := validBlog()
	require.NoError(t, base.prepare())

	t.Run("nil fields are left unchanged", func(t *testing.T) {
		b := base
		require.NoError(t, BlogPatch{}.apply(&b))
		assert.Equal(t, base, b)
	})

	t.Run("author cannot change", func(t *testing.T) {
		b := base
		other := uuid.New()
		assert.ErrorIs(t, BlogPatch{AuthorID: &other}.apply(&b), ErrAuthorImmutable)

		same := base.AuthorID
		assert.NoError(t, BlogPatch{AuthorID: &same}.apply(&b))
	})

	t.Run("new content re-derives an explicit excerpt", func(t *testing.T) {
		b := base
		b.Excerpt = "hand written"
		b.ExcerptExplicit = true

		content := words(300)
		require.NoError(t, BlogPatch{Content: &content}.apply(&b))
		require.NoError(t, b.prepare())

		assert.Equal(t, deriveExcerpt(content), b.Excerpt)
		assert.False(t, b.ExcerptExplicit)
		assert.Equal(t, 2, b.ReadTime)
	})

	t.Run("new content with a new excerpt keeps the excerpt", func(t *testing.T) {
		b := base
		content := words(300)
		excerpt := "fresh summary"
		require.NoError(t, BlogPatch{Content: &content, Excerpt: &excerpt}.apply(&b))
		require.NoError(t, b.prepare())

		assert.Equal(t, "fresh summary", b.Excerpt)
		assert.True(t, b.ExcerptExplicit)
	})

	t.Run("clearing the excerpt derives it again", func(t *testing.T) {
		b := base
		b.Excerpt = "hand written"
		b.ExcerptExplicit = true

		empty := ""
		require.NoError(t, BlogPatch{Excerpt: &empty}.apply(&b))
		require.NoError(t, b.prepare())
		assert.Equal(t, deriveExcerpt(b.Content), b.Excerpt)
	})

	t.Run("tags are copied", func(t *testing.T) {
		b := base
		tags := []Tag{TagNodejs}
		require.NoError(t, BlogPatch{Tags: &tags}.apply(&b))
		tags[0] = TagMongodb
		assert.Equal(t, []Tag{TagNodejs}, b.Tags)
	})
}
