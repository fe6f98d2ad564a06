package main

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sushihentaime/postboard/internal/blogservice"
)

func TestHealthCheckHandler(t *testing.T) {
	app := newBareApplication()
	ts := newTestServer(t, app.recoverPanic(http.HandlerFunc(app.healthCheckHandler)))

	res := ts.get(t, "/", "")
	assert.Equal(t, http.StatusOK, res.status)
	env := res.envelope(t)
	assert.Equal(t, "available", env["status"])
	assert.Equal(t, "memory", env["media_storage"])
}

func TestRegisterAndLoginHandlers(t *testing.T) {
	app, _, _ := newTestApplication(t)
	ts := newTestServer(t, app.routes())

	_, id := ts.registerUser(t, "Ada Lovelace", "ada@example.com")

	tests := []struct {
		name           string
		path           string
		payload        map[string]string
		expectedStatus int
		expectedKind   string
	}{
		{
			name:           "Duplicate Email",
			path:           "/auth/register",
			payload:        map[string]string{"name": "Ada", "email": "ada@example.com", "password": "Test_1234!"},
			expectedStatus: http.StatusBadRequest,
			expectedKind:   kindValidation,
		},
		{
			name:           "Weak Password",
			path:           "/auth/register",
			payload:        map[string]string{"name": "Bob", "email": "bob@example.com", "password": "password"},
			expectedStatus: http.StatusBadRequest,
			expectedKind:   kindValidation,
		},
		{
			name:           "Wrong Password",
			path:           "/auth/login",
			payload:        map[string]string{"email": "ada@example.com", "password": "Wrong_1234!"},
			expectedStatus: http.StatusUnauthorized,
			expectedKind:   kindUnauthenticated,
		},
		{
			name:           "Unknown Email",
			path:           "/auth/login",
			payload:        map[string]string{"email": "nobody@example.com", "password": "Test_1234!"},
			expectedStatus: http.StatusUnauthorized,
			expectedKind:   kindUnauthenticated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ts.sendJSON(t, http.MethodPost, tt.path, "", tt.payload)
			assert.Equal(t, tt.expectedStatus, res.status)
			assert.Equal(t, tt.expectedKind, res.envelope(t)["kind"])
		})
	}

	t.Run("Login", func(t *testing.T) {
		res := ts.sendJSON(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ada@example.com", "password": "Test_1234!"})
		require.Equal(t, http.StatusOK, res.status)

		env := res.envelope(t)
		assert.Equal(t, id.String(), env["id"])
		assert.NotEmpty(t, env["token"])
	})
}

func TestCreateBlogHandler(t *testing.T) {
	app, _, gateway := newTestApplication(t)
	ts := newTestServer(t, app.routes())

	token, id := ts.registerUser(t, "Alice", "alice@example.com")

	t.Run("Unauthenticated", func(t *testing.T) {
		res := ts.sendJSON(t, http.MethodPost, "/blogs", "", validBlog("Hello", blogservice.StatusPublished))
		assert.Equal(t, http.StatusUnauthorized, res.status)
		assert.Equal(t, "Bearer", res.header.Get("WWW-Authenticate"))
	})

	t.Run("Content Too Short", func(t *testing.T) {
		payload := validBlog("Hello", blogservice.StatusPublished)
		payload["content"] = strings.Repeat("a", 49)

		res := ts.sendJSON(t, http.MethodPost, "/blogs", token, payload)
		require.Equal(t, http.StatusBadRequest, res.status)

		env := res.envelope(t)
		assert.Equal(t, kindValidation, env["kind"])
		assert.Contains(t, env["error"], "content")
	})

	t.Run("JSON Without Image", func(t *testing.T) {
		payload := validBlog("Hello", blogservice.StatusPublished)
		payload["content"] = strings.Repeat("a", 50)
		payload["coverImage"] = "https://elsewhere.example.com/x.png"

		res := ts.sendJSON(t, http.MethodPost, "/blogs", token, payload)
		require.Equal(t, http.StatusCreated, res.status, string(res.body))

		var body struct {
			Blog    blogservice.Blog `json:"blog"`
			Message string           `json:"message"`
		}
		res.decode(t, &body)

		assert.Equal(t, "Blog created successfully by Alice", body.Message)
		assert.Equal(t, id, body.Blog.AuthorID)
		assert.Equal(t, testDefaultCover, body.Blog.CoverImage)
		assert.Equal(t, 1, body.Blog.ReadTime)
		assert.Equal(t, []blogservice.Tag{blogservice.TagProgramming}, body.Blog.Tags)
	})

	t.Run("Multipart With Image", func(t *testing.T) {
		fields := map[string]string{
			"title":   "With a cover",
			"content": strings.Repeat("word ", 600),
			"status":  "published",
		}

		res := ts.sendMultipart(t, http.MethodPost, "/blogs", token, fields, []string{"Technology", "webdev", "technology"}, testPNG)
		require.Equal(t, http.StatusCreated, res.status, string(res.body))

		var body struct {
			Blog blogservice.Blog `json:"blog"`
		}
		res.decode(t, &body)

		assert.True(t, strings.HasPrefix(body.Blog.CoverImage, testMediaURL), body.Blog.CoverImage)
		assert.True(t, gateway.Has(body.Blog.CoverImage))
		assert.Equal(t, 3, body.Blog.ReadTime)
		assert.Equal(t, []blogservice.Tag{blogservice.TagTechnology, blogservice.TagWebdev}, body.Blog.Tags)
		assert.True(t, strings.HasSuffix(body.Blog.Excerpt, "..."))
	})

	t.Run("Cover Is Not An Image", func(t *testing.T) {
		before := gateway.Len()

		fields := map[string]string{"title": "Text cover", "content": strings.Repeat("a", 60)}
		res := ts.sendMultipart(t, http.MethodPost, "/blogs", token, fields, nil, []byte("just some text"))
		require.Equal(t, http.StatusBadRequest, res.status)

		assert.Contains(t, res.envelope(t)["error"], "coverImage")
		assert.Equal(t, before, gateway.Len())
	})

	t.Run("Unknown Tag", func(t *testing.T) {
		payload := validBlog("Hello", blogservice.StatusPublished)
		payload["tags"] = "golang"

		res := ts.sendJSON(t, http.MethodPost, "/blogs", token, payload)
		require.Equal(t, http.StatusBadRequest, res.status)
		assert.Contains(t, res.envelope(t)["error"], "tags")
	})
}

func TestGetBlogHandler(t *testing.T) {
	app, _, _ := newTestApplication(t)
	ts := newTestServer(t, app.routes())

	token, id := ts.registerUser(t, "Alice", "alice@example.com")
	blog := ts.createBlog(t, token, validBlog("Populated", blogservice.StatusPublished))

	tests := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{name: "Existing", path: "/blogs/" + blog.ID.String(), expectedStatus: http.StatusOK},
		{name: "Missing", path: "/blogs/" + uuid.NewString(), expectedStatus: http.StatusNotFound},
		{name: "Malformed ID", path: "/blogs/not-an-id", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ts.get(t, tt.path, "")
			require.Equal(t, tt.expectedStatus, res.status)

			if tt.expectedStatus != http.StatusOK {
				assert.Equal(t, kindNotFound, res.envelope(t)["kind"])
				return
			}

			var detail blogservice.BlogDetail
			res.decode(t, &detail)
			assert.Equal(t, blog.ID, detail.ID)
			assert.Equal(t, id, detail.Author.ID)
			assert.Equal(t, "Alice", detail.Author.Name)
			assert.Empty(t, detail.Likes)
			assert.Empty(t, detail.Comments)
		})
	}
}

func TestListBlogsHandler(t *testing.T) {
	app, _, _ := newTestApplication(t)
	ts := newTestServer(t, app.routes())

	token, id := ts.registerUser(t, "Alice", "alice@example.com")

	ts.createBlog(t, token, validBlog("Draft", blogservice.StatusDraft))
	first := ts.createBlog(t, token, validBlog("First", blogservice.StatusPublished))
	tagged := validBlog("Tagged", blogservice.StatusPublished)
	tagged["tags"] = []string{"react"}
	second := ts.createBlog(t, token, tagged)

	tests := []struct {
		name          string
		query         string
		expectedIDs   []uuid.UUID
		expectedError bool
	}{
		{name: "Published Only Newest First", query: "", expectedIDs: []uuid.UUID{second.ID, first.ID}},
		{name: "By Tag", query: "?tag=react", expectedIDs: []uuid.UUID{second.ID}},
		{name: "By Author", query: "?author=" + id.String(), expectedIDs: []uuid.UUID{second.ID, first.ID}},
		{name: "Limit And Offset", query: "?limit=1&offset=1", expectedIDs: []uuid.UUID{first.ID}},
		{name: "Bad Limit", query: "?limit=abc", expectedError: true},
		{name: "Unknown Tag", query: "?tag=cobol", expectedError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ts.get(t, "/blogs"+tt.query, "")

			if tt.expectedError {
				assert.Equal(t, http.StatusBadRequest, res.status)
				return
			}

			require.Equal(t, http.StatusOK, res.status)

			var blogs []blogservice.BlogDetail
			res.decode(t, &blogs)

			ids := make([]uuid.UUID, 0, len(blogs))
			for _, b := range blogs {
				ids = append(ids, b.ID)
				assert.Equal(t, blogservice.StatusPublished, b.Status)
			}
			assert.Equal(t, tt.expectedIDs, ids)
		})
	}
}

func TestAuthorBlogsHandlers(t *testing.T) {
	app, _, _ := newTestApplication(t)
	ts := newTestServer(t, app.routes())

	alice, aliceID := ts.registerUser(t, "Alice", "alice@example.com")
	bob, _ := ts.registerUser(t, "Bob", "bob@example.com")

	ts.createBlog(t, alice, validBlog("Draft", blogservice.StatusDraft))
	ts.createBlog(t, alice, validBlog("Published", blogservice.StatusPublished))

	type listResponse struct {
		Success bool                     `json:"success"`
		Count   int                      `json:"count"`
		Data    []blogservice.BlogDetail `json:"data"`
	}

	tests := []struct {
		name             string
		path             string
		token            string
		expectedStatus   int
		expectedStatuses []blogservice.Status
	}{
		{name: "Mine Without Token", path: "/blogs/mine", expectedStatus: http.StatusUnauthorized},
		{name: "Mine", path: "/blogs/mine", token: alice, expectedStatus: http.StatusOK, expectedStatuses: []blogservice.Status{blogservice.StatusPublished}},
		{name: "My Drafts", path: "/blogs/mine?status=draft", token: alice, expectedStatus: http.StatusOK, expectedStatuses: []blogservice.Status{blogservice.StatusDraft}},
		{name: "Bob Has None", path: "/blogs/mine", token: bob, expectedStatus: http.StatusOK, expectedStatuses: []blogservice.Status{}},
		{name: "Public List", path: "/users/" + aliceID.String() + "/blogs", expectedStatus: http.StatusOK, expectedStatuses: []blogservice.Status{blogservice.StatusPublished}},
		{name: "Drafts Hidden From Others", path: "/users/" + aliceID.String() + "/blogs?status=draft", token: bob, expectedStatus: http.StatusOK, expectedStatuses: []blogservice.Status{blogservice.StatusPublished}},
		{name: "Invalid Status", path: "/blogs/mine?status=archived", token: alice, expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ts.get(t, tt.path, tt.token)
			require.Equal(t, tt.expectedStatus, res.status, string(res.body))

			if tt.expectedStatus != http.StatusOK {
				return
			}

			var body listResponse
			res.decode(t, &body)

			assert.True(t, body.Success)
			assert.Equal(t, len(tt.expectedStatuses), body.Count)

			statuses := []blogservice.Status{}
			for _, b := range body.Data {
				statuses = append(statuses, b.Status)
			}
			assert.Equal(t, tt.expectedStatuses, statuses)
		})
	}
}

func TestUpdateBlogHandler(t *testing.T) {
	app, _, gateway := newTestApplication(t)
	ts := newTestServer(t, app.routes())

	alice, aliceID := ts.registerUser(t, "Alice", "alice@example.com")
	bob, _ := ts.registerUser(t, "Bob", "bob@example.com")

	blog := ts.createBlog(t, alice, validBlog("Original", blogservice.StatusPublished))
	path := "/blogs/" + blog.ID.String()

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   aliceID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	unchanged := func(t *testing.T) {
		res := ts.get(t, path, "")
		require.Equal(t, http.StatusOK, res.status)

		var detail blogservice.BlogDetail
		res.decode(t, &detail)
		assert.Equal(t, "Original", detail.Title)
		assert.Equal(t, blog.Version, detail.Version)
	}

	t.Run("Expired Token", func(t *testing.T) {
		res := ts.sendJSON(t, http.MethodPut, path, expired, map[string]string{"title": "Hijacked"})
		require.Equal(t, http.StatusUnauthorized, res.status)
		assert.Equal(t, kindUnauthenticated, res.envelope(t)["kind"])
		unchanged(t)
	})

	t.Run("Not The Author", func(t *testing.T) {
		res := ts.sendJSON(t, http.MethodPut, path, bob, map[string]string{"title": "Hijacked"})
		require.Equal(t, http.StatusUnauthorized, res.status)
		assert.Equal(t, kindForbidden, res.envelope(t)["kind"])
		unchanged(t)
	})

	t.Run("Change Author", func(t *testing.T) {
		res := ts.sendJSON(t, http.MethodPut, path, alice, map[string]string{"author": uuid.NewString()})
		require.Equal(t, http.StatusBadRequest, res.status)
		unchanged(t)
	})

	t.Run("Missing Blog", func(t *testing.T) {
		res := ts.sendJSON(t, http.MethodPut, "/blogs/"+uuid.NewString(), alice, map[string]string{"title": "Nope"})
		assert.Equal(t, http.StatusNotFound, res.status)
	})

	t.Run("Partial Update", func(t *testing.T) {
		res := ts.sendJSON(t, http.MethodPut, path, alice, map[string]string{"title": "Renamed"})
		require.Equal(t, http.StatusOK, res.status, string(res.body))

		var updated blogservice.Blog
		res.decode(t, &updated)
		assert.Equal(t, "Renamed", updated.Title)
		assert.Equal(t, blog.Content, updated.Content)
		assert.Equal(t, blog.Tags, updated.Tags)
		assert.Equal(t, testDefaultCover, updated.CoverImage)
	})

	t.Run("Replace Cover Image", func(t *testing.T) {
		before := gateway.Len()

		res := ts.sendMultipart(t, http.MethodPut, path, alice, map[string]string{"content": strings.Repeat("word ", 1000)}, nil, testPNG)
		require.Equal(t, http.StatusOK, res.status, string(res.body))

		var first blogservice.Blog
		res.decode(t, &first)
		assert.Equal(t, 5, first.ReadTime)
		assert.True(t, gateway.Has(first.CoverImage))
		// the placeholder is never deleted, so one object was added
		assert.Equal(t, before+1, gateway.Len())

		res = ts.sendMultipart(t, http.MethodPut, path, alice, nil, nil, testPNG)
		require.Equal(t, http.StatusOK, res.status, string(res.body))

		var second blogservice.Blog
		res.decode(t, &second)
		assert.NotEqual(t, first.CoverImage, second.CoverImage)
		assert.True(t, gateway.Has(second.CoverImage))
		assert.False(t, gateway.Has(first.CoverImage))
		assert.Equal(t, before+1, gateway.Len())
	})
}

func TestDeleteBlogHandler(t *testing.T) {
	app, db, gateway := newTestApplication(t)
	ts := newTestServer(t, app.routes())

	alice, _ := ts.registerUser(t, "Alice", "alice@example.com")
	bob, _ := ts.registerUser(t, "Bob", "bob@example.com")
	admin, adminID := ts.registerUser(t, "Root", "root@example.com")

	_, err := db.Exec("UPDATE users SET role = 'admin' WHERE id = $1", adminID)
	require.NoError(t, err)

	res := ts.sendMultipart(t, http.MethodPost, "/blogs", alice, map[string]string{"title": "Doomed", "content": strings.Repeat("a", 60)}, nil, testPNG)
	require.Equal(t, http.StatusCreated, res.status)
	var created struct {
		Blog blogservice.Blog `json:"blog"`
	}
	res.decode(t, &created)

	own := ts.createBlog(t, alice, validBlog("Own", blogservice.StatusPublished))

	t.Run("Not The Author", func(t *testing.T) {
		res := ts.delete(t, "/blogs/"+created.Blog.ID.String(), bob)
		require.Equal(t, http.StatusForbidden, res.status)
		assert.Equal(t, kindForbidden, res.envelope(t)["kind"])
		assert.True(t, gateway.Has(created.Blog.CoverImage))
	})

	t.Run("Admin", func(t *testing.T) {
		res := ts.delete(t, "/blogs/"+created.Blog.ID.String(), admin)
		require.Equal(t, http.StatusOK, res.status)

		env := res.envelope(t)
		assert.Equal(t, true, env["success"])
		assert.Equal(t, map[string]any{"id": created.Blog.ID.String()}, env["data"])
		assert.False(t, gateway.Has(created.Blog.CoverImage))

		assert.Equal(t, http.StatusNotFound, ts.get(t, "/blogs/"+created.Blog.ID.String(), "").status)
	})

	t.Run("Author", func(t *testing.T) {
		res := ts.delete(t, "/blogs/"+own.ID.String(), alice)
		assert.Equal(t, http.StatusOK, res.status)
	})

	t.Run("Missing", func(t *testing.T) {
		res := ts.delete(t, "/blogs/"+own.ID.String(), alice)
		assert.Equal(t, http.StatusNotFound, res.status)
	})
}

func TestLikeAndCommentHandlers(t *testing.T) {
	app, _, _ := newTestApplication(t)
	ts := newTestServer(t, app.routes())

	alice, _ := ts.registerUser(t, "Alice", "alice@example.com")
	bob, bobID := ts.registerUser(t, "Bob", "bob@example.com")

	blog := ts.createBlog(t, alice, validBlog("Likeable", blogservice.StatusPublished))
	likePath := "/blogs/" + blog.ID.String() + "/like"
	commentPath := "/blogs/" + blog.ID.String() + "/comments"

	t.Run("Like", func(t *testing.T) {
		res := ts.do(t, http.MethodPost, likePath, bob, nil, "")
		require.Equal(t, http.StatusOK, res.status, string(res.body))

		var liked blogservice.Blog
		res.decode(t, &liked)
		assert.Equal(t, []uuid.UUID{bobID}, liked.Likes)
	})

	t.Run("Like Twice", func(t *testing.T) {
		res := ts.do(t, http.MethodPost, likePath, bob, nil, "")
		require.Equal(t, http.StatusBadRequest, res.status)
		assert.Equal(t, kindAlreadyLiked, res.envelope(t)["kind"])
	})

	t.Run("Like Missing Blog", func(t *testing.T) {
		res := ts.do(t, http.MethodPost, "/blogs/"+uuid.NewString()+"/like", bob, nil, "")
		assert.Equal(t, http.StatusNotFound, res.status)
	})

	t.Run("Like Anonymous", func(t *testing.T) {
		res := ts.do(t, http.MethodPost, likePath, "", nil, "")
		assert.Equal(t, http.StatusUnauthorized, res.status)
	})

	t.Run("Comment", func(t *testing.T) {
		res := ts.sendJSON(t, http.MethodPost, commentPath, bob, map[string]string{"text": "  Nice post  "})
		require.Equal(t, http.StatusCreated, res.status, string(res.body))

		var comments []blogservice.Comment
		res.decode(t, &comments)
		require.Len(t, comments, 1)
		assert.Equal(t, "Nice post", comments[0].Text)
		assert.Equal(t, bobID, comments[0].UserID)
	})

	t.Run("Comment Validation", func(t *testing.T) {
		for _, text := range []string{"", "   ", strings.Repeat("a", 501)} {
			res := ts.sendJSON(t, http.MethodPost, commentPath, bob, map[string]string{"text": text})
			assert.Equal(t, http.StatusBadRequest, res.status)
		}
	})

	t.Run("Populated Detail", func(t *testing.T) {
		res := ts.get(t, "/blogs/"+blog.ID.String(), "")
		require.Equal(t, http.StatusOK, res.status)

		var detail blogservice.BlogDetail
		res.decode(t, &detail)
		require.Len(t, detail.Likes, 1)
		assert.Equal(t, "Bob", detail.Likes[0].Name)
		require.Len(t, detail.Comments, 1)
		assert.Equal(t, "Bob", detail.Comments[0].User.Name)
	})
}

func TestMethodNotAllowed(t *testing.T) {
	app := newBareApplication()
	ts := newTestServer(t, app.routes())

	res := ts.do(t, http.MethodPatch, "/healthcheck", "", nil, "")
	require.Equal(t, http.StatusMethodNotAllowed, res.status)
	assert.Equal(t, kindMethodNotAllowed, res.envelope(t)["kind"])
}
