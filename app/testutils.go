package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sushihentaime/postboard/internal/blogservice"
	"github.com/sushihentaime/postboard/internal/common"
	"github.com/sushihentaime/postboard/internal/mediaservice"
	"github.com/sushihentaime/postboard/internal/userservice"
)

const (
	testSecret       = "0123456789abcdef0123456789abcdef"
	testDefaultCover = "https://cdn.example.com/default-cover.jpg"
	testMediaURL     = "http://media.test"
)

// a PNG signature is enough for http.DetectContentType
var testPNG = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)

type testServer struct {
	*httptest.Server
}

func newTestServer(t *testing.T, h http.Handler) *testServer {
	ts := httptest.NewServer(h)

	t.Cleanup(ts.Close)

	return &testServer{ts}
}

func testConfig() *Config {
	return &Config{
		Port:              "0",
		Environment:       "development",
		Version:           "test",
		DBTimeout:         5 * time.Second,
		JWTSecret:         testSecret,
		JWTTTL:            time.Hour,
		DefaultCoverImage: testDefaultCover,
		MaxUploadBytes:    1 << 20,
	}
}

// newBareApplication has no services; it serves routes that do not touch them.
func newBareApplication() *application {
	return &application{
		config: testConfig(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func newTestApplication(t *testing.T) (*application, *sql.DB, *mediaservice.MemoryGateway) {
	db := common.TestDB("file://../migrations", t)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	rabbitURI := common.TestRabbitMQ(t)
	broker, err := common.NewMessageBroker(rabbitURI)
	require.NoError(t, err)
	t.Cleanup(func() { broker.Close() })

	require.NoError(t, common.SetupUserExchange(broker))
	require.NoError(t, common.SetupMediaExchange(broker))

	cfg := testConfig()
	gateway := mediaservice.NewMemoryGateway(testMediaURL)
	userService := userservice.NewUserService(db, broker, cfg.JWTSecret, cfg.JWTTTL, cfg.DBTimeout, logger)

	app := &application{
		config:      cfg,
		logger:      logger,
		userService: userService,
		blogService: blogservice.NewBlogService(db, cfg.DBTimeout, gateway, userService, mediaservice.NewCleanupPublisher(broker), cfg.DefaultCoverImage, logger),
		broker:      broker,
	}

	return app, db, gateway
}

type testResponse struct {
	status int
	header http.Header
	body   []byte
}

// decode unmarshals the body into dst and fails the test otherwise.
func (r testResponse) decode(t *testing.T, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, dst), string(r.body))
}

func (r testResponse) envelope(t *testing.T) envelope {
	var env envelope
	r.decode(t, &env)
	return env
}

func (ts *testServer) do(t *testing.T, method, path, token string, body io.Reader, contentType string) testResponse {
	t.Helper()

	req, err := http.NewRequest(method, ts.URL+path, body)
	require.NoError(t, err)

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	res, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	return testResponse{status: res.StatusCode, header: res.Header, body: data}
}

func (ts *testServer) get(t *testing.T, path, token string) testResponse {
	return ts.do(t, http.MethodGet, path, token, nil, "")
}

func (ts *testServer) delete(t *testing.T, path, token string) testResponse {
	return ts.do(t, http.MethodDelete, path, token, nil, "")
}

func (ts *testServer) sendJSON(t *testing.T, method, path, token string, payload any) testResponse {
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	return ts.do(t, method, path, token, bytes.NewReader(data), "application/json")
}

func (ts *testServer) sendMultipart(t *testing.T, method, path, token string, fields map[string]string, tags []string, image []byte) testResponse {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for key, value := range fields {
		require.NoError(t, mw.WriteField(key, value))
	}
	for _, tag := range tags {
		require.NoError(t, mw.WriteField("tags[]", tag))
	}
	if image != nil {
		fw, err := mw.CreateFormFile("coverImage", "cover.png")
		require.NoError(t, err)
		_, err = fw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	return ts.do(t, method, path, token, &buf, mw.FormDataContentType())
}

// registerUser creates an account through the API and returns its token and id.
func (ts *testServer) registerUser(t *testing.T, name, email string) (string, uuid.UUID) {
	t.Helper()

	res := ts.sendJSON(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": "Test_1234!",
	})
	require.Equal(t, http.StatusCreated, res.status, string(res.body))

	var body struct {
		User  userservice.User `json:"user"`
		Token string           `json:"token"`
	}
	res.decode(t, &body)

	return body.Token, body.User.ID
}

// createBlog stores a blog through the API and returns it.
func (ts *testServer) createBlog(t *testing.T, token string, payload map[string]any) blogservice.Blog {
	t.Helper()

	res := ts.sendJSON(t, http.MethodPost, "/blogs", token, payload)
	require.Equal(t, http.StatusCreated, res.status, string(res.body))

	var body struct {
		Blog blogservice.Blog `json:"blog"`
	}
	res.decode(t, &body)

	return body.Blog
}

func validBlog(title string, status blogservice.Status) map[string]any {
	return map[string]any{
		"title":   title,
		"content": "Go makes it easy to build simple, reliable, and efficient software for everyone.",
		"tags":    []string{"programming"},
		"status":  status,
	}
}
