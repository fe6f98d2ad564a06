package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"github.com/sushihentaime/postboard/internal/blogservice"
	"github.com/sushihentaime/postboard/internal/common"
)

const (
	maxJSONBytes = 1_048_576
	sniffLength  = 512
)

type envelope map[string]any

func (app *application) writeJSON(w http.ResponseWriter, status int, data any, headers http.Header) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}

	for key, values := range headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(js)

	return nil
}

func (app *application) parseJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	err := decoder.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("request body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("request body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("request body contains an invalid value for the %q field", unmarshalTypeError.Field)
			}
			return fmt.Errorf("request body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("request body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("request body contains unknown field %s", fieldName)
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("request body must not be larger than %d bytes", maxBytesError.Limit)
		case errors.As(err, &invalidUnmarshalError):
			panic(err)
		default:
			return err
		}
	}

	err = decoder.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("request body must only contain a single JSON value")
	}

	return nil
}

func (app *application) readIDParam(r *http.Request, key string) (uuid.UUID, error) {
	params := httprouter.ParamsFromContext(r.Context())

	id, err := uuid.Parse(params.ByName(key))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s parameter", key)
	}

	return id, nil
}

func (app *application) readLimitOffsetParams(r *http.Request) (int, int, error) {
	params := r.URL.Query()

	var limit, offset int

	if params.Get("limit") != "" {
		l, err := strconv.Atoi(params.Get("limit"))
		if err != nil || l < 1 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
		limit = l
	}

	if params.Get("offset") != "" {
		o, err := strconv.Atoi(params.Get("offset"))
		if err != nil || o < 0 {
			return 0, 0, errors.New("offset must be zero or a positive integer")
		}
		offset = o
	}

	return limit, offset, nil
}

// blogForm is the body of POST /blogs and PUT /blogs/:id. A nil field was
// absent from the request.
type blogForm struct {
	Title      *string
	Content    *string
	Excerpt    *string
	Tags       *[]blogservice.Tag
	Status     *blogservice.Status
	Author     *uuid.UUID
	CoverImage *blogservice.Upload

	closers []io.Closer
}

func (f *blogForm) close() {
	for _, c := range f.closers {
		c.Close()
	}
}

func (f *blogForm) createInput() blogservice.CreateBlogInput {
	in := blogservice.CreateBlogInput{CoverImage: f.CoverImage}
	if f.Title != nil {
		in.Title = *f.Title
	}
	if f.Content != nil {
		in.Content = *f.Content
	}
	if f.Excerpt != nil {
		in.Excerpt = *f.Excerpt
	}
	if f.Tags != nil {
		in.Tags = *f.Tags
	}
	if f.Status != nil {
		in.Status = *f.Status
	}
	return in
}

func (f *blogForm) updateInput() blogservice.UpdateBlogInput {
	return blogservice.UpdateBlogInput{
		Title:      f.Title,
		Content:    f.Content,
		Excerpt:    f.Excerpt,
		Tags:       f.Tags,
		Status:     f.Status,
		AuthorID:   f.Author,
		CoverImage: f.CoverImage,
	}
}

// tagList accepts both a JSON array and a comma separated string.
type tagList []blogservice.Tag

func (t *tagList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = toTags(list)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.New("tags must be an array or a comma separated string")
	}
	*t = toTags([]string{s})

	return nil
}

// blogRequest is the JSON form of a blog body. A coverImage sent as text is
// accepted and ignored; only an uploaded file replaces the stored cover.
type blogRequest struct {
	Title      *string         `json:"title"`
	Content    *string         `json:"content"`
	Excerpt    *string         `json:"excerpt"`
	Tags       *tagList        `json:"tags"`
	Status     *string         `json:"status"`
	Author     *uuid.UUID      `json:"author"`
	CoverImage json.RawMessage `json:"coverImage"`
}

// readBlogForm parses a multipart or JSON blog body. Errors of type
// common.ValidationError describe a bad cover image; any other error is a
// malformed request.
func (app *application) readBlogForm(w http.ResponseWriter, r *http.Request) (*blogForm, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return app.readMultipartBlogForm(w, r)
	}

	var input blogRequest
	if err := app.parseJSON(w, r, &input); err != nil {
		return nil, err
	}

	form := &blogForm{
		Title:   input.Title,
		Content: input.Content,
		Excerpt: input.Excerpt,
		Author:  input.Author,
	}
	if input.Tags != nil {
		tags := []blogservice.Tag(*input.Tags)
		form.Tags = &tags
	}
	if input.Status != nil {
		status := blogservice.Status(*input.Status)
		form.Status = &status
	}

	return form, nil
}

func (app *application) readMultipartBlogForm(w http.ResponseWriter, r *http.Request) (*blogForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, app.config.MaxUploadBytes+maxJSONBytes)

	err := r.ParseMultipartForm(app.config.MaxUploadBytes)
	if err != nil {
		var maxBytesError *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesError):
			return nil, fmt.Errorf("request body must not be larger than %d bytes", maxBytesError.Limit)
		default:
			return nil, errors.New("request body is not a valid multipart form")
		}
	}

	values := r.MultipartForm.Value
	form := &blogForm{
		Title:   formValue(values, "title"),
		Content: formValue(values, "content"),
		Excerpt: formValue(values, "excerpt"),
	}
	form.closers = append(form.closers, closerFunc(r.MultipartForm.RemoveAll))

	if s := formValue(values, "status"); s != nil {
		status := blogservice.Status(*s)
		form.Status = &status
	}

	if raw, ok := formValues(values, "tags", "tags[]"); ok {
		tags := toTags(raw)
		form.Tags = &tags
	}

	if s := formValue(values, "author"); s != nil {
		id, err := uuid.Parse(*s)
		if err != nil {
			form.close()
			return nil, errors.New("author must be a valid id")
		}
		form.Author = &id
	}

	if files := r.MultipartForm.File["coverImage"]; len(files) > 0 {
		upload, f, err := app.openCoverImage(files[0])
		if err != nil {
			form.close()
			return nil, err
		}
		form.closers = append(form.closers, f)
		form.CoverImage = upload
	}

	return form, nil
}

func (app *application) openCoverImage(fh *multipart.FileHeader) (*blogservice.Upload, multipart.File, error) {
	v := common.NewValidator()
	v.Check(fh.Size <= app.config.MaxUploadBytes, "coverImage", fmt.Sprintf("must not be larger than %d bytes", app.config.MaxUploadBytes))
	if !v.Valid() {
		return nil, nil, v.ValidationError()
	}

	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, nil, err
	}
	head = head[:n]

	contentType := http.DetectContentType(head)
	v.Check(n > 0, "coverImage", "must not be empty")
	v.Check(strings.HasPrefix(contentType, "image/"), "coverImage", "must be an image")
	if !v.Valid() {
		f.Close()
		return nil, nil, v.ValidationError()
	}

	return &blogservice.Upload{
		Body:        io.MultiReader(bytes.NewReader(head), f),
		ContentType: contentType,
	}, f, nil
}

func formValue(values map[string][]string, key string) *string {
	v, ok := values[key]
	if !ok || len(v) == 0 {
		return nil
	}
	return &v[0]
}

func formValues(values map[string][]string, keys ...string) ([]string, bool) {
	var out []string
	found := false
	for _, key := range keys {
		if v, ok := values[key]; ok {
			found = true
			out = append(out, v...)
		}
	}
	return out, found
}

// toTags splits comma separated entries and drops blanks. Case folding and
// de-duplication happen in blogservice.
func toTags(raw []string) []blogservice.Tag {
	tags := []blogservice.Tag{}
	for _, entry := range raw {
		for _, t := range strings.Split(entry, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				tags = append(tags, blogservice.Tag(t))
			}
		}
	}
	return tags
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
