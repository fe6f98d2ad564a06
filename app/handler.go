package main

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"github.com/sushihentaime/postboard/internal/blogservice"
	"github.com/sushihentaime/postboard/internal/common"
	"github.com/sushihentaime/postboard/internal/userservice"
)

type registerUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (app *application) registerUserHandler(w http.ResponseWriter, r *http.Request) {
	var input registerUserRequest

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user, token, err := app.userService.Register(r.Context(), input.Name, input.Email, input.Password)
	if err != nil {
		app.serviceErrorResponse(w, r, err, http.StatusForbidden)
		return
	}

	err = app.writeJSON(w, http.StatusCreated, envelope{"user": user, "token": token.Token, "expiry": token.Expiry}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

type loginUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (app *application) loginUserHandler(w http.ResponseWriter, r *http.Request) {
	var input loginUserRequest

	err := app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user, token, err := app.userService.Login(r.Context(), input.Email, input.Password)
	if err != nil {
		switch {
		case errors.Is(err, userservice.ErrInvalidCredentials):
			app.invalidCredentialsResponse(w, r)
		default:
			app.serviceErrorResponse(w, r, err, http.StatusForbidden)
		}
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"id": user.ID, "token": token.Token, "expiry": token.Expiry}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) createBlogHandler(w http.ResponseWriter, r *http.Request) {
	form, err := app.readBlogForm(w, r)
	if err != nil {
		app.formErrorResponse(w, r, err)
		return
	}
	defer form.close()

	p := app.contextGetPrincipal(r)

	blog, err := app.blogService.CreateBlog(r.Context(), p, form.createInput())
	if err != nil {
		app.serviceErrorResponse(w, r, err, http.StatusForbidden)
		return
	}

	err = app.writeJSON(w, http.StatusCreated, envelope{"blog": blog, "message": "Blog created successfully by " + p.Name}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) listBlogsHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := app.readLimitOffsetParams(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	filter := blogservice.Filter{
		Tag:    blogservice.Tag(r.URL.Query().Get("tag")),
		Limit:  limit,
		Offset: offset,
	}

	if author := r.URL.Query().Get("author"); author != "" {
		id, err := uuid.Parse(author)
		if err != nil {
			app.failedValidationResponse(w, r, map[string]string{"author": "must be a valid id"})
			return
		}
		filter.AuthorID = id
	}

	blogs, err := app.blogService.ListPublished(r.Context(), filter)
	if err != nil {
		app.serviceErrorResponse(w, r, err, http.StatusForbidden)
		return
	}

	err = app.writeJSON(w, http.StatusOK, blogs, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// showBlogHandler serves GET /blogs/:id. httprouter does not allow a static
// /blogs/mine next to the wildcard, so that path is dispatched from here.
func (app *application) showBlogHandler(w http.ResponseWriter, r *http.Request) {
	if httprouter.ParamsFromContext(r.Context()).ByName("id") == "mine" {
		app.requireAuthUser(app.listMyBlogsHandler)(w, r)
		return
	}

	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	blog, err := app.blogService.GetBlog(r.Context(), id)
	if err != nil {
		app.serviceErrorResponse(w, r, err, http.StatusForbidden)
		return
	}

	err = app.writeJSON(w, http.StatusOK, blog, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) listMyBlogsHandler(w http.ResponseWriter, r *http.Request) {
	p := app.contextGetPrincipal(r)
	app.writeAuthorBlogs(w, r, p.ID, blogservice.Status(r.URL.Query().Get("status")))
}

func (app *application) listUserBlogsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	app.writeAuthorBlogs(w, r, id, blogservice.Status(r.URL.Query().Get("status")))
}

func (app *application) writeAuthorBlogs(w http.ResponseWriter, r *http.Request, authorID uuid.UUID, status blogservice.Status) {
	blogs, err := app.blogService.ListByAuthor(r.Context(), app.contextGetPrincipal(r), authorID, status)
	if err != nil {
		app.serviceErrorResponse(w, r, err, http.StatusForbidden)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"success": true, "count": len(blogs), "data": blogs}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) updateBlogHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	form, err := app.readBlogForm(w, r)
	if err != nil {
		app.formErrorResponse(w, r, err)
		return
	}
	defer form.close()

	blog, err := app.blogService.UpdateBlog(r.Context(), app.contextGetPrincipal(r), id, form.updateInput())
	if err != nil {
		app.serviceErrorResponse(w, r, err, http.StatusUnauthorized)
		return
	}

	err = app.writeJSON(w, http.StatusOK, blog, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) deleteBlogHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	err = app.blogService.DeleteBlog(r.Context(), app.contextGetPrincipal(r), id)
	if err != nil {
		app.serviceErrorResponse(w, r, err, http.StatusForbidden)
		return
	}

	env := envelope{
		"success": true,
		"message": "Blog deleted successfully",
		"data":    envelope{"id": id},
	}

	err = app.writeJSON(w, http.StatusOK, env, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) likeBlogHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	blog, err := app.blogService.LikeBlog(r.Context(), app.contextGetPrincipal(r), id)
	if err != nil {
		app.serviceErrorResponse(w, r, err, http.StatusForbidden)
		return
	}

	err = app.writeJSON(w, http.StatusOK, blog, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

type commentRequest struct {
	Text string `json:"text"`
}

func (app *application) commentBlogHandler(w http.ResponseWriter, r *http.Request) {
	id, err := app.readIDParam(r, "id")
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	var input commentRequest

	err = app.parseJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	comments, err := app.blogService.CommentBlog(r.Context(), app.contextGetPrincipal(r), id, input.Text)
	if err != nil {
		app.serviceErrorResponse(w, r, err, http.StatusForbidden)
		return
	}

	err = app.writeJSON(w, http.StatusCreated, comments, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *application) formErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr common.ValidationError
	if errors.As(err, &validationErr) {
		app.failedValidationResponse(w, r, validationErr.Errors)
		return
	}
	app.badRequestResponse(w, r, err)
}
