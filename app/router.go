package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

func (app *application) routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(app.notFoundResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedResponse)

	router.HandlerFunc(http.MethodGet, "/healthcheck", app.healthCheckHandler)

	// user service
	router.HandlerFunc(http.MethodPost, "/auth/register", app.registerUserHandler)
	router.HandlerFunc(http.MethodPost, "/auth/login", app.loginUserHandler)
	router.HandlerFunc(http.MethodGet, "/users/:id/blogs", app.listUserBlogsHandler)

	// blog service
	router.HandlerFunc(http.MethodGet, "/blogs", app.listBlogsHandler)
	router.HandlerFunc(http.MethodPost, "/blogs", app.requireAuthUser(app.createBlogHandler))
	router.HandlerFunc(http.MethodGet, "/blogs/:id", app.showBlogHandler)
	router.HandlerFunc(http.MethodPut, "/blogs/:id", app.requireAuthUser(app.updateBlogHandler))
	router.HandlerFunc(http.MethodDelete, "/blogs/:id", app.requireAuthUser(app.deleteBlogHandler))
	router.HandlerFunc(http.MethodPost, "/blogs/:id/like", app.requireAuthUser(app.likeBlogHandler))
	router.HandlerFunc(http.MethodPost, "/blogs/:id/comments", app.requireAuthUser(app.commentBlogHandler))

	return app.recoverPanic(app.enableCORS(app.rateLimit(app.logRequest(app.authenticate(router)))))
}
