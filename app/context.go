package main

import (
	"context"
	"net/http"

	"github.com/sushihentaime/postboard/internal/userservice"
)

type contextKey string

const principalContextKey = contextKey("principal")

func (app *application) contextSetPrincipal(r *http.Request, p *userservice.Principal) *http.Request {
	ctx := context.WithValue(r.Context(), principalContextKey, p)
	return r.WithContext(ctx)
}

// contextGetPrincipal returns the anonymous principal when authenticate has
// not run.
func (app *application) contextGetPrincipal(r *http.Request) *userservice.Principal {
	p, ok := r.Context().Value(principalContextKey).(*userservice.Principal)
	if !ok || p == nil {
		return &userservice.AnonymousPrincipal
	}
	return p
}
