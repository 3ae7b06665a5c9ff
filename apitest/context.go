package apitest

import (
	"context"
	"net/http"
)

func contextWithUser(r *http.Request, username string) context.Context {
	return context.WithValue(r.Context(), userKey{}, username)
}

func userFrom(r *http.Request) string {
	username, _ := r.Context().Value(userKey{}).(string)
	return username
}
