package api

import (
	"net/http"
)

type basicAuthOpt struct {
	username string
	password string
}

func BasicAuth(username, password string) *basicAuthOpt {
	return &basicAuthOpt{username: username, password: password}
}

func (opt *basicAuthOpt) Do(client defaultClient, req *http.Request) {
	if opt.username != "" || opt.password != "" {
		req.SetBasicAuth(opt.username, opt.password)
	}
}
