package errorx

import "net/http"

type Code int

var Unknown = Error{Code: Internal, Message: "Request failed"}

const (
	// Request codes
	BadRequest        Code = 100001
	InvalidArgument   Code = 100002
	InsufficientFunds Code = 100003
	NotFound          Code = 100004
	AlreadyExists     Code = 100005

	// Auth codes
	Unauthenticated  Code = 200001
	InvalidToken     Code = 200002
	PermissionDenied Code = 200003

	// Blockchain codes
	BlockchainError Code = 300001

	// Server codes
	Internal    Code = 500001
	Unavailable Code = 500002
)

type codeInfo struct {
	label  string
	status int
}

var codeInfos = map[Code]codeInfo{
	BadRequest:        {"Request Error", http.StatusBadRequest},
	InvalidArgument:   {"Invalid Argument", http.StatusBadRequest},
	InsufficientFunds: {"Request Error", http.StatusBadRequest},
	NotFound:          {"Not Found", http.StatusNotFound},
	AlreadyExists:     {"Request Error", http.StatusConflict},
	Unauthenticated:   {"invalid_header", http.StatusUnauthorized},
	InvalidToken:      {"invalid_token", http.StatusUnauthorized},
	PermissionDenied:  {"Unauthorized", http.StatusForbidden},
	BlockchainError:   {"Blockchain Error", http.StatusInternalServerError},
	Internal:          {"Internal Error", http.StatusInternalServerError},
	Unavailable:       {"Service Unavailable", http.StatusServiceUnavailable},
}

// Label is the value written in the "code" field of an error response.
func (c Code) Label() string {
	if info, ok := codeInfos[c]; ok {
		return info.label
	}

	return codeInfos[Internal].label
}

func (c Code) HTTPStatus() int {
	if info, ok := codeInfos[c]; ok {
		return info.status
	}

	return http.StatusInternalServerError
}
