package auth

import "errors"

var (
	ErrMissingTokenURL = errors.New("oauth client_id is set but token_url is empty")
	ErrMissingSecret   = errors.New("oauth client_secret is required with client_id")
)
