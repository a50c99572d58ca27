// Package gwerrors contains all common errors used by the gateway.
package gwerrors

import "fmt"

var ErrNoRefreshToken = fmt.Errorf("no refresh token is available")
var ErrRefreshExchange = fmt.Errorf("the token refresh exchange failed")
var ErrMissingDBResource = fmt.Errorf("the requested resource cannot be found in the DB")
