// Package api serves the account backend over HTTP. Handlers decode and
// validate requests, call the account service and translate its errors into
// JSON error responses carrying a stable reason code.
package api
