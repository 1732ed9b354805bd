package dashboard

import "errors"

// ErrNoDocument is returned when no document can be resolved for the session.
var ErrNoDocument = errors.New("no document available")
