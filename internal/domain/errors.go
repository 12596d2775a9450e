package domain

import "errors"

// ErrCredentialsUnavailable means the publishing credential is missing or can
// no longer be refreshed. It aborts the cycle.
var ErrCredentialsUnavailable = errors.New("publishing credentials unavailable")
