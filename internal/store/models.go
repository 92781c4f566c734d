package store

import "errors"

// ErrCodeTaken is returned when a session join code is already in use.
var ErrCodeTaken = errors.New("session code already in use")

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"
