package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicateAccount = errors.New("account already exists")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("user not found")
	ErrInternal         = errors.New("internal error")
)

// InputError carries per-field validation messages and matches ErrInvalidInput.
type InputError struct {
	Fields map[string]string
}

func (e *InputError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return fmt.Sprintf("invalid input: %s", strings.Join(parts, "; "))
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

func invalid(field, msg string) error {
	return &InputError{Fields: map[string]string{field: msg}}
}
