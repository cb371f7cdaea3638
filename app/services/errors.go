package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrDuplicateRequest = errors.New("a request with this idempotency key is already in progress")
	ErrInvalidLogin     = errors.New("invalid email or password")
)

// ValidationError carries field-level messages. It is raised before any
// storage access.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// InsufficientStockError names the first product that could not be reserved.
type InsufficientStockError struct {
	ProductID uint
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d", e.ProductID)
}

// TransactionFailedError wraps an unexpected storage error from a checkout.
// Nothing was committed, so the caller may retry the whole request.
type TransactionFailedError struct {
	Err error
}

func (e *TransactionFailedError) Error() string {
	return "checkout transaction failed: " + e.Err.Error()
}

func (e *TransactionFailedError) Unwrap() error { return e.Err }
