package rbac

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/opencolegio/opencolegio/internal/platform/httpx"
	_ "github.com/opencolegio/opencolegio/testing"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: uniqueViolation}
	if !isUniqueViolation(dup) {
		t.Fatal("expected 23505 to be a unique violation")
	}
	if !isUniqueViolation(fmt.Errorf("insert role: %w", dup)) {
		t.Fatal("expected wrapped 23505 to be a unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: foreignKeyViolation}) {
		t.Fatal("23503 is not a unique violation")
	}
	if isUniqueViolation(errors.New("plain error")) {
		t.Fatal("non-pg errors are not unique violations")
	}
	if isUniqueViolation(nil) {
		t.Fatal("nil is not a unique violation")
	}
}

func TestRelationErrorMapsForeignKeyToNotFound(t *testing.T) {
	fk := &pgconn.PgError{Code: foreignKeyViolation}
	if !errors.Is(relationError(fk), httpx.ErrNotFound) {
		t.Fatal("expected 23503 to map to NotFound")
	}
	if !errors.Is(relationError(fmt.Errorf("insert relation: %w", fk)), httpx.ErrNotFound) {
		t.Fatal("expected wrapped 23503 to map to NotFound")
	}

	// Everything else passes through untouched.
	if err := relationError(nil); err != nil {
		t.Fatalf("expected nil passthrough, got %v", err)
	}
	plain := errors.New("connection reset")
	if err := relationError(plain); err != plain {
		t.Fatalf("expected passthrough, got %v", err)
	}
	dup := &pgconn.PgError{Code: uniqueViolation}
	if errors.Is(relationError(dup), httpx.ErrNotFound) {
		t.Fatal("23505 must not map to NotFound")
	}
}
