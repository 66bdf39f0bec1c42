package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/heartmarshall/dutchstory-backend/internal/domain"
)

const testSource = "https://example.org/words.pdf"

func TestMapError_Nil(t *testing.T) {
	t.Parallel()

	if got := MapError(nil, "knowledge_source", testSource); got != nil {
		t.Errorf("MapError(nil) = %v, want nil", got)
	}
}

func TestMapError_NoRows(t *testing.T) {
	t.Parallel()

	got := MapError(pgx.ErrNoRows, "knowledge_source", testSource)

	if !errors.Is(got, domain.ErrNotFound) {
		t.Errorf("MapError(ErrNoRows) does not wrap domain.ErrNotFound: %v", got)
	}
	if want := fmt.Sprintf("knowledge_source %s: not found", testSource); got.Error() != want {
		t.Errorf("MapError(ErrNoRows).Error() = %q, want %q", got.Error(), want)
	}
}

func TestMapError_WrappedNoRows(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("scan row: %w", pgx.ErrNoRows)
	if got := MapError(wrapped, "knowledge_source", testSource); !errors.Is(got, domain.ErrNotFound) {
		t.Errorf("MapError(wrapped ErrNoRows) does not wrap domain.ErrNotFound: %v", got)
	}
}

func TestMapError_PgCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		code    string
		wantErr error
	}{
		{"unique_violation", "23505", domain.ErrAlreadyExists},
		{"foreign_key_violation", "23503", domain.ErrNotFound},
		{"check_violation", "23514", domain.ErrValidation},
		{"dimension_mismatch", "22000", domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pgErr := &pgconn.PgError{Code: tt.code}
			got := MapError(fmt.Errorf("insert chunk: %w", pgErr), "knowledge_chunk", testSource)

			if !errors.Is(got, tt.wantErr) {
				t.Errorf("MapError(code %s) = %v, want wrap of %v", tt.code, got, tt.wantErr)
			}
		})
	}
}

func TestMapError_ContextErrorsPassThrough(t *testing.T) {
	t.Parallel()

	for _, ctxErr := range []error{context.DeadlineExceeded, context.Canceled} {
		got := MapError(ctxErr, "knowledge_chunk", testSource)
		if !errors.Is(got, ctxErr) {
			t.Errorf("MapError(%v) does not wrap the context error: %v", ctxErr, got)
		}
		if errors.Is(got, domain.ErrNotFound) {
			t.Errorf("MapError(%v) should not wrap domain.ErrNotFound", ctxErr)
		}
	}
}

func TestMapError_UnknownPgError(t *testing.T) {
	t.Parallel()

	pgErr := &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}
	got := MapError(pgErr, "knowledge_chunk", testSource)

	var unwrapped *pgconn.PgError
	if !errors.As(got, &unwrapped) {
		t.Errorf("MapError(unknown PgError) does not wrap *pgconn.PgError: %v", got)
	}
	if errors.Is(got, domain.ErrNotFound) || errors.Is(got, domain.ErrAlreadyExists) || errors.Is(got, domain.ErrValidation) {
		t.Error("MapError(unknown PgError) should not map to a domain error")
	}
}

func TestMapError_UnknownError(t *testing.T) {
	t.Parallel()

	original := errors.New("something unexpected")
	got := MapError(original, "knowledge_chunk", testSource)

	if !errors.Is(got, original) {
		t.Errorf("MapError(unknown) does not wrap original error: %v", got)
	}
	if want := fmt.Sprintf("knowledge_chunk %s: something unexpected", testSource); got.Error() != want {
		t.Errorf("MapError(unknown).Error() = %q, want %q", got.Error(), want)
	}
}
