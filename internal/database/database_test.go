package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestTranslateWriteError(t *testing.T) {
	testCases := []struct {
		name           string
		err            error
		wantConstraint string
		wantStorage    bool
	}{
		{
			name:           "username conflict",
			err:            &pgconn.PgError{Code: "23505", ConstraintName: ConstraintUsername},
			wantConstraint: ConstraintUsername,
		},
		{
			name:           "wrapped email conflict",
			err:            fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: ConstraintEmail}),
			wantConstraint: ConstraintEmail,
		},
		{
			name:        "not null violation",
			err:         &pgconn.PgError{Code: "23502", ColumnName: "email"},
			wantStorage: true,
		},
		{
			name:        "timeout",
			err:         context.DeadlineExceeded,
			wantStorage: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := translateWriteError("save user", tc.err)

			var constraintErr *ConstraintError
			if tc.wantConstraint != "" {
				if !errors.As(err, &constraintErr) {
					t.Fatalf("err = %v; want *ConstraintError", err)
				}
				if constraintErr.Constraint != tc.wantConstraint {
					t.Errorf("constraint = %q; want %q", constraintErr.Constraint, tc.wantConstraint)
				}
				if !errors.Is(err, ErrConstraintViolation) {
					t.Error("ConstraintError must match ErrConstraintViolation")
				}
			}
			if tc.wantStorage && !errors.Is(err, ErrStorage) {
				t.Errorf("err = %v; want ErrStorage", err)
			}
			if tc.wantStorage && !errors.Is(err, tc.err) {
				t.Errorf("err = %v; must keep the cause", err)
			}
		})
	}
}

func TestStringArray(t *testing.T) {
	var a StringArray
	if err := a.Scan("{user:read,user:update}"); err != nil {
		t.Fatal(err)
	}
	if len(a) != 2 || a[0] != "user:read" || a[1] != "user:update" {
		t.Errorf("Scan = %v", a)
	}

	if err := a.Scan([]byte("{}")); err != nil {
		t.Fatal(err)
	}
	if len(a) != 0 {
		t.Errorf("Scan empty = %v", a)
	}

	v, err := StringArray{"user:read", " ", "user:delete"}.Value()
	if err != nil {
		t.Fatal(err)
	}
	if v != "{user:read,user:delete}" {
		t.Errorf("Value = %v", v)
	}

	if err := a.Scan(42); err == nil {
		t.Error("Scan(int) must fail")
	}
}
