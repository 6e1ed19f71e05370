package core

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassifyError_PgError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantKind    ErrorKind
		wantCode    string
		wantMessage string
	}{
		{
			name: "unique violation names column and value",
			err: &pgconn.PgError{
				Code:           "23505",
				Message:        `duplicate key value violates unique constraint "company_pkey"`,
				Detail:         "Key (name)=(Acme) already exists.",
				ConstraintName: "company_pkey",
			},
			wantKind:    KindUniqueViolation,
			wantCode:    "DB001",
			wantMessage: "duplicate value for name: Acme",
		},
		{
			name: "unique violation composite key",
			err: &pgconn.PgError{
				Code:   "23505",
				Detail: "Key (company_name, year)=(Acme, 2023) already exists.",
			},
			wantKind:    KindUniqueViolation,
			wantCode:    "DB001",
			wantMessage: "duplicate value for company_name, year: Acme, 2023",
		},
		{
			name:        "not null uses column name",
			err:         &pgconn.PgError{Code: "23502", ColumnName: "lei"},
			wantKind:    KindNotNullViolation,
			wantCode:    "DB002",
			wantMessage: "missing value for required column lei",
		},
		{
			name: "foreign key",
			err: &pgconn.PgError{
				Code:   "23503",
				Detail: `Key (company_name)=(Ghost) is not present in table "company".`,
			},
			wantKind:    KindForeignKeyViolation,
			wantCode:    "DB003",
			wantMessage: "referenced record missing for company_name: Ghost",
		},
		{
			name:     "admin shutdown is connection loss",
			err:      &pgconn.PgError{Code: "57P01", Message: "terminating connection due to administrator command"},
			wantKind: KindConnection,
			wantCode: "DB005",
		},
		{
			name:     "connection exception class",
			err:      &pgconn.PgError{Code: "08006", Message: "connection failure"},
			wantKind: KindConnection,
			wantCode: "DB005",
		},
		{
			name:        "wrapped pg error",
			err:         fmt.Errorf("chunk 3: %w", &pgconn.PgError{Code: "23502", ColumnName: "isic"}),
			wantKind:    KindNotNullViolation,
			wantCode:    "DB002",
			wantMessage: "missing value for required column isic",
		},
		{
			name:     "other SQLSTATE is unknown",
			err:      &pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type integer"},
			wantKind: KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if tt.wantCode != "" && got.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", got.Code, tt.wantCode)
			}
			if tt.wantMessage != "" && got.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestClassifyError_MessageFallback(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantKind    ErrorKind
		wantMessage string
	}{
		{
			name:        "flattened unique violation",
			err:         errors.New(`ERROR: duplicate key value violates unique constraint "company_pkey" (SQLSTATE 23505) Key (name)=(Acme) already exists.`),
			wantKind:    KindUniqueViolation,
			wantMessage: "duplicate value for name: Acme",
		},
		{
			name:        "flattened not null",
			err:         errors.New(`null value in column "industry" of relation "company" violates not-null constraint`),
			wantKind:    KindNotNullViolation,
			wantMessage: "missing value for required column industry",
		},
		{
			name:     "conn closed",
			err:      errors.New("conn closed"),
			wantKind: KindConnection,
		},
		{
			name:     "connection reset text",
			err:      errors.New("read: connection reset by peer"),
			wantKind: KindConnection,
		},
		{
			name:        "unknown keeps original message",
			err:         errors.New("something odd happened"),
			wantKind:    KindUnknown,
			wantMessage: "something odd happened",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if tt.wantMessage != "" && got.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestIsConnectionLost(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"EOF", io.EOF, true},
		{"unexpected EOF wrapped", fmt.Errorf("read: %w", io.ErrUnexpectedEOF), true},
		{"net closed", net.ErrClosed, true},
		{"op error", &net.OpError{Op: "read", Net: "tcp", Err: errors.New("boom")}, true},
		{"econnreset", fmt.Errorf("write: %w", syscall.ECONNRESET), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"plain error", errors.New("bad value"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConnectionLost(tt.err); got != tt.want {
				t.Errorf("IsConnectionLost(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDescribeError(t *testing.T) {
	if DescribeError(nil) != "" {
		t.Error("DescribeError(nil) should be empty")
	}
	err := &pgconn.PgError{Code: "23505", Detail: "Key (lei)=(X1) already exists."}
	if got := DescribeError(err); got != "duplicate value for lei: X1" {
		t.Errorf("DescribeError = %q", got)
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name: "nil error returns empty",
		},
		{
			name:        "duplicate key maps correctly",
			err:         errors.New("duplicate key value violates unique constraint"),
			wantCode:    "DB001",
			wantMessage: "A record with this key already exists",
		},
		{
			name:        "foreign key maps correctly",
			err:         errors.New("violates foreign key constraint"),
			wantCode:    "DB003",
			wantMessage: "Referenced record does not exist",
		},
		{
			name:        "connection refused maps correctly",
			err:         errors.New("dial tcp: connection refused"),
			wantCode:    "DB004",
			wantMessage: "Unable to connect to database",
		},
		{
			name:        "connection lost sentinel",
			err:         fmt.Errorf("%w: conn closed", ErrConnectionLost),
			wantCode:    "DB005",
			wantMessage: "Database connection was interrupted",
		},
		{
			name:        "timeout maps correctly",
			err:         errors.New("context deadline exceeded"),
			wantCode:    "DB006",
			wantMessage: "Operation timed out",
		},
		{
			name:        "missing headers",
			err:         &SchemaError{Entity: "company", Missing: []string{"lei"}},
			wantCode:    "VAL004",
			wantMessage: "Required columns are missing from the source",
		},
		{
			name:        "import in progress",
			err:         ErrImportInProgress,
			wantCode:    "IMP001",
			wantMessage: "An import is already running",
		},
		{
			name:        "unknown entity",
			err:         fmt.Errorf("%w: %q", ErrUnknownEntity, "widgets"),
			wantCode:    "IMP002",
			wantMessage: "Unknown entity",
		},
		{
			name:        "no finished import",
			err:         ErrNoResult,
			wantCode:    "IMP003",
			wantMessage: "No import has finished yet",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("DUPLICATE KEY value violates"),
			wantCode:    "DB001",
			wantMessage: "A record with this key already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(errors.New("duplicate key"))
	want := "A record with this key already exists (Code: DB001). Remove duplicate rows from the source file"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("nil should not be user facing")
	}
	if !IsUserFacing(errors.New("duplicate key")) {
		t.Error("duplicate key should be user facing")
	}
	if IsUserFacing(errors.New("random internal error")) {
		t.Error("unknown error should not be user facing")
	}
}
