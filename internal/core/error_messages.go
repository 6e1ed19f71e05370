package core

// error_messages.go classifies database errors raised while loading chunks.
//
// Classification prefers the structured SQLSTATE carried by *pgconn.PgError
// and falls back to message inspection only when no code is available (for
// example errors that were flattened to text by a wrapper).
//
// # Error Codes Reference
//
//	DB001 - Duplicate key: a row with this key already exists
//	DB002 - Missing required value: a NOT NULL column received no value
//	DB003 - Foreign key: referenced record does not exist
//	DB004 - Connection refused: unable to connect to database
//	DB005 - Connection lost: connection was interrupted mid-run
//	DB006 - Timeout: operation timed out
//	DB007 - Deadlock: conflicting concurrent operations
//	VAL001 - Invalid date
//	VAL002 - Invalid number
//	VAL003 - Ambiguous two-digit year
//	VAL004 - Missing required headers
//	FILE001 - Source file not found
//	FILE002 - Invalid CSV
//	IMP001 - Import already running
//	IMP002 - Unknown entity
//	IMP003 - No finished import to report
//	ERR000 - Anything else

import (
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the classifier understands.
const (
	pgUniqueViolation     = "23505"
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgAdminShutdown       = "57P01"
	pgCrashShutdown       = "57P02"
	pgCannotConnectNow    = "57P03"
	pgClassConnection     = "08"
)

// ErrorKind is the broad shape of a database error.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindUniqueViolation
	KindNotNullViolation
	KindForeignKeyViolation
	KindConnection
)

func (k ErrorKind) String() string {
	switch k {
	case KindUniqueViolation:
		return "unique_violation"
	case KindNotNullViolation:
		return "not_null_violation"
	case KindForeignKeyViolation:
		return "foreign_key_violation"
	case KindConnection:
		return "connection"
	default:
		return "unknown"
	}
}

// Classification is the structured reading of a database error.
type Classification struct {
	Kind       ErrorKind
	SQLState   string // Empty when the error carried no code
	Code       string // DB00x reference code
	Column     string
	Value      string
	Constraint string
	Message    string // Short diagnostic naming the offending column/values
}

var (
	// Key (name)=(Acme) already exists.
	keyDetailRegex = regexp.MustCompile(`Key \((.+?)\)=\((.*)\)`)
	uniqueMsgRegex = regexp.MustCompile(`duplicate key value violates unique constraint "([^"]+)"`)
	notNullRegex   = regexp.MustCompile(`null value in column "([^"]+)"`)
	fkMsgRegex     = regexp.MustCompile(`violates foreign key constraint "([^"]+)"`)
)

// connectionPhrases mark a connection that can no longer be used.
var connectionPhrases = []string{
	"conn closed",
	"connection refused",
	"connection reset",
	"broken pipe",
	"server closed the connection",
	"unexpected eof",
	"terminating connection",
	"connection is closed",
}

// ClassifyError reads a database error. Unknown errors keep their original
// message untouched.
func ClassifyError(err error) Classification {
	if err == nil {
		return Classification{}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPgError(pgErr)
	}

	if isNetworkError(err) {
		return connectionLost(err)
	}

	return classifyMessage(err)
}

func classifyPgError(e *pgconn.PgError) Classification {
	c := Classification{SQLState: e.Code, Constraint: e.ConstraintName}

	switch {
	case e.Code == pgUniqueViolation:
		c.Kind = KindUniqueViolation
		c.Code = "DB001"
		c.Column, c.Value = parseKeyDetail(e.Detail)
		c.Message = uniqueMessage(c)
	case e.Code == pgNotNullViolation:
		c.Kind = KindNotNullViolation
		c.Code = "DB002"
		c.Column = e.ColumnName
		if c.Column == "" {
			if m := notNullRegex.FindStringSubmatch(e.Message); m != nil {
				c.Column = m[1]
			}
		}
		c.Message = notNullMessage(c)
	case e.Code == pgForeignKeyViolation:
		c.Kind = KindForeignKeyViolation
		c.Code = "DB003"
		c.Column, c.Value = parseKeyDetail(e.Detail)
		c.Message = foreignKeyMessage(c)
	case strings.HasPrefix(e.Code, pgClassConnection),
		e.Code == pgAdminShutdown, e.Code == pgCrashShutdown, e.Code == pgCannotConnectNow:
		c.Kind = KindConnection
		c.Code = "DB005"
		c.Message = "database connection lost: " + e.Message
	default:
		c.Message = e.Error()
		c.Code = MapError(e).Code
	}
	return c
}

func classifyMessage(err error) Classification {
	msg := err.Error()
	lower := strings.ToLower(msg)

	if m := uniqueMsgRegex.FindStringSubmatch(msg); m != nil {
		c := Classification{Kind: KindUniqueViolation, Code: "DB001", Constraint: m[1]}
		c.Column, c.Value = parseKeyDetail(msg)
		c.Message = uniqueMessage(c)
		return c
	}
	if m := notNullRegex.FindStringSubmatch(msg); m != nil && strings.Contains(lower, "not-null constraint") {
		c := Classification{Kind: KindNotNullViolation, Code: "DB002", Column: m[1]}
		c.Message = notNullMessage(c)
		return c
	}
	if m := fkMsgRegex.FindStringSubmatch(msg); m != nil {
		c := Classification{Kind: KindForeignKeyViolation, Code: "DB003", Constraint: m[1]}
		c.Column, c.Value = parseKeyDetail(msg)
		c.Message = foreignKeyMessage(c)
		return c
	}
	for _, p := range connectionPhrases {
		if strings.Contains(lower, p) {
			return connectionLost(err)
		}
	}

	return Classification{Kind: KindUnknown, Code: MapError(err).Code, Message: msg}
}

func connectionLost(err error) Classification {
	return Classification{
		Kind:    KindConnection,
		Code:    "DB005",
		Message: "database connection lost: " + err.Error(),
	}
}

func parseKeyDetail(detail string) (column, value string) {
	if m := keyDetailRegex.FindStringSubmatch(detail); m != nil {
		return m[1], m[2]
	}
	return "", ""
}

func uniqueMessage(c Classification) string {
	switch {
	case c.Column != "":
		return fmt.Sprintf("duplicate value for %s: %s", c.Column, c.Value)
	case c.Constraint != "":
		return fmt.Sprintf("duplicate value violates unique constraint %s", c.Constraint)
	default:
		return "duplicate value violates a unique constraint"
	}
}

func notNullMessage(c Classification) string {
	if c.Column == "" {
		return "missing value for a required column"
	}
	return "missing value for required column " + c.Column
}

func foreignKeyMessage(c Classification) string {
	if c.Column != "" {
		return fmt.Sprintf("referenced record missing for %s: %s", c.Column, c.Value)
	}
	return "referenced record does not exist"
}

// isNetworkError recognizes transport failures below the PostgreSQL protocol.
func isNetworkError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ENETUNREACH,
			syscall.EHOSTUNREACH, syscall.EPIPE, syscall.ECONNABORTED:
			return true
		}
	}

	return false
}

// IsConnectionLost reports whether err means the session is unusable.
func IsConnectionLost(err error) bool {
	return err != nil && ClassifyError(err).Kind == KindConnection
}

// DescribeError renders a short diagnostic for a database error. Errors of
// unknown shape are returned verbatim.
func DescribeError(err error) string {
	if err == nil {
		return ""
	}
	return ClassifyError(err).Message
}

// UserMessage represents a user-friendly error message with an action and a
// reference code.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// The first matching pattern wins, so specific patterns come first.
var errorPatterns = []errorPattern{
	{"duplicate key", UserMessage{"A record with this key already exists", "Remove duplicate rows from the source file", "DB001"}},
	{"violates unique", UserMessage{"A duplicate value was found", "Review the source for duplicate key values", "DB001"}},
	{"not-null constraint", UserMessage{"A required value is missing", "Fill in the column named in the error", "DB002"}},
	{"foreign key", UserMessage{"Referenced record does not exist", "Load the parent entity first", "DB003"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Check DATABASE_URL and that the server is running", "DB004"}},
	{"connection lost", UserMessage{"Database connection was interrupted", "Re-run the import", "DB005"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Re-run the import", "DB005"}},
	{"timeout", UserMessage{"Operation timed out", "Try again later", "DB006"}},
	{"deadline exceeded", UserMessage{"Operation timed out", "Try again later", "DB006"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Try again", "DB007"}},
	{"invalid date", UserMessage{"Invalid date format detected", "Use YYYY-MM-DD or DD/MM/YYYY", "VAL001"}},
	{"invalid number", UserMessage{"Invalid number format detected", "Use plain digits with optional ',' separators", "VAL002"}},
	{"invalid integer", UserMessage{"Invalid number format detected", "Use plain digits with optional ',' separators", "VAL002"}},
	{"two-digit year", UserMessage{"Two-digit years are ambiguous", "Write the year with four digits", "VAL003"}},
	{"missing required headers", UserMessage{"Required columns are missing from the source", "Add the listed columns to the header line", "VAL004"}},
	{"no such file", UserMessage{"Source file not found", "Check IMPORT_DATA_DIR and the plan file", "FILE001"}},
	{"parse error", UserMessage{"The file is not valid CSV", "Ensure the file is comma-separated with consistent quoting", "FILE002"}},
	{"import already running", UserMessage{"An import is already running", "Wait for it to finish", "IMP001"}},
	{"unknown entity", UserMessage{"Unknown entity", "Use one of the entities listed by the plan command", "IMP002"}},
	{"no import has finished", UserMessage{"No import has finished yet", "Start an import and poll its progress", "IMP003"}},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the server logs",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
