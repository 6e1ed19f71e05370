package core

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

var (
	ErrNothingToInsert   = errors.New("nothing to insert")
	ErrInvalidBatchSize  = errors.New("batch size must be positive")
	ErrSchemaMismatch    = errors.New("rows have differing columns")
	ErrTooManyParameters = errors.New("statement exceeds bind parameter limit")
)

// Statement is one multi-row insert.
type Statement struct {
	SQL       string
	Args      []any
	Rows      int
	FirstLine int
	LastLine  int
}

// BuildBatches splits rows into contiguous chunks of at most maxRows and
// builds one parameterized INSERT per chunk, binding values row-major.
// All rows are checked before any statement is built.
func BuildBatches(table string, rows []Record, maxRows int) ([]Statement, error) {
	if len(rows) == 0 {
		return nil, ErrNothingToInsert
	}
	if maxRows < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, maxRows)
	}

	for i, r := range rows {
		if r.Schema == nil {
			return nil, fmt.Errorf("%w: row %d (line %d) has no schema", ErrSchemaMismatch, i, r.Line)
		}
	}

	columns := rows[0].Schema.Columns()
	for i, r := range rows {
		if len(r.Values) != len(columns) {
			return nil, fmt.Errorf("%w: row %d (line %d) has %d values, want %d",
				ErrSchemaMismatch, i, r.Line, len(r.Values), len(columns))
		}
		if i > 0 && r.Schema != rows[0].Schema && !slices.Equal(r.Schema.Columns(), columns) {
			return nil, fmt.Errorf("%w: row %d (line %d) has columns %v, want %v",
				ErrSchemaMismatch, i, r.Line, r.Schema.Columns(), columns)
		}
	}

	chunk := min(maxRows, len(rows))
	if chunk*len(columns) > MaxBindParameters {
		return nil, fmt.Errorf("%w: %d rows x %d columns", ErrTooManyParameters, chunk, len(columns))
	}

	prefix := insertPrefix(table, columns)
	stmts := make([]Statement, 0, (len(rows)+maxRows-1)/maxRows)
	for start := 0; start < len(rows); start += maxRows {
		end := min(start+maxRows, len(rows))
		stmts = append(stmts, buildInsert(prefix, len(columns), rows[start:end]))
	}
	return stmts, nil
}

func insertPrefix(table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return "INSERT INTO " + QuoteTable(table) + " (" + strings.Join(quoted, ", ") + ") VALUES "
}

func buildInsert(prefix string, width int, rows []Record) Statement {
	var b strings.Builder
	b.Grow(len(prefix) + len(rows)*width*6)
	b.WriteString(prefix)

	args := make([]any, 0, len(rows)*width)
	n := 1
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := 0; j < width; j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
		}
		b.WriteByte(')')
		args = append(args, r.Values...)
	}

	return Statement{
		SQL:       b.String(),
		Args:      args,
		Rows:      len(rows),
		FirstLine: rows[0].Line,
		LastLine:  rows[len(rows)-1].Line,
	}
}

// QuoteTable quotes a possibly schema-qualified table name.
func QuoteTable(table string) string {
	return pgx.Identifier(strings.Split(table, ".")).Sanitize()
}

// DeleteAllSQL returns the statement clearing a table.
func DeleteAllSQL(table string) string {
	return "DELETE FROM " + QuoteTable(table)
}
