// Package core loads curated CSV sources into PostgreSQL tables.
//
// It holds the domain logic only: no flags, environment or HTTP. The CLI in
// cmd/emissions-import and the handlers in internal/web both drive a
// [Service].
//
// # Entity Registry
//
// Each target table is described by an [EntitySchema] registered at init
// time (see package tables):
//
//	core.Register(core.EntitySchema{
//	    Key:    "emission",
//	    Table:  "emission",
//	    Source: "emissions.csv",
//	    Fields: []core.FieldSpec{
//	        {Name: "company_name", Required: true},
//	        {Name: "year", Type: core.FieldInteger, Required: true},
//	    },
//	    BatchSize: 5000,
//	    DependsOn: []string{"company"},
//	})
//
// [LoadOrder] sorts entities so that every entity follows the ones it
// depends on; [Scope] narrows a run to one entity plus everything that
// depends on it.
//
// # Import Run
//
// A run validates every source header first and deletes nothing if one
// fails (unless keep-going was requested). Tables are then cleared in
// reverse load order and loaded in load order:
//
//  1. Rows are streamed from the source with BOM and invalid UTF-8 handled
//  2. The entity's row filter drops rows that belong elsewhere
//  3. [Normalize] coerces cells to typed values; bad rows are recorded and skipped
//  4. [BuildBatches] turns buffered records into multi-row INSERT statements
//
// A failed chunk is logged and the run continues. Only a lost connection,
// a failed delete or cancellation aborts it.
//
// # Error Handling
//
// Database errors are classified by SQLSTATE with [ClassifyError] and
// mapped to messages with [MapError]. Reference codes:
//
//   - DB001-DB007: database errors (duplicates, constraints, connections)
//   - VAL001-VAL004: validation errors (formats, missing columns)
//   - FILE001-FILE002: source file errors
//   - IMP001-IMP003: import run errors (in progress, unknown entity, no result)
package core
