package core

// Normalize converts a raw row into a record of exactly the schema's fields.
// Raw columns the schema does not declare are dropped. Every field that fails
// coercion is reported together in a *RowError.
func Normalize(row RawRow, schema *EntitySchema) (Record, error) {
	rec := Record{
		Schema: schema,
		Line:   row.Line,
		Values: make([]any, len(schema.Fields)),
	}

	var fieldErrs []FieldError
	for i, f := range schema.Fields {
		raw, ok := row.Lookup(f.Name)
		if !ok {
			continue
		}
		v, err := Coerce(raw, f.Type)
		if err != nil {
			fieldErrs = append(fieldErrs, FieldError{Field: f.Name, Value: raw, Err: err})
			continue
		}
		rec.Values[i] = v
	}

	if len(fieldErrs) > 0 {
		return Record{}, &RowError{Line: row.Line, Fields: fieldErrs}
	}
	return rec, nil
}
