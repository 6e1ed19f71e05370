package core

// Predicate selects the raw rows that belong to an entity. It sees the
// original text, before any coercion. A nil Predicate accepts everything.
type Predicate func(RawRow) bool

// Accepts applies the predicate, treating nil as accept-all.
func (p Predicate) Accepts(row RawRow) bool {
	return p == nil || p(row)
}

// FieldEquals keeps rows whose trimmed field equals value.
func FieldEquals(field, value string) Predicate {
	return func(r RawRow) bool {
		return r.Value(field) == value
	}
}

// FieldNotEquals keeps rows whose trimmed field differs from value.
// Rows without the field are kept.
func FieldNotEquals(field, value string) Predicate {
	return func(r RawRow) bool {
		return r.Value(field) != value
	}
}

// AllOf keeps rows accepted by every predicate.
func AllOf(preds ...Predicate) Predicate {
	return func(r RawRow) bool {
		for _, p := range preds {
			if !p.Accepts(r) {
				return false
			}
		}
		return true
	}
}
