// Package simfilter models the structured predicates handed to the vector
// index as a tagged-variant tree, so filter rewrites (like excluding the
// source document from its own candidate set) are total tree
// transformations instead of map-key inspection.
package simfilter

// FieldDocumentID is the payload field holding the owning document id on
// every indexed chunk point.
const FieldDocumentID = "documentId"

type Kind int

const (
	// KindAll matches every point. The zero Filter value.
	KindAll Kind = iota
	KindEqual
	KindNotEqual
	KindIn
	KindAnd
	// KindNone deterministically matches nothing. Produced when a caller's
	// id restriction collapses to the empty set.
	KindNone
)

type Filter struct {
	Kind     Kind
	Field    string
	Value    string
	Values   []string
	Operands []Filter
}

func All() Filter {
	return Filter{Kind: KindAll}
}

func None() Filter {
	return Filter{Kind: KindNone}
}

func Equal(field, value string) Filter {
	return Filter{Kind: KindEqual, Field: field, Value: value}
}

func NotEqual(field, value string) Filter {
	return Filter{Kind: KindNotEqual, Field: field, Value: value}
}

func In(field string, values ...string) Filter {
	vals := make([]string, len(values))
	copy(vals, values)
	return Filter{Kind: KindIn, Field: field, Values: vals}
}

// And conjoins filters. KindAll operands are dropped, nested KindAnd nodes
// are flattened, and a KindNone operand collapses the whole conjunction.
func And(operands ...Filter) Filter {
	var flat []Filter
	for _, op := range operands {
		switch op.Kind {
		case KindAll:
			continue
		case KindNone:
			return None()
		case KindAnd:
			flat = append(flat, op.Operands...)
		default:
			flat = append(flat, op)
		}
	}
	switch len(flat) {
	case 0:
		return All()
	case 1:
		return flat[0]
	}
	return Filter{Kind: KindAnd, Operands: flat}
}

// ExcludeDocument rewrites f so that the given document id can never match.
// If the caller already restricted results to an id set, the id is removed
// from that set rather than contradicting it; a set that empties out yields
// KindNone so the query returns zero candidates deterministically.
func ExcludeDocument(f Filter, docID string) Filter {
	stripped := stripDocumentID(f, docID)
	if stripped.Kind == KindNone {
		return stripped
	}
	return And(stripped, NotEqual(FieldDocumentID, docID))
}

func stripDocumentID(f Filter, docID string) Filter {
	switch f.Kind {
	case KindIn:
		if f.Field != FieldDocumentID {
			return f
		}
		kept := make([]string, 0, len(f.Values))
		for _, v := range f.Values {
			if v != docID {
				kept = append(kept, v)
			}
		}
		if len(kept) == len(f.Values) {
			return f
		}
		if len(kept) == 0 {
			return None()
		}
		return Filter{Kind: KindIn, Field: f.Field, Values: kept}
	case KindAnd:
		ops := make([]Filter, 0, len(f.Operands))
		for _, op := range f.Operands {
			s := stripDocumentID(op, docID)
			if s.Kind == KindNone {
				return None()
			}
			ops = append(ops, s)
		}
		return And(ops...)
	default:
		return f
	}
}
