package weaviate

import (
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"

	"github.com/anla-124/pdf-searcher/internal/simfilter"
)

// noMatchSentinel is a document id that can never exist; a KindNone filter
// translates to an equality against it so the index deterministically
// returns zero hits instead of falling back to an unfiltered query.
const noMatchSentinel = "00000000-0000-0000-0000-000000000000"

// ToWhere translates a predicate tree into the Weaviate where clause.
// A KindAll filter translates to nil (no clause).
func ToWhere(f simfilter.Filter) *filters.WhereBuilder {
	switch f.Kind {
	case simfilter.KindAll:
		return nil
	case simfilter.KindNone:
		return filters.Where().
			WithPath([]string{simfilter.FieldDocumentID}).
			WithOperator(filters.Equal).
			WithValueString(noMatchSentinel)
	case simfilter.KindEqual:
		return filters.Where().
			WithPath([]string{f.Field}).
			WithOperator(filters.Equal).
			WithValueString(f.Value)
	case simfilter.KindNotEqual:
		return filters.Where().
			WithPath([]string{f.Field}).
			WithOperator(filters.NotEqual).
			WithValueString(f.Value)
	case simfilter.KindIn:
		return filters.Where().
			WithPath([]string{f.Field}).
			WithOperator(filters.ContainsAny).
			WithValueString(f.Values...)
	case simfilter.KindAnd:
		operands := make([]*filters.WhereBuilder, 0, len(f.Operands))
		for _, op := range f.Operands {
			if w := ToWhere(op); w != nil {
				operands = append(operands, w)
			}
		}
		if len(operands) == 0 {
			return nil
		}
		if len(operands) == 1 {
			return operands[0]
		}
		return filters.Where().
			WithOperator(filters.And).
			WithOperands(operands)
	}
	return nil
}
