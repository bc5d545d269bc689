package qparser

// Operator is a filter operator key as understood by the document store.
type Operator string

const (
	OpExists Operator = "$exists"
	OpEq     Operator = "$eq"
	OpNe     Operator = "$ne"
	OpGt     Operator = "$gt"
	OpGte    Operator = "$gte"
	OpLt     Operator = "$lt"
	OpLte    Operator = "$lte"
	OpIn     Operator = "$in"
	OpNin    Operator = "$nin"
	OpNot    Operator = "$not"
)

// comparison tokens, longest first so ">=" wins over ">"
var operatorTokens = []string{">=", "<=", "!=", ">", "<", "="}

// ResolveOperator maps a comparison token to its operator. The empty token
// means a bare key and resolves to OpExists.
func ResolveOperator(token string) (Operator, error) {
	switch token {
	case "":
		return OpExists, nil
	case "=":
		return OpEq, nil
	case "!=":
		return OpNe, nil
	case ">":
		return OpGt, nil
	case ">=":
		return OpGte, nil
	case "<":
		return OpLt, nil
	case "<=":
		return OpLte, nil
	}
	return "", newError(KindStructuralParse, nil, "unknown comparison operator %q", token)
}
