package constants

// Storage types a user column can be inferred or declared as.
const (
	TypeText    = "TEXT"
	TypeInteger = "INTEGER"
	TypeReal    = "REAL"
)

// Reserved column names on every backing table.
const (
	ColumnID        = "id"
	ColumnSortOrder = "_sort_order"
)

// Filter operators accepted from the client.
const (
	OpEq         = "="
	OpNeq        = "!="
	OpGt         = ">"
	OpLt         = "<"
	OpGte        = ">="
	OpLte        = "<="
	OpLike       = "LIKE"
	OpNotLike    = "NOT LIKE"
	OpIsEmpty    = "IS EMPTY"
	OpIsNotEmpty = "IS NOT EMPTY"
)

// Aggregate functions accepted from the client.
var AggregateFunctions = map[string]bool{
	"SUM":   true,
	"AVG":   true,
	"MIN":   true,
	"MAX":   true,
	"COUNT": true,
}

// ValidColumnType reports whether t is a declarable user column type.
func ValidColumnType(t string) bool {
	return t == TypeText || t == TypeInteger || t == TypeReal
}
