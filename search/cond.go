package search

// Connectives for Group conditions.
const (
	ConnAnd = "AND"
	ConnOr  = "OR"
)

// Comparison operators carried by condition leaves. Backends may recognize
// further operators; these are the ones the core and bundled backends share.
const (
	OpExact      = "exact"
	OpLt         = "lt"
	OpLte        = "lte"
	OpGt         = "gt"
	OpGte        = "gte"
	OpIn         = "in"
	OpRange      = "range"
	OpIsNull     = "isnull"
	OpContains   = "contains"
	OpStartsWith = "startswith"
)

// Cond is one node of a filter condition tree. A tree is immutable once
// handed to the translator; translation only produces derived structures.
type Cond interface {
	cond()
}

// Comparison is a single comparison of a field against a value.
type Comparison struct {
	Field string
	Op    string
	Value interface{}
}

// DatePart compares a part extracted from a date field. Only the "year"
// part is supported; the translator rewrites it into plain date ranges.
type DatePart struct {
	Part  string
	Field string
	Op    string
	Value interface{}
}

// Group connects child conditions with AND or OR, optionally negated.
// Child order is preserved through translation.
type Group struct {
	Conn     string
	Children []Cond
	Negated  bool
}

// Nothing is the always-false condition.
type Nothing struct{}

func (*Comparison) cond() {}
func (*DatePart) cond()   {}
func (*Group) cond()      {}
func (*Nothing) cond()    {}
