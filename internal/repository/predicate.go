package repository

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"surveysearch/internal/model"
)

// Operator is the closed set of comparison operators a predicate may render.
type Operator string

const (
	OpEqual        Operator = "="
	OpLessOrEqual  Operator = "<="
	OpGreaterEqual Operator = ">="
	OpBetween      Operator = "BETWEEN"
	OpILike        Operator = "ILIKE"
	OpAnyILike     Operator = "ANY ILIKE"
)

// PredicateKind classifies predicates for tracing and tests.
type PredicateKind string

const (
	KindEquality PredicateKind = "equality"
	KindRange    PredicateKind = "range"
	KindPattern  PredicateKind = "pattern"
	KindDistance PredicateKind = "distance"
	KindKeyword  PredicateKind = "keyword"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Column is either a plain identifier (validated on render) or a trusted
// expression defined in code.
type Column struct {
	sql     string
	trusted bool
}

// Col references a table column such as "r.region".
func Col(name string) Column {
	return Column{sql: name}
}

// Expr wraps a code-defined SQL expression. It must never carry user input.
func Expr(sql string) Column {
	return Column{sql: sql, trusted: true}
}

func (c Column) render() (string, error) {
	if c.trusted {
		return c.sql, nil
	}
	if !identifierPattern.MatchString(c.sql) {
		return "", fmt.Errorf("%w: invalid column %q", model.ErrRejectedQuery, c.sql)
	}
	return c.sql, nil
}

// Predicate is one structured condition. Values live in the builder's
// parameter map and are referenced by name only.
type Predicate struct {
	Kind     PredicateKind
	Column   Column
	Operator Operator
	Params   []string
}

// PredicateBuilder accumulates predicates and their named bindings.
type PredicateBuilder struct {
	predicates []Predicate
	params     map[string]any
	seq        int
}

// NewPredicateBuilder returns an empty builder.
func NewPredicateBuilder() *PredicateBuilder {
	return &PredicateBuilder{params: map[string]any{}}
}

// Bind registers a value and returns its placeholder (":p3") for use inside
// trusted expressions.
func (b *PredicateBuilder) Bind(value any) string {
	name := "p" + strconv.Itoa(b.seq)
	b.seq++
	b.params[name] = value
	return ":" + name
}

func (b *PredicateBuilder) bindName(value any) string {
	return strings.TrimPrefix(b.Bind(value), ":")
}

// Equal adds column = value.
func (b *PredicateBuilder) Equal(col Column, value any) *PredicateBuilder {
	b.predicates = append(b.predicates, Predicate{
		Kind: KindEquality, Column: col, Operator: OpEqual,
		Params: []string{b.bindName(value)},
	})
	return b
}

// Between adds column BETWEEN lo AND hi.
func (b *PredicateBuilder) Between(col Column, lo, hi any) *PredicateBuilder {
	b.predicates = append(b.predicates, Predicate{
		Kind: KindRange, Column: col, Operator: OpBetween,
		Params: []string{b.bindName(lo), b.bindName(hi)},
	})
	return b
}

// AtMost adds column <= value; used for the distance ceiling.
func (b *PredicateBuilder) AtMost(kind PredicateKind, col Column, value any) *PredicateBuilder {
	b.predicates = append(b.predicates, Predicate{
		Kind: kind, Column: col, Operator: OpLessOrEqual,
		Params: []string{b.bindName(value)},
	})
	return b
}

// Contains adds a case-insensitive substring match. LIKE metacharacters in
// needle are escaped.
func (b *PredicateBuilder) Contains(col Column, needle string) *PredicateBuilder {
	b.predicates = append(b.predicates, Predicate{
		Kind: KindPattern, Column: col, Operator: OpILike,
		Params: []string{b.bindName("%" + EscapeLike(needle) + "%")},
	})
	return b
}

// ContainsAny adds (col ILIKE a OR col ILIKE b ...). Empty needles are skipped.
func (b *PredicateBuilder) ContainsAny(col Column, needles []string) *PredicateBuilder {
	var params []string
	for _, n := range needles {
		if n = strings.TrimSpace(n); n == "" {
			continue
		}
		params = append(params, b.bindName("%"+EscapeLike(n)+"%"))
	}
	if len(params) == 0 {
		return b
	}
	b.predicates = append(b.predicates, Predicate{
		Kind: KindKeyword, Column: col, Operator: OpAnyILike, Params: params,
	})
	return b
}

// Predicates returns the accumulated predicates.
func (b *PredicateBuilder) Predicates() []Predicate {
	return b.predicates
}

// Params returns a copy of the named bindings.
func (b *PredicateBuilder) Params() map[string]any {
	out := make(map[string]any, len(b.params))
	for k, v := range b.params {
		out[k] = v
	}
	return out
}

// Render produces the WHERE body ("TRUE" when empty) and the bindings.
func (b *PredicateBuilder) Render() (string, map[string]any, error) {
	if len(b.predicates) == 0 {
		return "TRUE", b.Params(), nil
	}
	clauses := make([]string, 0, len(b.predicates))
	for _, p := range b.predicates {
		clause, err := renderPredicate(p)
		if err != nil {
			return "", nil, err
		}
		clauses = append(clauses, clause)
	}
	return strings.Join(clauses, " AND "), b.Params(), nil
}

func renderPredicate(p Predicate) (string, error) {
	col, err := p.Column.render()
	if err != nil {
		return "", err
	}
	want := map[Operator]int{OpEqual: 1, OpLessOrEqual: 1, OpGreaterEqual: 1, OpILike: 1, OpBetween: 2}
	if n, ok := want[p.Operator]; ok && len(p.Params) != n {
		return "", fmt.Errorf("%w: operator %s expects %d params, got %d", model.ErrRejectedQuery, p.Operator, n, len(p.Params))
	}

	switch p.Operator {
	case OpEqual, OpLessOrEqual, OpGreaterEqual, OpILike:
		return fmt.Sprintf("%s %s :%s", col, p.Operator, p.Params[0]), nil
	case OpBetween:
		return fmt.Sprintf("%s BETWEEN :%s AND :%s", col, p.Params[0], p.Params[1]), nil
	case OpAnyILike:
		if len(p.Params) == 0 {
			return "", fmt.Errorf("%w: keyword predicate without params", model.ErrRejectedQuery)
		}
		parts := make([]string, len(p.Params))
		for i, name := range p.Params {
			parts[i] = fmt.Sprintf("%s ILIKE :%s", col, name)
		}
		return "(" + strings.Join(parts, " OR ") + ")", nil
	}
	return "", fmt.Errorf("%w: unsupported operator %q", model.ErrRejectedQuery, p.Operator)
}

// EscapeLike escapes LIKE wildcards using Postgres' default backslash escape.
// The backslashes travel as bound values, never as statement text.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
