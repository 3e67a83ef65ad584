package rules

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// Variable names visible to rule expressions.
const (
	InputVar  = "input"
	OutputVar = "output"
)

// Dialect compiles rule expressions.
type Dialect interface {
	Name() string
	Compile(expression string) (Program, error)
}

// Program is a compiled expression.
type Program interface {
	Eval(vars map[string]any) (any, error)
}

// DialectByName returns the dialect registered under name. Empty means CEL.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "cel":
		return NewCELDialect()
	case "expr":
		return NewExprDialect(), nil
	default:
		return nil, fmt.Errorf("unknown dialect %q (use cel or expr)", name)
	}
}

// CELDialect compiles expressions with CEL. input and output are declared
// as map(string, dyn).
type CELDialect struct {
	env *cel.Env
}

// NewCELDialect creates a CEL dialect with the input and output variables.
func NewCELDialect() (*CELDialect, error) {
	mapType := cel.MapType(cel.StringType, cel.DynType)

	env, err := cel.NewEnv(
		cel.Variable(InputVar, mapType),
		cel.Variable(OutputVar, mapType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &CELDialect{env: env}, nil
}

func (d *CELDialect) Name() string { return "cel" }

// Compile parses and type-checks expression.
// A cost limit of 1,000,000 bounds runaway expressions.
func (d *CELDialect) Compile(expression string) (Program, error) {
	ast, issues := d.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}

	prog, err := d.env.Program(ast, cel.CostLimit(1000000))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}

	return celProgram{prog: prog}, nil
}

type celProgram struct {
	prog cel.Program
}

func (p celProgram) Eval(vars map[string]any) (any, error) {
	out, _, err := p.prog.Eval(vars)
	if err != nil {
		return nil, err
	}
	return celToNative(out)
}

var (
	anySliceType = reflect.TypeOf([]any{})
	anyMapType   = reflect.TypeOf(map[string]any{})
)

func celToNative(v ref.Val) (any, error) {
	switch v.(type) {
	case types.Null:
		return nil, nil
	case traits.Lister:
		return v.ConvertToNative(anySliceType)
	case traits.Mapper:
		return v.ConvertToNative(anyMapType)
	default:
		return v.Value(), nil
	}
}

// ExprDialect compiles expressions with expr-lang. Missing map keys
// evaluate to nil instead of failing.
type ExprDialect struct{}

func NewExprDialect() *ExprDialect { return &ExprDialect{} }

func (d *ExprDialect) Name() string { return "expr" }

func (d *ExprDialect) Compile(expression string) (Program, error) {
	env := map[string]any{
		InputVar:  map[string]any{},
		OutputVar: map[string]any{},
	}

	prog, err := expr.Compile(expression,
		expr.Env(env),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile error: %w", err)
	}

	return exprProgram{prog: prog}, nil
}

type exprProgram struct {
	prog *vm.Program
}

func (p exprProgram) Eval(vars map[string]any) (any, error) {
	return vm.Run(p.prog, vars)
}
