// Package filterexpr compiles AIP-160 filter expressions into task criteria.
//
// Only conjunctions of these comparisons are accepted:
//
//	status = "DONE"
//	category_id = 3
//	created_at < timestamp("2024-01-02T00:00:00Z")
package filterexpr

import (
	"fmt"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"

	"github.com/splax/tasktracker/internal/domain"
)

// Declarations returns the identifiers a task filter may reference.
func Declarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("status", filtering.TypeString),
		filtering.DeclareIdent("category_id", filtering.TypeInt),
		filtering.DeclareIdent("created_at", filtering.TypeTimestamp),
	)
}

// Parse compiles raw into criteria. An empty string yields empty criteria.
// Every failure wraps domain.ErrMalformedRequest.
func Parse(raw string) (domain.TaskCriteria, error) {
	if strings.TrimSpace(raw) == "" {
		return domain.TaskCriteria{}, nil
	}

	decls, err := Declarations()
	if err != nil {
		return domain.TaskCriteria{}, fmt.Errorf("create declarations: %w", err)
	}
	filter, err := filtering.ParseFilterString(raw, decls)
	if err != nil {
		return domain.TaskCriteria{}, malformed("parse filter: %v", err)
	}

	var criteria domain.TaskCriteria
	if err := compile(filter.CheckedExpr.GetExpr(), &criteria); err != nil {
		return domain.TaskCriteria{}, err
	}
	return criteria, nil
}

func compile(e *expr.Expr, c *domain.TaskCriteria) error {
	if e == nil {
		return nil
	}
	call, ok := e.ExprKind.(*expr.Expr_CallExpr)
	if !ok {
		return malformed("unsupported expression %T", e.ExprKind)
	}
	switch call.CallExpr.Function {
	case "_&&_", "AND":
		for _, arg := range call.CallExpr.Args {
			if err := compile(arg, c); err != nil {
				return err
			}
		}
		return nil
	case "_==_", "=":
		return compileEquals(call.CallExpr.Args, c)
	case "_<_", "<":
		return compileLessThan(call.CallExpr.Args, c)
	default:
		return malformed("unsupported operator %s", call.CallExpr.Function)
	}
}

func compileEquals(args []*expr.Expr, c *domain.TaskCriteria) error {
	field, value, err := comparison(args)
	if err != nil {
		return err
	}
	switch field {
	case "status":
		if c.Status != nil {
			return malformed("status given twice")
		}
		raw, ok := value.GetConstExpr().GetConstantKind().(*expr.Constant_StringValue)
		if !ok {
			return malformed("status must be a string")
		}
		status, err := domain.ParseStatus(raw.StringValue)
		if err != nil {
			return err
		}
		c.Status = &status
	case "category_id":
		if c.CategoryID != nil {
			return malformed("category_id given twice")
		}
		raw, ok := value.GetConstExpr().GetConstantKind().(*expr.Constant_Int64Value)
		if !ok {
			return malformed("category_id must be an integer")
		}
		id := raw.Int64Value
		c.CategoryID = &id
	default:
		return malformed("field %s does not support =", field)
	}
	return nil
}

func compileLessThan(args []*expr.Expr, c *domain.TaskCriteria) error {
	field, value, err := comparison(args)
	if err != nil {
		return err
	}
	if field != "created_at" {
		return malformed("field %s does not support <", field)
	}
	if c.CreatedBefore != nil {
		return malformed("created_at given twice")
	}
	ts, err := timestamp(value)
	if err != nil {
		return err
	}
	c.CreatedBefore = &ts
	return nil
}

func comparison(args []*expr.Expr) (string, *expr.Expr, error) {
	if len(args) != 2 {
		return "", nil, malformed("comparison requires 2 arguments")
	}
	ident, ok := args[0].GetExprKind().(*expr.Expr_IdentExpr)
	if !ok {
		return "", nil, malformed("expected identifier on the left of a comparison")
	}
	return ident.IdentExpr.GetName(), args[1], nil
}

func timestamp(e *expr.Expr) (time.Time, error) {
	call := e.GetCallExpr()
	if call == nil || call.GetFunction() != "timestamp" || len(call.GetArgs()) != 1 {
		return time.Time{}, malformed("created_at must be compared with timestamp(\"...\")")
	}
	raw, ok := call.GetArgs()[0].GetConstExpr().GetConstantKind().(*expr.Constant_StringValue)
	if !ok {
		return time.Time{}, malformed("timestamp argument must be a string")
	}
	t, err := time.Parse(time.RFC3339Nano, raw.StringValue)
	if err != nil {
		return time.Time{}, malformed("invalid timestamp %q", raw.StringValue)
	}
	return t.UTC(), nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformedRequest, fmt.Sprintf(format, args...))
}
