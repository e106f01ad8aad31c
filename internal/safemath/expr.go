package safemath

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// ErrUnsafeExpression is returned when an expression has characters outside the arithmetic whitelist.
var ErrUnsafeExpression = errors.New("unsafe expression")

const (
	maxExpressionLen = 256
	evalTimeout      = 100 * time.Millisecond
)

// Only digits, spaces, parentheses and the + - * / % operators.
var safeExpressionRegexp = regexp.MustCompile(`^[0-9 +\-*/%()]+$`)

// CheckExpression returns ErrUnsafeExpression unless expr is made only of arithmetic characters.
func CheckExpression(expr string) error {
	switch {
	case strings.TrimSpace(expr) == "":
		return fmt.Errorf("empty expression: %w", ErrUnsafeExpression)
	case len(expr) > maxExpressionLen:
		return fmt.Errorf("expression longer than %d characters: %w", maxExpressionLen, ErrUnsafeExpression)
	case !safeExpressionRegexp.MatchString(expr):
		return fmt.Errorf("expression %q has non arithmetic characters: %w", expr, ErrUnsafeExpression)
	// "--" starts a Lua comment and would silently drop the rest of the expression.
	case strings.Contains(expr, "--"):
		return fmt.Errorf("expression %q has a double minus: %w", expr, ErrUnsafeExpression)
	}

	return nil
}

// Eval evaluates an integer arithmetic expression and floors the result.
//
// The expression is checked with CheckExpression before reaching the evaluator, a Lua state
// without any library loaded.
func Eval(expr string) (int, error) {
	if err := CheckExpression(expr); err != nil {
		return 0, err
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs:        true,
		CallStackSize:       16,
		RegistrySize:        256,
		IncludeGoStackTrace: false,
	})
	defer L.Close()

	ctx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()
	L.SetContext(ctx)

	if err := L.DoString("return " + expr); err != nil {
		return 0, fmt.Errorf("could not evaluate expression %q: %w", expr, err)
	}

	res, ok := L.Get(-1).(lua.LNumber)
	if !ok {
		return 0, fmt.Errorf("expression %q is not a number", expr)
	}

	f := math.Floor(float64(res))
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("expression %q result is out of range", expr)
	}

	return int(f), nil
}

// PercentOf returns floor(part*100/whole). Invalid input returns 0.
func PercentOf(part, whole int) int {
	if part < 0 || whole <= 0 {
		return 0
	}

	v, err := Eval(strconv.Itoa(part) + " * 100 / " + strconv.Itoa(whole))
	if err != nil {
		return 0
	}

	return v
}
