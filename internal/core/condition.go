package core

import (
	"fmt"
	"os"
	"strings"

	"github.com/expr-lang/expr"
)

// EvaluateCondition evaluates a when: expression against the run's vars and
// the process environment. The expression must yield a bool.
func EvaluateCondition(condition string, ctx *RunContext) (bool, error) {
	env := map[string]any{
		"vars": ctx.Vars,
		"env":  environMap(),
	}

	program, err := expr.Compile(condition, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("compiling condition %q: %w", condition, err)
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("evaluating condition %q: %w", condition, err)
	}

	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not evaluate to a bool", condition)
	}
	return result, nil
}

func environMap() map[string]string {
	m := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	return m
}
