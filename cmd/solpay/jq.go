package main

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
)

// jqFilters is a set of compiled jq programs that must all be truthy.
type jqFilters []*gojq.Code

func compileJQ(exprs []string) (jqFilters, error) {
	out := make(jqFilters, 0, len(exprs))
	for _, expr := range exprs {
		query, err := gojq.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
		}
		code, err := gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
		}
		out = append(out, code)
	}
	return out, nil
}

// match reports whether v passes every filter. v is round-tripped through
// JSON so that gojq sees plain maps and numbers.
func (f jqFilters) match(v interface{}) bool {
	if len(f) == 0 {
		return true
	}
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return false
	}

	for _, code := range f {
		iter := code.Run(doc)
		res, ok := iter.Next()
		if !ok {
			return false
		}
		if _, isErr := res.(error); isErr {
			return false
		}
		if !isTruthy(res) {
			return false
		}
	}
	return true
}

// isTruthy follows jq: only false and null are falsy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}
