package catalog

import (
	"strconv"

	"github.com/ohler55/ojg/oj"
)

// MaxFlattenDepth bounds the recursive key-path walk so pathological nesting
// cannot exhaust the stack. Subtrees below the bound are rendered as JSON.
const MaxFlattenDepth = 32

// Flatten converts a parsed JSON object into a flat key-value map. Nested
// object keys are joined with dots; array elements get a positional [i]
// suffix. Scalars render as their plain text, not JSON-quoted.
func Flatten(value any, maxDepth int) map[string]string {
	if maxDepth <= 0 {
		maxDepth = MaxFlattenDepth
	}
	out := make(map[string]string)
	obj, ok := value.(map[string]any)
	if !ok {
		return out
	}
	for key, val := range obj {
		flattenValue(val, key, out, maxDepth-1)
	}
	return out
}

func flattenValue(value any, prefix string, out map[string]string, depth int) {
	if depth <= 0 {
		out[prefix] = ValueString(value)
		return
	}
	switch v := value.(type) {
	case map[string]any:
		for key, val := range v {
			p := key
			if prefix != "" {
				p = prefix + "." + key
			}
			flattenValue(val, p, out, depth-1)
		}
	case []any:
		for i, val := range v {
			flattenValue(val, prefix+"["+strconv.Itoa(i)+"]", out, depth-1)
		}
	default:
		if prefix != "" {
			out[prefix] = ValueString(value)
		}
	}
}

// ValueString renders a JSON value as display text: scalars unquoted,
// composites as compact JSON.
func ValueString(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return oj.JSON(value)
	}
}
