package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ObjectPlaceholder is the template variable replaced by the serialized object.
const ObjectPlaceholder = "obj"

// placeholderRe follows shell-style substitution: "$$" escapes a dollar,
// "$name" and "${name}" are placeholders, anything else after "$" is invalid.
var placeholderRe = regexp.MustCompile(`\$(?:(\$)|([_A-Za-z][_A-Za-z0-9]*)|\{([_A-Za-z][_A-Za-z0-9]*)\}|())`)

// RenderObjectModule serializes obj as JSON and substitutes it for the $obj
// placeholder of a JS module template, e.g. "export default $obj\n".
func RenderObjectModule(tmpl string, obj any) ([]byte, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("serialize module object: %w", err)
	}

	var (
		out  strings.Builder
		last int
		used bool
	)
	for _, m := range placeholderRe.FindAllStringSubmatchIndex(tmpl, -1) {
		out.WriteString(tmpl[last:m[0]])
		last = m[1]

		switch {
		case m[2] >= 0:
			out.WriteByte('$')
		case m[4] >= 0 || m[6] >= 0:
			name := groupText(tmpl, m, 2)
			if name == "" {
				name = groupText(tmpl, m, 3)
			}
			if name != ObjectPlaceholder {
				return nil, fmt.Errorf("%w: unknown placeholder $%s", ErrTemplate, name)
			}
			out.Write(data)
			used = true
		default:
			return nil, fmt.Errorf("%w: invalid placeholder at offset %d", ErrTemplate, m[0])
		}
	}
	out.WriteString(tmpl[last:])

	if !used {
		return nil, fmt.Errorf("%w: missing $%s placeholder", ErrTemplate, ObjectPlaceholder)
	}
	return []byte(out.String()), nil
}

// groupText returns the text of capture group g, or "" when it did not match.
func groupText(s string, m []int, g int) string {
	if m[2*g] < 0 {
		return ""
	}
	return s[m[2*g]:m[2*g+1]]
}
