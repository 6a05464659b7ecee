package apigw

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/yalp/jsonpath"
)

// renderer evaluates the references API Gateway mapping templates use:
//
//	$input.params('x')  $input.params()  $input.path('$.a')  $input.json('$.a')  $input.body
//	$util.escapeJavaScript(...)  $util.urlEncode(...)  $util.base64Encode(...)
//	$context.a.b  $context.authorizer.claims['sub']  $stageVariables.x
//
// Directives (#set, #foreach, #if) are not supported and are emitted as-is.
// Undefined values under a known root render as the empty string; unknown
// roots render literally.
type renderer struct {
	params         map[string]map[string]string
	context        map[string]any
	stageVariables map[string]string
	body           string

	parsed    any
	parsedErr error
	parseDone bool
}

// Parameter locations searched by $input.params('x'), in order.
var paramLocations = []string{"path", "querystring", "header"}

func (r *renderer) render(tmpl string) (string, error) {
	var out strings.Builder
	for i := 0; i < len(tmpl); {
		if tmpl[i] != '$' || !startsReference(tmpl, i) {
			out.WriteByte(tmpl[i])
			i++
			continue
		}
		ref, end, err := parseReference(tmpl, i)
		if err != nil {
			return "", err
		}
		value, known, err := r.eval(ref)
		if err != nil {
			return "", err
		}
		if known {
			out.WriteString(value)
		} else {
			out.WriteString(tmpl[i:end])
		}
		i = end
	}
	return out.String(), nil
}

// reference is one parsed $root.segment(...)... chain.
type reference struct {
	root     string
	segments []segment
}

type segment struct {
	name   string
	call   bool
	args   []argument
	index  bool
	indexV string
}

// argument is either a string literal or a nested reference.
type argument struct {
	literal string
	ref     *reference
}

func startsReference(s string, i int) bool {
	j := i + 1
	if j < len(s) && s[j] == '!' {
		j++
	}
	if j < len(s) && s[j] == '{' {
		j++
	}
	return j < len(s) && isIdentStart(s[j])
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '-'
}

func readIdent(s string, i int) (string, int) {
	j := i
	for j < len(s) && isIdentPart(s[j]) {
		j++
	}
	return s[i:j], j
}

// parseReference parses the reference starting at s[i] == '$' and returns
// it with the index just past it.
func parseReference(s string, i int) (*reference, int, error) {
	i++ // $
	if i < len(s) && s[i] == '!' {
		i++
	}
	braced := false
	if i < len(s) && s[i] == '{' {
		braced = true
		i++
	}

	root, i := readIdent(s, i)
	ref := &reference{root: root}

loop:
	for i < len(s) {
		switch {
		case s[i] == '.' && i+1 < len(s) && isIdentStart(s[i+1]):
			name, j := readIdent(s, i+1)
			seg := segment{name: name}
			if j < len(s) && s[j] == '(' {
				args, k, err := parseArgs(s, j+1)
				if err != nil {
					return nil, 0, err
				}
				seg.call = true
				seg.args = args
				j = k
			}
			ref.segments = append(ref.segments, seg)
			i = j
		case s[i] == '[':
			lit, j, err := parseString(s, skipSpace(s, i+1))
			if err != nil {
				return nil, 0, err
			}
			j = skipSpace(s, j)
			if j >= len(s) || s[j] != ']' {
				return nil, 0, fmt.Errorf("unterminated index at offset %d", i)
			}
			ref.segments = append(ref.segments, segment{index: true, indexV: lit})
			i = j + 1
		default:
			break loop
		}
	}
	if braced {
		if i >= len(s) || s[i] != '}' {
			return nil, 0, fmt.Errorf("unterminated ${ at offset %d", i)
		}
		i++
	}
	return ref, i, nil
}

func parseArgs(s string, i int) ([]argument, int, error) {
	var args []argument
	i = skipSpace(s, i)
	if i < len(s) && s[i] == ')' {
		return nil, i + 1, nil
	}
	for {
		i = skipSpace(s, i)
		if i >= len(s) {
			return nil, 0, fmt.Errorf("unterminated call")
		}
		switch {
		case s[i] == '\'' || s[i] == '"':
			lit, j, err := parseString(s, i)
			if err != nil {
				return nil, 0, err
			}
			args = append(args, argument{literal: lit})
			i = j
		case s[i] == '$':
			ref, j, err := parseReference(s, i)
			if err != nil {
				return nil, 0, err
			}
			args = append(args, argument{ref: ref})
			i = j
		default:
			return nil, 0, fmt.Errorf("unexpected %q in argument list at offset %d", s[i], i)
		}
		i = skipSpace(s, i)
		if i >= len(s) {
			return nil, 0, fmt.Errorf("unterminated call")
		}
		if s[i] == ')' {
			return args, i + 1, nil
		}
		if s[i] != ',' {
			return nil, 0, fmt.Errorf("unexpected %q in argument list at offset %d", s[i], i)
		}
		i++
	}
}

func parseString(s string, i int) (string, int, error) {
	if i >= len(s) || (s[i] != '\'' && s[i] != '"') {
		return "", 0, fmt.Errorf("expected string literal at offset %d", i)
	}
	quote := s[i]
	end := strings.IndexByte(s[i+1:], quote)
	if end < 0 {
		return "", 0, fmt.Errorf("unterminated string literal at offset %d", i)
	}
	return s[i+1 : i+1+end], i + 2 + end, nil
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return i
}

// eval returns the rendered value and whether the root is known.
func (r *renderer) eval(ref *reference) (string, bool, error) {
	value, known, err := r.value(ref)
	if err != nil || !known {
		return "", known, err
	}
	return stringify(value), true, nil
}

func (r *renderer) value(ref *reference) (any, bool, error) {
	switch ref.root {
	case "input":
		v, err := r.evalInput(ref.segments)
		return v, true, err
	case "util":
		v, err := r.evalUtil(ref.segments)
		return v, true, err
	case "context":
		return walk(r.context, ref.segments), true, nil
	case "stageVariables":
		vars := make(map[string]any, len(r.stageVariables))
		for k, v := range r.stageVariables {
			vars[k] = v
		}
		return walk(vars, ref.segments), true, nil
	default:
		return nil, false, nil
	}
}

func (r *renderer) arg(a argument) (string, error) {
	if a.ref == nil {
		return a.literal, nil
	}
	v, known, err := r.eval(a.ref)
	if err != nil {
		return "", err
	}
	if !known {
		return "", fmt.Errorf("unknown reference $%s", a.ref.root)
	}
	return v, nil
}

func (r *renderer) evalInput(segs []segment) (any, error) {
	if len(segs) == 0 {
		return nil, nil
	}
	head := segs[0]
	switch {
	case head.name == "body" && !head.call:
		return r.body, nil

	case head.name == "params" && head.call:
		if len(head.args) == 0 {
			all := make(map[string]any, len(r.params))
			for loc, values := range r.params {
				m := make(map[string]any, len(values))
				for k, v := range values {
					m[k] = v
				}
				all[loc] = m
			}
			return walk(all, segs[1:]), nil
		}
		name, err := r.arg(head.args[0])
		if err != nil {
			return nil, err
		}
		for _, loc := range paramLocations {
			if v, ok := r.params[loc][name]; ok {
				return v, nil
			}
		}
		return "", nil

	case (head.name == "path" || head.name == "json") && head.call:
		if len(head.args) != 1 {
			return nil, fmt.Errorf("$input.%s takes one argument", head.name)
		}
		expr, err := r.arg(head.args[0])
		if err != nil {
			return nil, err
		}
		v, err := r.jsonPath(expr)
		if err != nil {
			return nil, err
		}
		if head.name == "json" {
			data, err := json.Marshal(v)
			if err != nil {
				return nil, err
			}
			return string(data), nil
		}
		return v, nil
	}
	return nil, fmt.Errorf("unsupported reference $input.%s", head.name)
}

func (r *renderer) jsonPath(expr string) (any, error) {
	if !r.parseDone {
		r.parseDone = true
		if strings.TrimSpace(r.body) != "" {
			r.parsedErr = json.Unmarshal([]byte(r.body), &r.parsed)
		}
	}
	if r.parsedErr != nil {
		return nil, fmt.Errorf("body is not JSON: %w", r.parsedErr)
	}
	if expr == "$" {
		return r.parsed, nil
	}
	if r.parsed == nil {
		return nil, nil
	}
	v, err := jsonpath.Read(r.parsed, expr)
	if err != nil {
		// A path that selects nothing renders as empty.
		return nil, nil
	}
	return v, nil
}

func (r *renderer) evalUtil(segs []segment) (any, error) {
	if len(segs) == 0 || !segs[0].call || len(segs[0].args) != 1 {
		return nil, fmt.Errorf("$util needs a one-argument function")
	}
	arg, err := r.arg(segs[0].args[0])
	if err != nil {
		return nil, err
	}
	switch segs[0].name {
	case "escapeJavaScript":
		return escapeJavaScript(arg), nil
	case "urlEncode":
		return url.QueryEscape(arg), nil
	case "urlDecode":
		return url.QueryUnescape(arg)
	case "base64Encode":
		return base64.StdEncoding.EncodeToString([]byte(arg)), nil
	case "base64Decode":
		data, err := base64.StdEncoding.DecodeString(arg)
		return string(data), err
	}
	return nil, fmt.Errorf("unsupported function $util.%s", segs[0].name)
}

// walk follows property and index segments through nested maps.
func walk(v any, segs []segment) any {
	for _, seg := range segs {
		m, ok := v.(map[string]any)
		if !ok || seg.call {
			return nil
		}
		key := seg.name
		if seg.index {
			key = seg.indexV
		}
		v = m[key]
	}
	return v
}

// stringify renders a value the way it appears in template output.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+stringify(val[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}

// escapeJavaScript escapes a string for use inside a JavaScript string
// literal, matching the escaping of $util.escapeJavaScript. Single quotes
// are escaped too, which makes the result invalid inside JSON.
func escapeJavaScript(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\'':
			b.WriteString(`\'`)
		case '/':
			b.WriteString(`\/`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			switch {
			case r < 0x20:
				fmt.Fprintf(&b, `\u%04X`, r)
			case r > 0x7f:
				for _, u := range utf16.Encode([]rune{r}) {
					fmt.Fprintf(&b, `\u%04X`, u)
				}
			default:
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}
