package apigw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRenderer(body string) *renderer {
	return &renderer{
		params: map[string]map[string]string{
			"path":        {"id": "7"},
			"querystring": {"name": `Ann "Q"`, "id": "shadowed"},
			"header":      {"x-trace": "abc"},
		},
		context: map[string]any{
			"stage":    "prod",
			"identity": map[string]any{"sourceIp": "10.1.2.3"},
			"authorizer": map[string]any{
				"claims": map[string]any{"sub": "user-1"},
			},
		},
		stageVariables: map[string]string{"color": "blue"},
		body:           body,
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		body string
		want string
	}{
		{"plain text", "no references", "", "no references"},
		{"param from query", "$input.params('name')", "", `Ann "Q"`},
		{"path wins over query", "$input.params('id')", "", "7"},
		{"header param", `$input.params("x-trace")`, "", "abc"},
		{"missing param", "[$input.params('nope')]", "", "[]"},
		{"escaped param", `"$util.escapeJavaScript($input.params('name'))"`, "", `"Ann \"Q\""`},
		{"context", "$context.stage/$context.identity.sourceIp", "", "prod/10.1.2.3"},
		{"braced reference", "${context.stage}x", "", "prodx"},
		{"quiet reference", "$!context.stage", "", "prod"},
		{"claims index", "$context.authorizer.claims['sub']", "", "user-1"},
		{"missing claim", "[$context.authorizer.claims['cognito:username']]", "", "[]"},
		{"stage variable", "$stageVariables.color", "", "blue"},
		{"body", "$input.body", `{"a":1}`, `{"a":1}`},
		{"path string", "$input.path('$.body')", `{"body":"{\"x\":1}"}`, `{"x":1}`},
		{"path number", "$input.path('$.n')", `{"n":42}`, "42"},
		{"path missing", "[$input.path('$.nope')]", `{"n":42}`, "[]"},
		{"json", "$input.json('$.item')", `{"item":{"a":[1,2]}}`, `{"a":[1,2]}`},
		{"json root", "$input.json('$')", `{"a":true}`, `{"a":true}`},
		{"empty body path", "[$input.path('$.a')]", "", "[]"},
		{"url encode", "$util.urlEncode('a b&c')", "", "a+b%26c"},
		{"base64", "$util.base64Encode('hi')", "", "aGk="},
		{"unknown root left as is", "$foo.bar and $", "", "$foo.bar and $"},
		{"dollar amount", "costs $5", "", "costs $5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := testRenderer(tt.body).render(tt.tmpl)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender_Errors(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		body string
	}{
		{"unterminated call", "$input.params('name'", ""},
		{"unterminated string", "$input.params('name)", ""},
		{"unterminated brace", "${context.stage", ""},
		{"unknown util", "$util.shout('x')", ""},
		{"unknown input", "$input.headers", ""},
		{"body not json", "$input.path('$.a')", "not json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testRenderer(tt.body).render(tt.tmpl)
			assert.Error(t, err)
		})
	}
}

func TestEscapeJavaScript(t *testing.T) {
	assert.Equal(t, `it\'s \"quoted\"`, escapeJavaScript(`it's "quoted"`))
	assert.Equal(t, `a\\b\/c`, escapeJavaScript(`a\b/c`))
	assert.Equal(t, `line\nbreak\ttab`, escapeJavaScript("line\nbreak\ttab"))
	assert.Equal(t, `\u0001`, escapeJavaScript("\x01"))
	assert.Equal(t, `caf\u00E9`, escapeJavaScript("café"))
	assert.Equal(t, `\uD83D\uDE00`, escapeJavaScript("😀"))
}
