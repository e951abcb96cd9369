package theme

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/codegene/devproxy/pkg/shared/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var brand = Overrides{
	ModifyVars:        map[string]string{"@primary-color": "rgb(45,120,213)"},
	JavascriptEnabled: true,
}

func TestOverrides_Validate(t *testing.T) {
	tests := []struct {
		name        string
		overrides   Overrides
		errContains string
	}{
		{name: "brand override", overrides: brand},
		{name: "no overrides", overrides: Overrides{}},
		{
			name:        "missing @",
			overrides:   Overrides{ModifyVars: map[string]string{"primary-color": "red"}},
			errContains: "invalid variable name",
		},
		{
			name:        "empty value",
			overrides:   Overrides{ModifyVars: map[string]string{"@primary-color": "  "}},
			errContains: "is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.overrides.Validate()
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestOverrides_Preamble(t *testing.T) {
	o := Overrides{ModifyVars: map[string]string{
		"@primary-color": "rgb(45,120,213)",
		"@border-radius": " 4px ",
	}}

	assert.Equal(t, "@border-radius: 4px;\n@primary-color: rgb(45,120,213);\n", o.Preamble())
}

func TestOverrides_Apply(t *testing.T) {
	src := "@primary-color: #1890ff;\n.btn { color: @primary-color; }"

	out, err := brand.Apply(src)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, src))
	assert.True(t, strings.HasSuffix(out, "@primary-color: rgb(45,120,213);\n"))
}

func TestOverrides_ApplyWithoutOverrides(t *testing.T) {
	src := ".btn { color: red; }"
	out, err := Overrides{}.Apply(src)
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestOverrides_CompileResolvesPrimaryColor(t *testing.T) {
	src := `@primary-color: #1890ff;
@link-color: @primary-color;
a { color: @link-color; }
.btn { background: @primary-color; }
`

	out, err := brand.Compile(src)
	require.NoError(t, err)

	assert.Equal(t, "a { color: rgb(45,120,213); }\n.btn { background: rgb(45,120,213); }\n", out)
	assert.NotContains(t, out, "@primary-color")
	assert.NotContains(t, out, "#1890ff")
}

func TestOverrides_CompileWithoutOverridesKeepsSourceValue(t *testing.T) {
	out, err := Overrides{}.Compile("@c: #1890ff;\na { color: @c; }")
	require.NoError(t, err)
	assert.Equal(t, "a { color: #1890ff; }", out)
}

func TestOverrides_CompileOverrideOnlyVariable(t *testing.T) {
	out, err := brand.Compile("a { color: @primary-color; }")
	require.NoError(t, err)
	assert.Equal(t, "a { color: rgb(45,120,213); }", out)
}

func TestOverrides_CompileKeepsAtRules(t *testing.T) {
	src := "@import \"base.css\";\n@media screen { a { color: @primary-color; } }"

	out, err := brand.Compile(src)
	require.NoError(t, err)
	assert.Equal(t, "@import \"base.css\";\n@media screen { a { color: rgb(45,120,213); } }", out)
}

func TestOverrides_CompileLastDeclarationWins(t *testing.T) {
	out, err := Overrides{}.Compile("@c: red;\n@c: blue;\na { color: @c; }")
	require.NoError(t, err)
	assert.Equal(t, "a { color: blue; }", out)
}

func TestOverrides_CompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{name: "undefined reference", src: "@a: @missing;\nx { y: @a; }", want: ErrUndefinedVariable},
		{name: "cycle", src: "@a: @b;\n@b: @a;\nx { y: @a; }", want: ErrRecursiveVariable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Overrides{}.Compile(tt.src)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOverrides_CompileUndefinedReference(t *testing.T) {
	tests := []string{
		"a { color: @nope; }\n",
		"a { color: @nope }",
		"a { border: 1px solid @nope; }",
		"a { color: fade(@nope, 50%); }",
		"a { font-family: @nope, sans-serif; }",
	}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			_, err := Overrides{}.Compile(src)
			assert.ErrorIs(t, err, ErrUndefinedVariable)
		})
	}
}

func TestOverrides_CompileKeepsUnknownAtRules(t *testing.T) {
	src := "@font-face { font-family: x; }\n@media print { a { color: @primary-color; } }\n@import url(base.css);"

	out, err := brand.Compile(src)
	require.NoError(t, err)
	assert.Equal(t, "@font-face { font-family: x; }\n@media print { a { color: rgb(45,120,213); } }\n@import url(base.css);", out)
}

func TestOverrides_LineComments(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "apostrophe in comment",
			src:  "// don't touch\n@primary-color: blue;\na { color: @primary-color; }",
			want: "\na { color: rgb(45,120,213); }",
		},
		{
			name: "commented out declaration",
			src:  "// @primary-color: green;\na { color: @primary-color; }",
			want: "\na { color: rgb(45,120,213); }",
		},
		{
			name: "trailing comment",
			src:  "a { color: @primary-color; } // brand color\nb { margin: 0; }",
			want: "a { color: rgb(45,120,213); } \nb { margin: 0; }",
		},
		{
			name: "url and strings untouched",
			src:  "a { background: url(http://cdn.example.com/x.png); content: \"//\"; }",
			want: "a { background: url(http://cdn.example.com/x.png); content: \"//\"; }",
		},
		{
			name: "block comment kept",
			src:  "/* see http://example.com */\na { color: @primary-color; }",
			want: "/* see http://example.com */\na { color: rgb(45,120,213); }",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := brand.Compile(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestOverrides_BacktickInCommentIsNotJavascript(t *testing.T) {
	src := "// use `x` here\na { color: red; }"
	noJS := Overrides{ModifyVars: brand.ModifyVars}

	out, err := noJS.Compile(src)
	require.NoError(t, err)
	assert.Equal(t, "\na { color: red; }", out)

	applied, err := noJS.Apply(src)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(applied, src))
}

func TestAssetHandler_LessWithComments(t *testing.T) {
	root := fstest.MapFS{"app.less": {Data: []byte("// don't remove the brand color\n@primary-color: #1890ff;\n.btn { color: @primary-color; }\n")}}
	h := NewAssetHandler(http.FS(root), func() Overrides { return brand }, logging.NewTestLogger())

	for _, path := range []string{"/app.less", "/app.css"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestOverrides_InlineJavascript(t *testing.T) {
	src := "@height: `document.body.clientHeight`;\n.box { height: @height; }"

	_, err := Overrides{}.Apply(src)
	assert.ErrorIs(t, err, ErrInlineJavascript)

	_, err = Overrides{}.Compile(src)
	assert.ErrorIs(t, err, ErrInlineJavascript)

	out, err := brand.Apply(src)
	require.NoError(t, err)
	assert.Contains(t, out, "`document.body.clientHeight`")
}

func newAssetHandler() *AssetHandler {
	root := fstest.MapFS{
		"styles/app.less":  {Data: []byte("@primary-color: #1890ff;\n.btn { color: @primary-color; }\n")},
		"styles/plain.css": {Data: []byte("body { margin: 0; }")},
		"app.js":           {Data: []byte("console.log(1)")},
	}
	return NewAssetHandler(http.FS(root), func() Overrides { return brand }, logging.NewTestLogger())
}

func TestAssetHandler(t *testing.T) {
	h := newAssetHandler()

	tests := []struct {
		name        string
		path        string
		wantStatus  int
		wantBody    string
		contentType string
	}{
		{
			name:        "less with overrides appended",
			path:        "/styles/app.less",
			wantStatus:  http.StatusOK,
			wantBody:    "@primary-color: rgb(45,120,213);\n",
			contentType: "text/less",
		},
		{
			name:        "css compiled from less",
			path:        "/styles/app.css",
			wantStatus:  http.StatusOK,
			wantBody:    ".btn { color: rgb(45,120,213); }",
			contentType: "text/css",
		},
		{
			name:       "existing css served as is",
			path:       "/styles/plain.css",
			wantStatus: http.StatusOK,
			wantBody:   "body { margin: 0; }",
		},
		{
			name:       "other static file",
			path:       "/app.js",
			wantStatus: http.StatusOK,
			wantBody:   "console.log(1)",
		},
		{
			name:       "missing less",
			path:       "/styles/missing.less",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "missing css without less source",
			path:       "/styles/missing.css",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
			if tt.contentType != "" {
				assert.Contains(t, rec.Header().Get("Content-Type"), tt.contentType)
			}
		})
	}
}

func TestAssetHandler_CompileError(t *testing.T) {
	root := fstest.MapFS{"bad.less": {Data: []byte("@a: @b;\n@b: @a;\nx { y: @a; }")}}
	h := NewAssetHandler(http.FS(root), func() Overrides { return Overrides{} }, logging.NewTestLogger())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bad.css", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "recursive variable")
}
