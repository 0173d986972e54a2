package analyzer

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeasure(t *testing.T) {
	tests := []struct {
		name string
		path string
		src  string
		want Metrics
	}{
		{
			name: "empty file",
			path: "empty.go",
			src:  "",
			want: Metrics{Language: "go"},
		},
		{
			name: "go with comments and nesting",
			path: "main.go",
			src: `package main

// main is the entry point.
func main() {
	/* block
	   comment */
	for i := 0; i < 3; i++ {
		if i > 1 { // TODO: remove
			println(i)
		}
	}
}
`,
			want: Metrics{
				Language: "go",
				Lines:    12,
				Blank:    1,
				Comment:  3,
				Code:     8,
				MaxDepth: 3,
				Todos:    1,
			},
		},
		{
			name: "code after block comment on same line",
			path: "x.ts",
			src:  "/* header */ const x = 1;\n/* only */\n",
			want: Metrics{Language: "typescript", Lines: 2, Comment: 1, Code: 1},
		},
		{
			name: "python uses indentation",
			path: "app.py",
			src: `# FIXME: slow
def f(xs):
    for x in xs:
        if x:
            return x

    return None
`,
			want: Metrics{
				Language: "python",
				Lines:    7,
				Blank:    1,
				Comment:  1,
				Code:     5,
				MaxDepth: 3,
				Todos:    1,
			},
		},
		{
			name: "tabs count as one level",
			path: "run.sh",
			src:  "if true; then\n\t\techo hi\nfi\n",
			want: Metrics{Language: "shell", Lines: 3, Code: 3, MaxDepth: 2},
		},
		{
			name: "unknown extension accepts both comment styles",
			path: "notes.txt",
			src:  "# heading\n// note\ntext\n",
			want: Metrics{Language: "text", Lines: 3, Comment: 2, Code: 1},
		},
		{
			name: "unbalanced closing braces do not go negative",
			path: "a.c",
			src:  "}\n}\n{\n",
			want: Metrics{Language: "c", Lines: 3, Code: 3, MaxDepth: 1},
		},
		{
			name: "no trailing newline",
			path: "a.go",
			src:  "package a",
			want: Metrics{Language: "go", Lines: 1, Code: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Measure(tt.path, []byte(tt.src))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.Lines, got.Blank+got.Comment+got.Code)
		})
	}
}

func TestMeasure_LineTooLong(t *testing.T) {
	src := strings.Repeat("x", 2*1024*1024)
	_, err := Measure("big.go", []byte(src))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "big.go")
}

func TestLineMetrics_Analyze(t *testing.T) {
	a := NewLineMetrics()
	assert.Equal(t, LineMetricsName, a.Name())
	assert.Equal(t, LineMetricsVersion, a.Version())

	out, err := a.Analyze(context.Background(), "lib.rs", []byte("fn main() {\n}\n"))
	require.NoError(t, err)

	var m Metrics
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, Metrics{Language: "rust", Lines: 2, Code: 2, MaxDepth: 1}, m)
}

func TestSupports(t *testing.T) {
	assert.True(t, Supports("main.go"))
	assert.True(t, Supports("App.PY"))
	assert.False(t, Supports("logo.png"))
	assert.False(t, Supports("Makefile"))
}
