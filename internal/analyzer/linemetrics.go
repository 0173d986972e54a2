// Package analyzer contains the analyzers bundled with scancache.
package analyzer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// LineMetricsName is the analyzer name and cache category.
	LineMetricsName = "codeQuality"

	// LineMetricsVersion changes whenever Metrics output changes.
	LineMetricsVersion = "1.0.0"

	// indentWidth is the number of spaces counted as one nesting level.
	indentWidth = 4
)

// Metrics describes the shape of a source file.
type Metrics struct {
	Language string `json:"language"`
	Lines    int    `json:"lines"`
	Blank    int    `json:"blank"`
	Comment  int    `json:"comment"`
	Code     int    `json:"code"`
	MaxDepth int    `json:"maxDepth"`
	Todos    int    `json:"todos"`
}

// syntax describes how to recognize comments and nesting for a language.
type syntax struct {
	name        string
	lineComment []string
	blockStart  string
	blockEnd    string
	// indented languages measure nesting from leading whitespace instead of braces.
	indented bool
}

var (
	cFamily = syntax{
		name:        "c-family",
		lineComment: []string{"//"},
		blockStart:  "/*",
		blockEnd:    "*/",
	}
	hashFamily = syntax{
		name:        "hash",
		lineComment: []string{"#"},
		indented:    true,
	}
	plainText = syntax{
		name:        "text",
		lineComment: []string{"//", "#"},
	}
)

var syntaxByExt = map[string]syntax{
	".go":    withName(cFamily, "go"),
	".c":     withName(cFamily, "c"),
	".h":     withName(cFamily, "c"),
	".cc":    withName(cFamily, "cpp"),
	".cpp":   withName(cFamily, "cpp"),
	".hpp":   withName(cFamily, "cpp"),
	".java":  withName(cFamily, "java"),
	".js":    withName(cFamily, "javascript"),
	".jsx":   withName(cFamily, "javascript"),
	".mjs":   withName(cFamily, "javascript"),
	".ts":    withName(cFamily, "typescript"),
	".tsx":   withName(cFamily, "typescript"),
	".rs":    withName(cFamily, "rust"),
	".cs":    withName(cFamily, "csharp"),
	".swift": withName(cFamily, "swift"),
	".kt":    withName(cFamily, "kotlin"),
	".py":    withName(hashFamily, "python"),
	".rb":    withName(hashFamily, "ruby"),
	".sh":    withName(hashFamily, "shell"),
	".yaml":  withName(hashFamily, "yaml"),
	".yml":   withName(hashFamily, "yaml"),
}

func withName(s syntax, name string) syntax {
	s.name = name
	return s
}

// Supports reports whether path has an extension with known comment syntax.
// Directory walks use it to skip data and binary files.
func Supports(path string) bool {
	_, ok := syntaxByExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

func syntaxFor(path string) syntax {
	if s, ok := syntaxByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return s
	}
	return plainText
}

// LineMetrics counts blank, comment and code lines, TODO/FIXME markers and
// the deepest nesting level of a file.
type LineMetrics struct{}

// NewLineMetrics returns the line metrics analyzer.
func NewLineMetrics() *LineMetrics {
	return &LineMetrics{}
}

// Name implements engine.Analyzer.
func (*LineMetrics) Name() string { return LineMetricsName }

// Version implements engine.Analyzer.
func (*LineMetrics) Version() string { return LineMetricsVersion }

// Analyze implements engine.Analyzer.
func (*LineMetrics) Analyze(_ context.Context, path string, src []byte) (json.RawMessage, error) {
	m, err := Measure(path, src)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding metrics: %w", err)
	}
	return out, nil
}

// Measure computes Metrics for src. The language is picked from the path
// extension.
func Measure(path string, src []byte) (Metrics, error) {
	syn := syntaxFor(path)
	m := Metrics{Language: syn.name}

	scanner := bufio.NewScanner(bytes.NewReader(src))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	inBlock := false
	depth := 0
	for scanner.Scan() {
		line := scanner.Text()
		m.Lines++

		if strings.Contains(line, "TODO") || strings.Contains(line, "FIXME") {
			m.Todos++
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			m.Blank++
			continue
		}

		code, isComment := syn.stripComments(trimmed, &inBlock)
		if isComment {
			m.Comment++
			continue
		}
		m.Code++

		if syn.indented {
			m.MaxDepth = max(m.MaxDepth, indentLevel(line))
			continue
		}
		for _, r := range code {
			switch r {
			case '{':
				depth++
				m.MaxDepth = max(m.MaxDepth, depth)
			case '}':
				depth = max(depth-1, 0)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return Metrics{}, fmt.Errorf("scanning %s: %w", path, err)
	}
	return m, nil
}

// stripComments removes comment text from a trimmed line and reports whether
// nothing but comments remained. inBlock carries block comment state across
// lines.
func (s syntax) stripComments(line string, inBlock *bool) (string, bool) {
	var code strings.Builder
	rest := line
	for rest != "" {
		if *inBlock {
			end := strings.Index(rest, s.blockEnd)
			if end < 0 {
				rest = ""
				break
			}
			rest = rest[end+len(s.blockEnd):]
			*inBlock = false
			continue
		}

		cut := len(rest)
		startsBlock := false
		if s.blockStart != "" {
			if i := strings.Index(rest, s.blockStart); i >= 0 {
				cut = i
				startsBlock = true
			}
		}
		for _, marker := range s.lineComment {
			if i := strings.Index(rest, marker); i >= 0 && i < cut {
				cut = i
				startsBlock = false
			}
		}

		code.WriteString(rest[:cut])
		if cut == len(rest) {
			break
		}
		if !startsBlock {
			break
		}
		*inBlock = true
		rest = rest[cut+len(s.blockStart):]
	}

	remaining := code.String()
	return remaining, strings.TrimSpace(remaining) == ""
}

// indentLevel converts leading whitespace to a nesting level. A tab counts as
// one level.
func indentLevel(line string) int {
	level, spaces := 0, 0
	for _, r := range line {
		switch r {
		case '\t':
			level++
		case ' ':
			spaces++
		default:
			return level + spaces/indentWidth
		}
	}
	return level + spaces/indentWidth
}
