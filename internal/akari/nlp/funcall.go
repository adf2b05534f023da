package nlp

// funcall.go parses the single-call grammar the extractor prompt asks for:
//
//	tool_name(argument="value", other='value', count=3)
//
// Models drift from output contracts in predictable ways, so the parser is
// deliberately tolerant: code fences and surrounding prose are skipped,
// values may be double-quoted, single-quoted, or bare, and a trailing comma
// before the closing parenthesis is accepted. What it never does is guess:
// anything that does not scan as name(key=value, ...) is an error and the
// caller falls back to heuristic extraction.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mkoriyama/Akari/internal/akari/intent"
)

// ErrNoFunctionCall is returned when the model output contains nothing that
// parses as a function call.
var ErrNoFunctionCall = errors.New("nlp: no function call in model output")

// ParseFunctionCall extracts the first well-formed function call from raw
// model output. The tool name is not checked against the catalogue here;
// that is the caller's job.
func ParseFunctionCall(raw string) (*intent.FunctionCall, error) {
	s := cleanModelOutput(raw)
	if s == "" {
		return nil, ErrNoFunctionCall
	}

	for i := 0; i < len(s); i++ {
		if !isIdentStart(s[i]) {
			continue
		}
		if i > 0 && isIdentByte(s[i-1]) {
			continue
		}
		j := i
		for j < len(s) && isIdentByte(s[j]) {
			j++
		}
		k := skipSpace(s, j)
		if k >= len(s) || s[k] != '(' {
			i = j - 1
			continue
		}
		args, err := parseArgs(s, k+1)
		if err != nil {
			// Not a call after all (prose with parentheses); keep scanning.
			i = j - 1
			continue
		}
		return &intent.FunctionCall{Name: s[i:j], Arguments: args}, nil
	}
	return nil, fmt.Errorf("%w: %.120q", ErrNoFunctionCall, s)
}

// cleanModelOutput trims whitespace and, when the output arrives wrapped in
// a markdown code fence, unwraps it and drops an optional language tag.
// Fences appearing later in the text are left alone so quoted values keep
// their bytes.
func cleanModelOutput(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	rest := s[3:]
	end := strings.Index(rest, "```")
	if end < 0 {
		return strings.TrimSpace(rest)
	}
	body := rest[:end]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(body[:nl])
		if firstLine != "" && !strings.ContainsAny(firstLine, "(=") {
			body = body[nl+1:]
		}
	}
	return strings.TrimSpace(body)
}

// parseArgs scans key=value pairs from pos until the closing parenthesis.
func parseArgs(s string, pos int) (map[string]string, error) {
	args := make(map[string]string)
	i := skipSpace(s, pos)
	for {
		if i >= len(s) {
			return nil, errors.New("unterminated argument list")
		}
		if s[i] == ')' {
			return args, nil
		}

		// Argument name.
		if !isIdentStart(s[i]) {
			return nil, fmt.Errorf("expected argument name at offset %d", i)
		}
		j := i
		for j < len(s) && isIdentByte(s[j]) {
			j++
		}
		key := s[i:j]

		i = skipSpace(s, j)
		if i >= len(s) || s[i] != '=' {
			return nil, fmt.Errorf("expected '=' after %q", key)
		}
		i = skipSpace(s, i+1)
		if i >= len(s) {
			return nil, fmt.Errorf("missing value for %q", key)
		}

		var (
			val string
			err error
		)
		switch s[i] {
		case '"', '\'':
			val, i, err = scanQuoted(s, i)
		default:
			val, i, err = scanBare(s, i)
		}
		if err != nil {
			return nil, fmt.Errorf("value for %q: %w", key, err)
		}
		args[key] = val

		i = skipSpace(s, i)
		if i < len(s) && s[i] == ',' {
			i = skipSpace(s, i+1)
			continue
		}
		if i < len(s) && s[i] == ')' {
			return args, nil
		}
		return nil, fmt.Errorf("expected ',' or ')' after value of %q", key)
	}
}

// scanQuoted reads a quoted value starting at the opening quote. Backslash
// escapes the next byte.
func scanQuoted(s string, pos int) (string, int, error) {
	quote := s[pos]
	var b strings.Builder
	i := pos + 1
	for i < len(s) {
		c := s[i]
		switch c {
		case '\\':
			if i+1 < len(s) {
				b.WriteByte(s[i+1])
				i += 2
				continue
			}
			return "", 0, errors.New("dangling escape")
		case quote:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(c)
			i++
		}
	}
	return "", 0, errors.New("unterminated quoted value")
}

// scanBare reads an unquoted value up to the next comma or closing
// parenthesis. Bare values cannot contain either character; models that
// need them are expected to quote, as instructed.
func scanBare(s string, pos int) (string, int, error) {
	i := pos
	for i < len(s) && s[i] != ',' && s[i] != ')' {
		i++
	}
	if i >= len(s) {
		return "", 0, errors.New("unterminated bare value")
	}
	val := strings.TrimSpace(s[pos:i])
	if val == "" {
		return "", 0, errors.New("empty bare value")
	}
	return val, i, nil
}

func skipSpace(s string, pos int) int {
	for pos < len(s) {
		switch s[pos] {
		case ' ', '\t', '\r', '\n':
			pos++
		default:
			return pos
		}
	}
	return pos
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
