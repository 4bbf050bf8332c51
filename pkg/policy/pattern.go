package policy

import (
	"errors"
	"regexp"
	"strings"
)

// compilePattern turns a whitelist entry into a matcher. Entries are globs
// by default; a "regex:"/"regexp:" prefix switches to raw regular
// expressions.
func compilePattern(pattern string) (func(string) bool, error) {
	trimmed := strings.TrimSpace(pattern)
	if trimmed == "" {
		return nil, errors.New("empty pattern")
	}

	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "regex:") || strings.HasPrefix(lower, "regexp:") {
		expr := strings.TrimSpace(trimmed[strings.Index(trimmed, ":")+1:])
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, err
		}
		return re.MatchString, nil
	}

	re, err := regexp.Compile("^" + globToRegex(trimmed) + "$")
	if err != nil {
		return nil, err
	}
	return re.MatchString, nil
}

func globToRegex(glob string) string {
	var b strings.Builder
	for i := 0; i < len(glob); i++ {
		switch glob[i] {
		case '*':
			if i+1 < len(glob) && glob[i+1] == '*' {
				i++
			}
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '.', '+', '(', ')', '|', '^', '$', '{', '}', '[', ']', '\\':
			b.WriteString("\\")
			b.WriteByte(glob[i])
		default:
			b.WriteByte(glob[i])
		}
	}
	return b.String()
}
