package risk

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

const maxCommandBytes = 4096

var (
	errUnfinishedEscape  = errors.New("risk: unfinished escape sequence")
	errUnterminatedQuote = errors.New("risk: unterminated quote")
)

// Classifier assigns a risk level to arbitrary shell command strings.
// It is stateless and safe for concurrent use.
type Classifier struct{}

// NewClassifier returns a ready-to-use classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify determines the risk of a command. It never fails: empty input is
// Safe, unparseable input degrades to Dangerous, and anything unmatched
// defaults to Caution rather than Safe.
func (c *Classifier) Classify(command string) CommandRisk {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return CommandRisk{Level: Safe, Reason: "no-op"}
	}

	// Blocked patterns win over everything, including parse failures.
	for _, p := range blockedPatterns {
		if p.re.MatchString(trimmed) {
			return CommandRisk{
				Level:          Blocked,
				Reason:         p.reason,
				MatchedPattern: p.re.String(),
				Suggestions:    p.suggestions,
			}
		}
	}

	if len(trimmed) > maxCommandBytes {
		return CommandRisk{Level: Dangerous, Reason: "command exceeds size limit"}
	}
	if containsControl(trimmed) {
		return CommandRisk{Level: Dangerous, Reason: "control characters detected"}
	}

	stage := firstPipelineStage(trimmed)
	tokens, err := splitCommand(stage)
	if err != nil {
		return CommandRisk{Level: Dangerous, Reason: "unable to parse command structure"}
	}
	tokens = stripAssignments(tokens)
	if len(tokens) == 0 {
		return CommandRisk{Level: Safe, Reason: "no-op"}
	}

	for _, p := range dangerousPatterns {
		if p.re.MatchString(trimmed) {
			return CommandRisk{
				Level:          Dangerous,
				Reason:         p.reason,
				MatchedPattern: p.re.String(),
				Suggestions:    p.suggestions,
			}
		}
	}

	base := filepath.Base(firstNonFlag(tokens))
	if cr, ok := flagDanger(base, tokens); ok {
		return cr
	}

	if _, ok := readOnlyCommands[base]; ok {
		return CommandRisk{Level: Safe, Reason: "read-only inspection command"}
	}

	normalized := strings.Join(tokens, " ")
	for _, p := range safePatterns {
		if p.re.MatchString(normalized) {
			return CommandRisk{Level: Safe, Reason: p.reason, MatchedPattern: p.re.String()}
		}
	}
	for _, p := range cautionPatterns {
		if p.re.MatchString(normalized) {
			return CommandRisk{
				Level:          Caution,
				Reason:         p.reason,
				MatchedPattern: p.re.String(),
				Suggestions:    p.suggestions,
			}
		}
	}

	return CommandRisk{Level: Caution, Reason: "unknown command, defaulting to caution"}
}

// flagDanger covers flag combinations the regex tables cannot express:
// recursive/forced rm against system paths or wildcards, recursive
// ownership or permission changes under system paths, and SIGKILL.
func flagDanger(base string, tokens []string) (CommandRisk, bool) {
	flags, args := splitFlags(tokens[1:])

	switch base {
	case "rm":
		recursive := hasFlagLetter(flags, 'r') || hasFlagLetter(flags, 'R')
		forced := hasFlagLetter(flags, 'f')
		if !recursive && !forced {
			return CommandRisk{}, false
		}
		for _, arg := range args {
			if strings.ContainsRune(arg, '*') {
				return CommandRisk{
					Level:       Dangerous,
					Reason:      "recursive or forced rm with a wildcard target",
					Suggestions: []string{"list the matching files first"},
				}, true
			}
			if isSystemPath(arg) || isRootLevel(arg) {
				return CommandRisk{
					Level:       Dangerous,
					Reason:      "recursive or forced rm against a system path",
					Suggestions: []string{"double-check the target path"},
				}, true
			}
		}
	case "chmod", "chown", "chgrp":
		if !hasFlagLetter(flags, 'R') {
			return CommandRisk{}, false
		}
		for _, arg := range args {
			if isSystemPath(arg) {
				return CommandRisk{
					Level:  Dangerous,
					Reason: "recursive " + base + " under a system path",
				}, true
			}
		}
	case "kill", "killall", "pkill":
		for _, f := range flags {
			if f == "-9" || strings.EqualFold(f, "-SIGKILL") || strings.EqualFold(f, "-s SIGKILL") {
				return CommandRisk{
					Level:       Dangerous,
					Reason:      "forced process termination",
					Suggestions: []string{"try SIGTERM first"},
				}, true
			}
		}
	}
	return CommandRisk{}, false
}

func splitFlags(tokens []string) (flags, args []string) {
	for _, tok := range tokens {
		if strings.HasPrefix(tok, "-") && tok != "-" {
			flags = append(flags, tok)
		} else {
			args = append(args, tok)
		}
	}
	return flags, args
}

func hasFlagLetter(flags []string, letter rune) bool {
	for _, f := range flags {
		if strings.HasPrefix(f, "--") {
			continue
		}
		if strings.ContainsRune(f[1:], letter) {
			return true
		}
	}
	return false
}

func isSystemPath(p string) bool {
	clean := filepath.Clean(p)
	for _, root := range systemPaths {
		if clean == root || strings.HasPrefix(clean, root+"/") {
			return true
		}
	}
	return false
}

// isRootLevel reports whether the path names the filesystem root or one of
// its immediate children.
func isRootLevel(p string) bool {
	clean := filepath.Clean(p)
	if !strings.HasPrefix(clean, "/") {
		return false
	}
	return strings.Count(clean, "/") <= 1
}

var assignmentRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=`)

// stripAssignments drops leading FOO=bar environment assignments.
func stripAssignments(tokens []string) []string {
	i := 0
	for i < len(tokens) && assignmentRe.MatchString(tokens[i]) {
		i++
	}
	return tokens[i:]
}

func firstNonFlag(tokens []string) string {
	for _, tok := range tokens {
		if !strings.HasPrefix(tok, "-") {
			return tok
		}
	}
	return tokens[0]
}

// firstPipelineStage cuts the command at the first unquoted pipe so only
// the producing stage is classified by the structural checks.
func firstPipelineStage(input string) string {
	var inSingle, inDouble, escape bool
	for i, r := range input {
		switch {
		case escape:
			escape = false
		case r == '\\' && !inSingle:
			escape = true
		case r == '\'' && !inDouble:
			inSingle = !inSingle
		case r == '"' && !inSingle:
			inDouble = !inDouble
		case r == '|' && !inSingle && !inDouble:
			return strings.TrimSpace(input[:i])
		}
	}
	return input
}

// splitCommand tokenises a shell command with quote awareness.
func splitCommand(input string) ([]string, error) {
	var (
		args               []string
		current            strings.Builder
		inSingle, inDouble bool
		escape             bool
	)

	flush := func() {
		if current.Len() == 0 {
			return
		}
		args = append(args, current.String())
		current.Reset()
	}

	for _, r := range input {
		switch {
		case escape:
			current.WriteRune(r)
			escape = false
		case r == '\\':
			if inSingle {
				current.WriteRune(r)
				continue
			}
			escape = true
		case r == '\'':
			if inDouble {
				current.WriteRune(r)
				continue
			}
			inSingle = !inSingle
		case r == '"':
			if inSingle {
				current.WriteRune(r)
				continue
			}
			inDouble = !inDouble
		case unicode.IsSpace(r):
			if inSingle || inDouble {
				current.WriteRune(r)
			} else {
				flush()
			}
		default:
			current.WriteRune(r)
		}
	}

	if escape {
		return nil, errUnfinishedEscape
	}
	if inSingle || inDouble {
		return nil, errUnterminatedQuote
	}
	flush()
	return args, nil
}

func containsControl(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return true
		}
	}
	return false
}
