package inject

import (
	"regexp"
	"sort"
	"strings"
)

// fragmentKeywords are the structural words of the fragment convention.
// They are never treated as external references.
var fragmentKeywords = map[string]struct{}{
	"if": {}, "else": {}, "for": {}, "while": {}, "switch": {}, "case": {},
	"default": {}, "end": {}, "return": {}, "break": {}, "continue": {},
	"in": {}, "and": {}, "or": {}, "not": {}, "true": {}, "false": {},
	"nil": {}, "null": {}, "var": {}, "let": {}, "const": {},
}

var identPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*`)

// FreeIdentifiers returns the sorted, deduplicated root identifiers a
// fragment references without binding them locally. A name is locally bound
// when it appears as an assignment target or as a loop variable before use.
// Dotted chains report their root segment: resolving the owner resolves the
// member access.
func FreeIdentifiers(fragment string) []string {
	locals := localBindings(fragment)

	seen := make(map[string]struct{})
	var free []string
	for _, line := range fragmentLines(fragment) {
		for _, tok := range identPattern.FindAllString(stripLiterals(line), -1) {
			root := tok
			if i := strings.IndexByte(tok, '.'); i > 0 {
				root = tok[:i]
			}
			if _, ok := fragmentKeywords[root]; ok {
				continue
			}
			if _, ok := locals[root]; ok {
				continue
			}
			if _, ok := seen[root]; ok {
				continue
			}
			seen[root] = struct{}{}
			free = append(free, root)
		}
	}
	sort.Strings(free)
	return free
}

// Identifiers returns every non-keyword root identifier in the fragment,
// bound or not, sorted and deduplicated.
func Identifiers(fragment string) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, line := range fragmentLines(fragment) {
		for _, tok := range identPattern.FindAllString(stripLiterals(line), -1) {
			root := tok
			if i := strings.IndexByte(tok, '.'); i > 0 {
				root = tok[:i]
			}
			if _, ok := fragmentKeywords[root]; ok {
				continue
			}
			if _, ok := seen[root]; ok {
				continue
			}
			seen[root] = struct{}{}
			ids = append(ids, root)
		}
	}
	sort.Strings(ids)
	return ids
}

// AssignedIdentifiers returns the names the fragment binds through plain
// assignments, sorted and deduplicated. Dotted targets mutate an existing
// value and do not count.
func AssignedIdentifiers(fragment string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, line := range fragmentLines(fragment) {
		target, ok := assignmentTarget(stripLiterals(line))
		if !ok {
			continue
		}
		if _, dup := seen[target]; dup {
			continue
		}
		seen[target] = struct{}{}
		names = append(names, target)
	}
	sort.Strings(names)
	return names
}

// localBindings collects names the fragment binds itself: assignment
// targets and loop variables.
func localBindings(fragment string) map[string]struct{} {
	locals := make(map[string]struct{})
	for _, line := range fragmentLines(fragment) {
		line = stripLiterals(line)

		if target, ok := assignmentTarget(line); ok {
			locals[target] = struct{}{}
			continue
		}

		// "for item in items {" binds item.
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "for ") {
			rest := strings.TrimPrefix(trimmed, "for ")
			if idx := strings.Index(rest, " in "); idx > 0 {
				name := strings.TrimSpace(rest[:idx])
				if identPattern.MatchString(name) && !strings.Contains(name, ".") {
					locals[name] = struct{}{}
				}
			}
		}
	}
	return locals
}

// assignmentTarget returns the left-hand identifier of a simple assignment
// line, if the line is one. Comparison operators do not count.
func assignmentTarget(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	for _, kw := range []string{"if ", "for ", "while ", "switch ", "return "} {
		if strings.HasPrefix(trimmed, kw) {
			return "", false
		}
	}

	idx := strings.Index(trimmed, "=")
	for idx > 0 {
		prev := trimmed[idx-1]
		next := byte(0)
		if idx+1 < len(trimmed) {
			next = trimmed[idx+1]
		}
		// Skip ==, !=, <=, >= and the tail of :=.
		if next == '=' || prev == '!' || prev == '<' || prev == '>' {
			rest := strings.Index(trimmed[idx+1:], "=")
			if rest < 0 {
				return "", false
			}
			idx = idx + 1 + rest
			continue
		}
		lhs := strings.TrimSpace(strings.TrimSuffix(trimmed[:idx], ":"))
		// Dotted targets mutate an existing value, they do not bind.
		if lhs == "" || strings.Contains(lhs, ".") || !identPattern.MatchString(lhs) {
			return "", false
		}
		if identPattern.FindString(lhs) != lhs {
			return "", false
		}
		return lhs, true
	}
	return "", false
}

// stripLiterals blanks out double-quoted strings and trailing comments so
// their contents are not scanned for identifiers.
func stripLiterals(line string) string {
	var b strings.Builder
	inString := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c == '"' {
			inString = !inString
			b.WriteByte(' ')
			continue
		}
		if inString {
			b.WriteByte(' ')
			continue
		}
		if c == '/' && i+1 < len(line) && line[i+1] == '/' {
			break
		}
		b.WriteByte(c)
	}
	return b.String()
}

// fragmentLines splits a fragment into trimmed lines, dropping blanks.
func fragmentLines(fragment string) []string {
	raw := strings.Split(fragment, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}
