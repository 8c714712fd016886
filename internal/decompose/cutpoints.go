package decompose

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ShayCichocki/fission/internal/inject"
	"github.com/ShayCichocki/fission/pkg/models"
)

// Work-unit fragments follow a line-oriented, brace-delimited convention:
// one statement per line, a line ending in "{" opens a block and a line
// beginning with "}" closes it. Recognized constructs:
//
//	if <cond> {          branch, optionally chained with "} else {" or
//	                     "} else if <cond> {"
//	for <header> {       loop (also "while <cond> {")
//	name(args)           call statement
//	<target> = <expr>    assignment
//
// Anything else is a plain statement.

// Cut priorities. Lower values are tried first.
const (
	priorityBranch     = 1
	priorityLoop       = 2
	priorityCall       = 3
	priorityAssignment = 4
)

type stmtKind int

const (
	stmtPlain stmtKind = iota
	stmtAssign
	stmtCall
	stmtBranch
	stmtLoop
)

// statement is one top-level statement of a fragment: a single line, or a
// whole brace-delimited construct.
type statement struct {
	kind stmtKind
	span models.Span
}

var callPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*\(.*\)$`)

var callSitePattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_.]*\(`)

var identChain = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// FindCutPoints scans a fragment for candidate split locations, ordered by
// (priority, span start). Callers apply the first cut that yields more than
// one child.
func FindCutPoints(fragment string) []models.CutPoint {
	lines := splitLines(fragment)
	stmts := scanStatements(lines)

	var cuts []models.CutPoint
	multi := len(stmts) > 1
	for _, st := range stmts {
		switch st.kind {
		case stmtBranch:
			cuts = append(cuts, models.CutPoint{
				Span:      st.span,
				Kind:      models.CutKindBranch,
				Priority:  priorityBranch,
				Rationale: "split branch into condition, arms, and merge point",
			})
		case stmtLoop:
			cuts = append(cuts, models.CutPoint{
				Span:      st.span,
				Kind:      models.CutKindLoop,
				Priority:  priorityLoop,
				Rationale: "separate loop control from loop body",
			})
		case stmtCall:
			if multi {
				cuts = append(cuts, models.CutPoint{
					Span:      st.span,
					Kind:      models.CutKindCall,
					Priority:  priorityCall,
					Rationale: "isolate call statement " + strings.TrimSpace(lines[st.span.Start]),
				})
			}
		}
	}

	cuts = append(cuts, groupBoundaryCuts(lines, stmts)...)

	sort.SliceStable(cuts, func(i, j int) bool {
		if cuts[i].Priority != cuts[j].Priority {
			return cuts[i].Priority < cuts[j].Priority
		}
		return cuts[i].Span.Start < cuts[j].Span.Start
	})
	return cuts
}

// groupBoundaryCuts proposes assignment-kind cuts between runs of simple
// statements that share no identifiers; such runs can execute as separate
// atoms. Fragments containing compound constructs are left to the branch
// and loop cuts.
func groupBoundaryCuts(lines []string, stmts []statement) []models.CutPoint {
	if len(stmts) < 2 {
		return nil
	}
	for _, st := range stmts {
		if st.kind == stmtBranch || st.kind == stmtLoop {
			return nil
		}
	}

	var cuts []models.CutPoint
	groupStart := stmts[0].span.Start
	seen := make(map[string]bool)
	addIdents(seen, lines, stmts[0].span)

	for _, st := range stmts[1:] {
		ids := make(map[string]bool)
		addIdents(ids, lines, st.span)
		if disjoint(seen, ids) {
			cuts = append(cuts, models.CutPoint{
				Span:      models.Span{Start: groupStart, End: st.span.Start},
				Kind:      models.CutKindAssignment,
				Priority:  priorityAssignment,
				Rationale: "statements on either side share no data",
			})
			groupStart = st.span.Start
			seen = make(map[string]bool)
		}
		for id := range ids {
			seen[id] = true
		}
	}
	return cuts
}

func addIdents(dst map[string]bool, lines []string, span models.Span) {
	end := span.End
	if end > len(lines) {
		end = len(lines)
	}
	for _, id := range inject.Identifiers(strings.Join(lines[span.Start:end], "\n")) {
		dst[id] = true
	}
}

func disjoint(a, b map[string]bool) bool {
	for id := range b {
		if a[id] {
			return false
		}
	}
	return true
}

// scanStatements splits fragment lines into top-level statements, folding
// each brace-delimited construct into one statement.
func scanStatements(lines []string) []statement {
	var stmts []statement
	for i := 0; i < len(lines); {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			i++
			continue
		}
		switch {
		case isBranchOpen(trimmed):
			end := constructEnd(lines, i)
			stmts = append(stmts, statement{kind: stmtBranch, span: models.Span{Start: i, End: end}})
			i = end
		case isLoopOpen(trimmed):
			end := constructEnd(lines, i)
			stmts = append(stmts, statement{kind: stmtLoop, span: models.Span{Start: i, End: end}})
			i = end
		case isAssignment(trimmed):
			stmts = append(stmts, statement{kind: stmtAssign, span: models.Span{Start: i, End: i + 1}})
			i++
		case callPattern.MatchString(trimmed):
			stmts = append(stmts, statement{kind: stmtCall, span: models.Span{Start: i, End: i + 1}})
			i++
		default:
			stmts = append(stmts, statement{kind: stmtPlain, span: models.Span{Start: i, End: i + 1}})
			i++
		}
	}
	return stmts
}

func isBranchOpen(line string) bool {
	return strings.HasPrefix(line, "if ") && strings.HasSuffix(line, "{")
}

func isLoopOpen(line string) bool {
	return (strings.HasPrefix(line, "for ") || strings.HasPrefix(line, "while ")) &&
		strings.HasSuffix(line, "{")
}

func isAssignment(line string) bool {
	return strings.Contains(cleanLine(line), " = ")
}

// constructEnd returns the exclusive end index of the brace-delimited
// construct opening at start. Unbalanced constructs run to the last line.
func constructEnd(lines []string, start int) int {
	depth := 0
	for i := start; i < len(lines); i++ {
		clean := cleanLine(lines[i])
		depth += strings.Count(clean, "{") - strings.Count(clean, "}")
		if depth <= 0 {
			return i + 1
		}
	}
	return len(lines)
}

// cleanLine blanks double-quoted strings and trailing // comments so brace
// counting and classification see code only.
func cleanLine(line string) string {
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

// childSpec is one child produced by applying a cut. Dependencies are
// expressed as indexes of earlier entries in the same slice.
type childSpec struct {
	fragment  string
	role      string
	dependsOn []int
}

// applyCut splits a fragment at the given cut point. A result with fewer
// than two children means the cut does not actually divide the fragment.
func applyCut(fragment string, cut models.CutPoint) []childSpec {
	lines := splitLines(fragment)
	if cut.Span.Start >= len(lines) {
		return nil
	}
	switch cut.Kind {
	case models.CutKindBranch:
		return cutBranch(lines, cut.Span)
	case models.CutKindLoop:
		return cutLoop(lines, cut.Span)
	case models.CutKindCall:
		return cutCall(lines, cut.Span)
	case models.CutKindAssignment:
		return cutBoundary(lines, cut.Span.End)
	default:
		return nil
	}
}

// cutBranch explodes an if/else construct: condition atom, one atom per
// arm, plus a merge atom when code follows the construct. Arms depend on
// the condition; the merge depends on every arm.
func cutBranch(lines []string, span models.Span) []childSpec {
	construct := lines[span.Start:clampEnd(span.End, len(lines))]
	header := strings.TrimSpace(construct[0])
	cond := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(header, "if "), "{"))
	if cond == "" {
		return nil
	}

	var children []childSpec
	prefixIdx := -1
	if prefix := joinLines(lines[:span.Start]); prefix != "" {
		children = append(children, childSpec{fragment: prefix, role: "prefix"})
		prefixIdx = 0
	}

	condIdx := len(children)
	children = append(children, childSpec{fragment: cond, role: "condition", dependsOn: depsOn(prefixIdx)})

	var armIdxs []int
	for _, arm := range splitArms(construct) {
		if arm.body == "" {
			continue
		}
		armIdxs = append(armIdxs, len(children))
		children = append(children, childSpec{fragment: arm.body, role: arm.role, dependsOn: []int{condIdx}})
	}

	if suffix := joinLines(lines[clampEnd(span.End, len(lines)):]); suffix != "" {
		deps := armIdxs
		if len(deps) == 0 {
			deps = []int{condIdx}
		}
		children = append(children, childSpec{fragment: suffix, role: "merge", dependsOn: deps})
	}
	return children
}

type branchArm struct {
	role string
	body string
}

// splitArms extracts the then/else arm bodies of a branch construct. An
// "else if" chain becomes a nested branch fragment inside the else arm.
func splitArms(construct []string) []branchArm {
	var arms []branchArm
	var current []string
	role := "then-branch"
	depth := 1
	for i := 1; i < len(construct); i++ {
		line := strings.TrimSpace(construct[i])
		clean := cleanLine(line)
		net := strings.Count(clean, "{") - strings.Count(clean, "}")

		if depth == 1 && strings.HasPrefix(line, "}") {
			switch {
			case strings.HasPrefix(line, "} else if "):
				arms = append(arms, branchArm{role: role, body: joinLines(current)})
				rest := append([]string{strings.TrimPrefix(line, "} else ")}, construct[i+1:]...)
				arms = append(arms, branchArm{role: "else-branch", body: joinLines(rest)})
				return arms
			case strings.HasPrefix(line, "} else"):
				arms = append(arms, branchArm{role: role, body: joinLines(current)})
				current = nil
				role = "else-branch"
			default:
				arms = append(arms, branchArm{role: role, body: joinLines(current)})
				return arms
			}
			continue
		}

		current = append(current, construct[i])
		depth += net
	}
	arms = append(arms, branchArm{role: role, body: joinLines(current)})
	return arms
}

// cutLoop separates loop control from loop body, keeping any surrounding
// code as prefix and merge atoms with sequential dependencies.
func cutLoop(lines []string, span models.Span) []childSpec {
	construct := lines[span.Start:clampEnd(span.End, len(lines))]
	header := strings.TrimSpace(construct[0])
	control := strings.TrimSpace(strings.TrimSuffix(header, "{"))
	if control == "" {
		return nil
	}

	inner := construct[1:]
	if len(inner) > 0 && strings.TrimSpace(inner[len(inner)-1]) == "}" {
		inner = inner[:len(inner)-1]
	}

	var children []childSpec
	last := -1
	if prefix := joinLines(lines[:span.Start]); prefix != "" {
		children = append(children, childSpec{fragment: prefix, role: "prefix"})
		last = 0
	}
	children = append(children, childSpec{fragment: control, role: "loop-control", dependsOn: depsOn(last)})
	last = len(children) - 1
	if body := joinLines(inner); body != "" {
		children = append(children, childSpec{fragment: body, role: "loop-body", dependsOn: []int{last}})
		last = len(children) - 1
	}
	if suffix := joinLines(lines[clampEnd(span.End, len(lines)):]); suffix != "" {
		children = append(children, childSpec{fragment: suffix, role: "merge", dependsOn: []int{last}})
	}
	return children
}

// cutCall isolates a call statement, preserving execution order around it
// since the callee's effects are unknown.
func cutCall(lines []string, span models.Span) []childSpec {
	var children []childSpec
	last := -1
	if prefix := joinLines(lines[:span.Start]); prefix != "" {
		children = append(children, childSpec{fragment: prefix, role: "prefix"})
		last = 0
	}
	children = append(children, childSpec{
		fragment:  joinLines(lines[span.Start:clampEnd(span.End, len(lines))]),
		role:      "call",
		dependsOn: depsOn(last),
	})
	last = len(children) - 1
	if suffix := joinLines(lines[clampEnd(span.End, len(lines)):]); suffix != "" {
		children = append(children, childSpec{fragment: suffix, role: "segment", dependsOn: []int{last}})
	}
	return children
}

// cutBoundary splits the fragment at a line boundary into two independent
// segments. Group boundary cuts guarantee the halves share no identifiers,
// so neither child depends on the other.
func cutBoundary(lines []string, boundary int) []childSpec {
	head := joinLines(lines[:clampEnd(boundary, len(lines))])
	tail := joinLines(lines[clampEnd(boundary, len(lines)):])
	if head == "" || tail == "" {
		return nil
	}
	return []childSpec{
		{fragment: head, role: "segment"},
		{fragment: tail, role: "segment"},
	}
}

func depsOn(idx int) []int {
	if idx < 0 {
		return nil
	}
	return []int{idx}
}

func clampEnd(end, max int) int {
	if end > max {
		return max
	}
	return end
}

func splitLines(fragment string) []string {
	return strings.Split(fragment, "\n")
}

func joinLines(lines []string) string {
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// EstimateComplexity scores a fragment's structural complexity: a 1.0
// baseline, +1 per branch or loop construct, +0.5 per call expression.
func EstimateComplexity(fragment string) float64 {
	score := 1.0
	for _, raw := range splitLines(fragment) {
		line := strings.TrimSpace(cleanLine(raw))
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "if ") || strings.HasPrefix(line, "} else if ") {
			score += 1.0
		}
		if strings.HasPrefix(line, "for ") || strings.HasPrefix(line, "while ") {
			score += 1.0
		}
		score += 0.5 * float64(len(callSites(line)))
	}
	return score
}

// CountLines reports the number of non-blank lines in a fragment.
func CountLines(fragment string) int {
	n := 0
	for _, line := range splitLines(fragment) {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

// callSites lists the call names on a cleaned line.
func callSites(line string) []string {
	matches := callSitePattern.FindAllString(line, -1)
	if len(matches) == 0 {
		return nil
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(m, "("))
	}
	return names
}
