package merge

import (
	"regexp"
	"strings"

	"github.com/mkazlausk/collabsync/internal/models"
)

var (
	// Matches simple assignments: an optional declaration keyword, an
	// identifier, an assignment operator, and a non-empty right-hand side.
	// The RHS must not start with '=' so comparisons never match.
	assignmentRe = regexp.MustCompile(`^\s*(?:(?:var|let|const|local|my)\s+)?([A-Za-z_$][A-Za-z0-9_$]*)\s*(?::|[+\-*/])?=\s*([^=].*)$`)

	commentRe = regexp.MustCompile(`^\s*(//|#|--|/\*|\*|;)`)

	importRe = regexp.MustCompile(`^\s*(import|from|require|include|#include|use|using)\b`)
)

type assignment struct {
	name  string
	value string
}

func parseAssignment(line string) (assignment, bool) {
	sub := assignmentRe.FindStringSubmatch(line)
	if sub == nil {
		return assignment{}, false
	}
	return assignment{name: sub[1], value: strings.TrimSpace(sub[2])}, true
}

func isComment(line string) bool {
	return commentRe.MatchString(line)
}

func isImport(line string) bool {
	return importRe.MatchString(line)
}

// mergeLines walks base, local, and remote line arrays in lockstep. Lines
// past the end of a shorter version are treated as absent, so one-sided
// additions and deletions merge cleanly. Competing changes to the same line
// go through the heuristic ladder; a winner below the confidence threshold
// is replaced with an explicit conflict block and marked manual.
func (r *Resolver) mergeLines(base, local, remote []string) ([]string, []models.ConflictSection) {
	out := []string{}
	sections := []models.ConflictSection{}

	n := len(base)
	if len(local) > n {
		n = len(local)
	}
	if len(remote) > n {
		n = len(remote)
	}

	for i := 0; i < n; i++ {
		b, hasB := lineAt(base, i)
		l, hasL := lineAt(local, i)
		rm, hasR := lineAt(remote, i)

		switch {
		case l == rm && hasL == hasR:
			// Unchanged, or both sides made the same change.
			if hasL {
				out = append(out, l)
			}
		case l == b && hasL == hasB:
			// Only remote differs from base: take remote.
			if hasR {
				out = append(out, rm)
			}
		case rm == b && hasR == hasB:
			// Only local differs from base: take local.
			if hasL {
				out = append(out, l)
			}
		default:
			// Both sides changed the line, and differently.
			text, conf := resolveLinePair(l, rm)
			start := len(out)
			if conf >= autoResolveThreshold {
				out = append(out, text)
				sections = append(sections, models.ConflictSection{
					Start:      start,
					End:        start,
					Versions:   []string{l, rm},
					Resolution: models.SectionAuto,
					Confidence: conf,
				})
			} else {
				out = append(out, markerLocal, l, markerSeparator, rm, markerRemote)
				sections = append(sections, models.ConflictSection{
					Start:      start,
					End:        start + 4,
					Versions:   []string{l, rm},
					Resolution: models.SectionManual,
					Confidence: conf,
				})
			}
		}
	}

	return out, sections
}

// resolveLinePair applies the line-conflict heuristic ladder and returns the
// preferred line plus a confidence score. Rules are tried in priority order:
// same-variable assignments with different values force manual resolution,
// then comment pairs, whitespace-only differences, and import pairs resolve
// with decreasing confidence. Anything else leans manual with local as the
// placeholder winner.
func resolveLinePair(local, remote string) (string, float64) {
	if la, ok := parseAssignment(local); ok {
		if ra, ok := parseAssignment(remote); ok && la.name == ra.name && la.value != ra.value {
			return local, 0.1
		}
	}

	if isComment(local) && isComment(remote) {
		return longerOf(local, remote), 0.9
	}

	if strings.TrimSpace(local) == strings.TrimSpace(remote) {
		return local, 0.95
	}

	if isImport(local) && isImport(remote) {
		// Longer import line as a proxy for the more complete one.
		return longerOf(local, remote), 0.8
	}

	return local, 0.2
}

// isSingleAssignmentConflict reports whether local and remote differ in
// exactly one line, and that line is an assignment to the same identifier
// with different values on each side.
func isSingleAssignmentConflict(local, remote []string) bool {
	if len(local) != len(remote) {
		return false
	}

	diff := -1
	for i := range local {
		if local[i] != remote[i] {
			if diff >= 0 {
				return false
			}
			diff = i
		}
	}
	if diff < 0 {
		return false
	}

	la, ok := parseAssignment(local[diff])
	if !ok {
		return false
	}
	ra, ok := parseAssignment(remote[diff])
	if !ok {
		return false
	}
	return la.name == ra.name && la.value != ra.value
}

func lineAt(lines []string, i int) (string, bool) {
	if i < len(lines) {
		return lines[i], true
	}
	return "", false
}

func longerOf(a, b string) string {
	if len(b) > len(a) {
		return b
	}
	return a
}
