package merge

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mkazlausk/collabsync/internal/models"
)

// FileCategory selects which semantic block patterns apply to a file.
// CategoryPlain has no patterns and disables block-level merging.
type FileCategory int

const (
	CategoryPlain FileCategory = iota
	CategoryCode
	CategoryStructuredData
	CategoryMarkup
)

func (c FileCategory) String() string {
	switch c {
	case CategoryCode:
		return "code"
	case CategoryStructuredData:
		return "structured-data"
	case CategoryMarkup:
		return "markup"
	default:
		return "plain"
	}
}

func classifyPath(path string) FileCategory {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go", ".js", ".jsx", ".ts", ".tsx", ".py", ".rb", ".rs", ".java",
		".c", ".h", ".cpp", ".hpp", ".cs", ".sh", ".php", ".swift", ".kt", ".lua":
		return CategoryCode
	case ".json", ".yaml", ".yml", ".toml", ".ini", ".env", ".properties":
		return CategoryStructuredData
	case ".md", ".markdown", ".html", ".htm", ".xml", ".rst":
		return CategoryMarkup
	default:
		return CategoryPlain
	}
}

// blockMatcher recognizes one kind of semantic block. When anchor is
// non-zero, that capture group is the stable key for the block; otherwise
// the whole normalized line is the key.
type blockMatcher struct {
	kind   string
	re     *regexp.Regexp
	anchor int
}

var (
	codeMatchers = []blockMatcher{
		{kind: "decl", re: regexp.MustCompile(`^\s*(?:func|def|function|class|type|struct|interface|fn)\s+([A-Za-z_$][A-Za-z0-9_$]*)`), anchor: 1},
		{kind: "import", re: regexp.MustCompile(`^\s*(?:import|from|require|include|#include|use|using|export)\b.*$`)},
		{kind: "assign", re: assignmentRe, anchor: 1},
		{kind: "comment", re: regexp.MustCompile(`^\s*(?://|#|--|/\*|\*).*$`)},
	}

	dataMatchers = []blockMatcher{
		{kind: "key", re: regexp.MustCompile(`^\s*"?([A-Za-z0-9_.-]+)"?\s*[:=]`), anchor: 1},
		{kind: "item", re: regexp.MustCompile(`^\s*-\s+.*$`)},
		{kind: "comment", re: regexp.MustCompile(`^\s*#.*$`)},
	}

	markupMatchers = []blockMatcher{
		{kind: "heading", re: regexp.MustCompile(`^#{1,6}\s+.*$`)},
		{kind: "item", re: regexp.MustCompile(`^\s*(?:[-*+]|\d+\.)\s+.*$`)},
		{kind: "fence", re: regexp.MustCompile("^```.*$")},
		{kind: "comment", re: regexp.MustCompile(`^\s*<!--.*$`)},
	}
)

// matchersFor maps each file category to its ordered pattern list. New
// categories must be added here; the switch is exhaustive over the enum.
func matchersFor(cat FileCategory) []blockMatcher {
	switch cat {
	case CategoryCode:
		return codeMatchers
	case CategoryStructuredData:
		return dataMatchers
	case CategoryMarkup:
		return markupMatchers
	case CategoryPlain:
		return nil
	}
	return nil
}

type semanticBlock struct {
	kind string
	text string
	line int
}

// extractBlocks scans lines against the ordered matcher list. The first
// matcher to hit a line claims it; the block id is the matcher kind plus the
// normalized anchor text, which keeps ids stable across whitespace edits.
func extractBlocks(lines []string, matchers []blockMatcher) (map[string]semanticBlock, []string) {
	blocks := make(map[string]semanticBlock)
	var order []string

	for i, line := range lines {
		for _, m := range matchers {
			sub := m.re.FindStringSubmatch(line)
			if sub == nil {
				continue
			}
			key := line
			if m.anchor > 0 && m.anchor < len(sub) {
				key = sub[m.anchor]
			}
			id := m.kind + ":" + normalizeBlockKey(key)
			if _, seen := blocks[id]; !seen {
				blocks[id] = semanticBlock{kind: m.kind, text: line, line: i}
				order = append(order, id)
			}
			break
		}
	}

	return blocks, order
}

func normalizeBlockKey(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// semanticMerge applies three-way logic at block granularity: the union of
// block ids across all three versions is walked, unchanged blocks are kept,
// one-sided changes are taken, and competing changes become conflicts. A
// conflicting assignment or key block to the same name is always forced to
// manual resolution; other block conflicts prefer the longer side.
func (r *Resolver) semanticMerge(cat FileCategory, base, local, remote []string, actorID string, now time.Time) models.ConflictResolution {
	matchers := matchersFor(cat)

	baseBlocks, _ := extractBlocks(base, matchers)
	localBlocks, localOrder := extractBlocks(local, matchers)
	remoteBlocks, remoteOrder := extractBlocks(remote, matchers)

	// Union of ids, local order first, then remote-only additions.
	seen := make(map[string]bool, len(localOrder)+len(remoteOrder))
	ids := make([]string, 0, len(localOrder)+len(remoteOrder))
	for _, id := range localOrder {
		seen[id] = true
		ids = append(ids, id)
	}
	for _, id := range remoteOrder {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for id := range baseBlocks {
		if !seen[id] {
			ids = append(ids, id)
		}
	}

	replaced := make(map[int]string)
	removed := make(map[int]bool)
	var appended []string
	sections := []models.ConflictSection{}
	auto := true

	for _, id := range ids {
		bb, hasBase := baseBlocks[id]
		lb, hasLocal := localBlocks[id]
		rb, hasRemote := remoteBlocks[id]

		bt, lt, rt := "", "", ""
		if hasBase {
			bt = bb.text
		}
		if hasLocal {
			lt = lb.text
		}
		if hasRemote {
			rt = rb.text
		}

		switch {
		case lt == rt:
			// Unchanged or both sides agree.
		case lt == bt:
			// Remote-only change: substitute, append, or delete.
			switch {
			case !hasRemote && hasLocal:
				removed[lb.line] = true
			case !hasLocal:
				appended = append(appended, rt)
			default:
				replaced[lb.line] = rt
			}
		case rt == bt:
			// Local-only change: local already carries it.
		default:
			// Both changed the block, and differently.
			kind := lb.kind
			if !hasLocal {
				kind = rb.kind
			}
			line := len(local)
			if hasLocal {
				line = lb.line
			}

			if kind == "assign" || kind == "key" {
				// Competing values for the same name never auto-merge.
				auto = false
				sections = append(sections, models.ConflictSection{
					Start:      line,
					End:        line,
					Versions:   []string{lt, rt},
					Resolution: models.SectionManual,
					Confidence: 0.1,
				})
				continue
			}

			winner := longerOf(lt, rt)
			if hasLocal {
				replaced[lb.line] = winner
			} else {
				appended = append(appended, winner)
			}
			sections = append(sections, models.ConflictSection{
				Start:      line,
				End:        line,
				Versions:   []string{lt, rt},
				Resolution: models.SectionAuto,
				Confidence: 0.7,
			})
		}
	}

	out := make([]string, 0, len(local)+len(appended))
	for i, line := range local {
		if removed[i] {
			continue
		}
		if repl, ok := replaced[i]; ok {
			out = append(out, repl)
			continue
		}
		out = append(out, line)
	}
	out = append(out, appended...)

	severity := models.SeverityLow
	if len(sections) > 0 {
		severity = models.SeverityMedium
	}
	if !auto {
		severity = models.SeverityHigh
	}

	return models.ConflictResolution{
		Strategy:           models.StrategySemanticMerge,
		ResolvedContent:    strings.Join(out, "\n"),
		ConflictedSections: sections,
		Metadata: models.ResolutionMetadata{
			ConflictType: models.ConflictSemantic,
			Severity:     severity,
			AutoResolved: auto,
			UserID:       actorID,
			Timestamp:    now,
		},
	}
}
