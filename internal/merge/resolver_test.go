package merge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkazlausk/collabsync/internal/models"
)

func TestResolve_IdenticalVersions(t *testing.T) {
	r := NewResolver()

	res := r.Resolve("a\nb", "a\nB", "a\nB", "notes.txt", "alice")

	assert.Equal(t, models.StrategySmartMerge, res.Strategy)
	assert.Equal(t, "a\nB", res.ResolvedContent)
	assert.Empty(t, res.ConflictedSections)
	assert.True(t, res.Metadata.AutoResolved)
	assert.Equal(t, models.SeverityLow, res.Metadata.Severity)
	assert.Equal(t, "alice", res.Metadata.UserID)
}

func TestResolve_NonOverlappingLineEdits(t *testing.T) {
	r := NewResolver()

	// Local changed line 2, remote changed line 3.
	res := r.Resolve("a\nb\nc", "a\nB\nc", "a\nb\nC", "notes.txt", "alice")

	assert.Equal(t, models.StrategySmartMerge, res.Strategy)
	assert.Equal(t, "a\nB\nC", res.ResolvedContent)
	assert.Empty(t, res.ConflictedSections)
	assert.True(t, res.Metadata.AutoResolved)
	assert.Equal(t, models.SeverityLow, res.Metadata.Severity)
	assert.Equal(t, models.ConflictTextual, res.Metadata.ConflictType)
}

func TestResolve_RemoteOnlyAddition(t *testing.T) {
	r := NewResolver()

	res := r.Resolve("a\nb", "a\nb", "a\nb\nc", "notes.txt", "alice")

	assert.True(t, res.Metadata.AutoResolved)
	assert.Equal(t, "a\nb\nc", res.ResolvedContent)
}

func TestResolve_LocalOnlyDeletion(t *testing.T) {
	r := NewResolver()

	res := r.Resolve("a\nb\nc", "a\nb", "a\nb\nc", "notes.txt", "alice")

	assert.True(t, res.Metadata.AutoResolved)
	assert.Equal(t, "a\nb", res.ResolvedContent)
}

func TestResolve_WhitespaceOnlyDivergence(t *testing.T) {
	r := NewResolver()

	res := r.Resolve("keep calm", "keep calm  ", "  keep calm", "notes.txt", "alice")

	require.Len(t, res.ConflictedSections, 1)
	assert.Equal(t, models.SectionAuto, res.ConflictedSections[0].Resolution)
	assert.GreaterOrEqual(t, res.ConflictedSections[0].Confidence, 0.95)
	// Local wins on whitespace-only differences.
	assert.Equal(t, "keep calm  ", res.ResolvedContent)
	assert.True(t, res.Metadata.AutoResolved)
	assert.Equal(t, models.SeverityMedium, res.Metadata.Severity)
}

func TestResolve_CommentPairPrefersLonger(t *testing.T) {
	r := NewResolver()

	res := r.Resolve("// old", "// short", "// considerably longer note", "notes.txt", "alice")

	require.Len(t, res.ConflictedSections, 1)
	assert.Equal(t, models.SectionAuto, res.ConflictedSections[0].Resolution)
	assert.InDelta(t, 0.9, res.ConflictedSections[0].Confidence, 1e-9)
	assert.Equal(t, "// considerably longer note", res.ResolvedContent)
}

func TestResolve_ImportPairPrefersLonger(t *testing.T) {
	r := NewResolver()

	res := r.Resolve("import os", "import sys", "import sys, json", "notes.txt", "alice")

	require.Len(t, res.ConflictedSections, 1)
	assert.Equal(t, models.SectionAuto, res.ConflictedSections[0].Resolution)
	assert.InDelta(t, 0.8, res.ConflictedSections[0].Confidence, 1e-9)
	assert.Equal(t, "import sys, json", res.ResolvedContent)
}

func TestResolve_CompetingAssignmentForcesManual(t *testing.T) {
	r := NewResolver()

	res := r.Resolve("x = 1", "x = 2", "x = 3", "notes.txt", "alice")

	assert.Equal(t, models.StrategyManual, res.Strategy)
	assert.False(t, res.Metadata.AutoResolved)
	assert.Equal(t, models.ConflictStructural, res.Metadata.ConflictType)
	assert.Equal(t, models.SeverityHigh, res.Metadata.Severity)

	// The whole divergence is wrapped in conflict markers.
	assert.Contains(t, res.ResolvedContent, markerLocal)
	assert.Contains(t, res.ResolvedContent, markerSeparator)
	assert.Contains(t, res.ResolvedContent, markerRemote)
	assert.Contains(t, res.ResolvedContent, "x = 2")
	assert.Contains(t, res.ResolvedContent, "x = 3")

	require.Len(t, res.ConflictedSections, 1)
	sec := res.ConflictedSections[0]
	assert.Equal(t, 0, sec.Start)
	assert.Equal(t, len(strings.Split(res.ResolvedContent, "\n"))-1, sec.End)
	assert.Equal(t, []string{"x = 2", "x = 3"}, sec.Versions)
	assert.Equal(t, models.SectionManual, sec.Resolution)
}

func TestResolve_SingleAssignmentSkipsSemanticTier(t *testing.T) {
	r := NewResolver()

	// Same divergence in a code file: still manual, never auto-merged.
	res := r.Resolve("x = 1", "x = 2", "x = 3", "config.js", "alice")

	assert.Equal(t, models.StrategyManual, res.Strategy)
	assert.False(t, res.Metadata.AutoResolved)
}

func TestResolve_UnrelatedDivergenceIsManual(t *testing.T) {
	r := NewResolver()

	res := r.Resolve("shared", "local text here", "completely different", "notes.txt", "alice")

	assert.Equal(t, models.StrategyManual, res.Strategy)
	assert.False(t, res.Metadata.AutoResolved)
}

func TestResolve_SemanticMergeCodeFile(t *testing.T) {
	r := NewResolver()

	base := "func alpha() {}\nfunc beta() {}"
	local := "// intro\nfunc alpha() {}\nfunc beta() {}"
	remote := "func alpha() {}\nfunc beta() {}\nfunc gamma() {}"

	res := r.Resolve(base, local, remote, "main.go", "alice")

	assert.Equal(t, models.StrategySemanticMerge, res.Strategy)
	assert.True(t, res.Metadata.AutoResolved)
	assert.Equal(t, models.ConflictSemantic, res.Metadata.ConflictType)
	assert.Equal(t, "// intro\nfunc alpha() {}\nfunc beta() {}\nfunc gamma() {}", res.ResolvedContent)
}

func TestResolve_SemanticKeyConflictForcesManual(t *testing.T) {
	r := NewResolver()

	res := r.Resolve("port: 80", "port: 8080", "port: 9090", "app.yaml", "alice")

	assert.Equal(t, models.StrategyManual, res.Strategy)
	assert.False(t, res.Metadata.AutoResolved)
	assert.Contains(t, res.ResolvedContent, markerLocal)
}

func TestMergeLines_ManualSectionSpansConflictBlock(t *testing.T) {
	r := NewResolver()

	merged, sections := r.mergeLines(
		[]string{"base line"},
		[]string{"local line"},
		[]string{"remote line"},
	)

	require.Len(t, sections, 1)
	assert.Equal(t, models.SectionManual, sections[0].Resolution)
	assert.Equal(t, sections[0].Start+4, sections[0].End)
	require.Len(t, merged, 5)
	assert.Equal(t, markerLocal, merged[0])
	assert.Equal(t, "local line", merged[1])
	assert.Equal(t, markerSeparator, merged[2])
	assert.Equal(t, "remote line", merged[3])
	assert.Equal(t, markerRemote, merged[4])
}

func TestResolveLinePair_Ladder(t *testing.T) {
	tests := []struct {
		name       string
		local      string
		remote     string
		want       string
		confidence float64
	}{
		{"same variable different value", "x = 1", "x = 2", "x = 1", 0.1},
		{"declared assignment", "const x = 1", "let x = 2", "const x = 1", 0.1},
		{"comment pair", "# a", "# a longer one", "# a longer one", 0.9},
		{"whitespace only", "\ta b", "a b  ", "\ta b", 0.95},
		{"import pair", "use foo", "use foo::bar", "use foo::bar", 0.8},
		{"fallback", "hello", "goodbye", "hello", 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, conf := resolveLinePair(tt.local, tt.remote)
			assert.Equal(t, tt.want, got)
			assert.InDelta(t, tt.confidence, conf, 1e-9)
		})
	}
}

func TestIsSingleAssignmentConflict(t *testing.T) {
	assert.True(t, isSingleAssignmentConflict([]string{"x = 1"}, []string{"x = 2"}))
	assert.True(t, isSingleAssignmentConflict([]string{"a", "x = 1"}, []string{"a", "x = 2"}))

	// Different variables.
	assert.False(t, isSingleAssignmentConflict([]string{"x = 1"}, []string{"y = 2"}))
	// More than one differing line.
	assert.False(t, isSingleAssignmentConflict([]string{"x = 1", "b"}, []string{"x = 2", "c"}))
	// No difference at all.
	assert.False(t, isSingleAssignmentConflict([]string{"x = 1"}, []string{"x = 1"}))
	// Length mismatch.
	assert.False(t, isSingleAssignmentConflict([]string{"x = 1"}, []string{"x = 2", "b"}))
}
