// Package merge implements the three-way conflict resolver for collaborative
// editing sessions. Given a common ancestor and two divergent versions of a
// document it produces a resolution: merged content, per-conflict confidence
// scores, and whether the result is safe to apply without user involvement.
//
// Resolution is attempted in tiers. Tier one is a line-level three-way merge
// with a heuristic ladder for competing lines. Tier two re-runs the merge at
// the granularity of semantic blocks (declarations, imports, headings, ...)
// for file categories with registered patterns. If neither tier produces an
// auto-resolvable result the resolver falls back to a manual resolution with
// the full divergent content wrapped in conflict markers.
package merge

import (
	"strings"
	"time"

	"github.com/mkazlausk/collabsync/internal/models"
)

// autoResolveThreshold is the minimum confidence at which a heuristically
// resolved conflict is applied without user confirmation.
const autoResolveThreshold = 0.6

const (
	markerLocal     = "<<<<<<< LOCAL"
	markerSeparator = "======="
	markerRemote    = ">>>>>>> REMOTE"
)

// Resolver performs three-way merges. It holds no mutable state; a single
// instance may be shared across sessions and goroutines.
type Resolver struct{}

// NewResolver creates a conflict resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve merges local and remote against their common ancestor base.
// filePath is a hint used to select semantic block patterns; actorID is
// recorded in the resolution metadata. Inputs are never mutated and the
// result is deterministic apart from the embedded timestamp.
func (r *Resolver) Resolve(base, local, remote, filePath, actorID string) models.ConflictResolution {
	now := time.Now().UTC()

	// Identical versions are not a real conflict, regardless of the
	// expected-version mismatch that got us here.
	if local == remote {
		return models.ConflictResolution{
			Strategy:           models.StrategySmartMerge,
			ResolvedContent:    local,
			ConflictedSections: []models.ConflictSection{},
			Metadata: models.ResolutionMetadata{
				ConflictType: models.ConflictTextual,
				Severity:     models.SeverityLow,
				AutoResolved: true,
				UserID:       actorID,
				Timestamp:    now,
			},
		}
	}

	baseLines := splitLines(base)
	localLines := splitLines(local)
	remoteLines := splitLines(remote)

	// Tier one: line-level three-way merge.
	merged, sections := r.mergeLines(baseLines, localLines, remoteLines)
	if allAuto(sections) {
		severity := models.SeverityLow
		if len(sections) > 0 {
			severity = models.SeverityMedium
		}
		return models.ConflictResolution{
			Strategy:           models.StrategySmartMerge,
			ResolvedContent:    strings.Join(merged, "\n"),
			ConflictedSections: sections,
			Metadata: models.ResolutionMetadata{
				ConflictType: models.ConflictTextual,
				Severity:     severity,
				AutoResolved: true,
				UserID:       actorID,
				Timestamp:    now,
			},
		}
	}

	// Tier two: block-level merge, only for file categories with registered
	// patterns. A single-line same-variable assignment conflict is already
	// classified definitively by tier one, so it skips straight to manual.
	if cat := classifyPath(filePath); cat != CategoryPlain && !isSingleAssignmentConflict(localLines, remoteLines) {
		res := r.semanticMerge(cat, baseLines, localLines, remoteLines, actorID, now)
		if res.Metadata.AutoResolved {
			return res
		}
	}

	// Manual fallback: hand the whole divergence to the user.
	wrapped := strings.Join([]string{markerLocal, local, markerSeparator, remote, markerRemote}, "\n")
	return models.ConflictResolution{
		Strategy:        models.StrategyManual,
		ResolvedContent: wrapped,
		ConflictedSections: []models.ConflictSection{{
			Start:      0,
			End:        len(splitLines(wrapped)) - 1,
			Versions:   []string{local, remote},
			Resolution: models.SectionManual,
			Confidence: 0,
		}},
		Metadata: models.ResolutionMetadata{
			ConflictType: models.ConflictStructural,
			Severity:     models.SeverityHigh,
			AutoResolved: false,
			UserID:       actorID,
			Timestamp:    now,
		},
	}
}

func allAuto(sections []models.ConflictSection) bool {
	for _, s := range sections {
		if s.Resolution != models.SectionAuto {
			return false
		}
	}
	return true
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
