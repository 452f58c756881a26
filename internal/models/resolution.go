package models

import "time"

// Strategy identifies how a version conflict was (or must be) resolved.
type Strategy string

const (
	StrategyLastWriteWins Strategy = "last-write-wins" // Incoming content wins wholesale
	StrategySmartMerge    Strategy = "smart-merge"     // Line-level three-way merge
	StrategySemanticMerge Strategy = "semantic-merge"  // Block-level merge over structural patterns
	StrategyManual        Strategy = "manual"          // Requires an explicit client resolution
)

// ConflictType classifies what kind of divergence was detected.
type ConflictType string

const (
	ConflictTextual    ConflictType = "textual"    // Plain line-level divergence
	ConflictSemantic   ConflictType = "semantic"   // Divergence in structural blocks
	ConflictStructural ConflictType = "structural" // Whole-document divergence, no common structure
)

// Severity grades how risky a resolution is to apply.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// SectionResolution marks whether a conflicted section was resolved
// automatically or handed to the user.
type SectionResolution string

const (
	SectionAuto   SectionResolution = "auto"
	SectionManual SectionResolution = "manual"
)

// ConflictSection describes one conflicted region of the merged document.
// Versions holds the competing texts in [local, remote] order.
type ConflictSection struct {
	Start      int               `json:"start"`
	End        int               `json:"end"`
	Versions   []string          `json:"versions"`
	Resolution SectionResolution `json:"resolution"`
	Confidence float64           `json:"confidence"`
}

// ResolutionMetadata carries bookkeeping about a resolution attempt.
type ResolutionMetadata struct {
	ConflictType ConflictType `json:"conflictType"`
	Severity     Severity     `json:"severity"`
	AutoResolved bool         `json:"autoResolved"`
	UserID       string       `json:"userId"`
	Timestamp    time.Time    `json:"timestamp"`
}

// ConflictResolution is the resolver's verdict on a three-way merge.
// When Metadata.AutoResolved is true, ResolvedContent is safe to apply
// directly; otherwise it contains conflict markers for manual resolution.
type ConflictResolution struct {
	Strategy           Strategy           `json:"strategy"`
	ResolvedContent    string             `json:"resolvedContent"`
	ConflictedSections []ConflictSection  `json:"conflictedSections"`
	Metadata           ResolutionMetadata `json:"metadata"`
}
