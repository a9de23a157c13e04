package meta

// StatusMetadata is the supertype shared by InfoStatus, WarningStatus, and
// ErrorStatus. Looking up meta.All[StatusMetadata](item.Metadata())
// returns every finding of any severity in the order stages recorded them.
type StatusMetadata interface {
	ItemMetadata
	// StageID is the id of the stage (or validator-holding stage) that
	// produced the finding.
	StageID() string
	// Message is a human-readable description suitable for an operator
	// log line or for inclusion in the published aggregate's audit trail.
	Message() string
}

type statusRecord struct {
	metadataMarker
	stageID string
	message string
}

func (s statusRecord) StageID() string { return s.stageID }
func (s statusRecord) Message() string { return s.message }

// InfoStatus records a non-actionable finding: something worth noting in
// an audit trail but requiring no operator attention.
type InfoStatus struct{ statusRecord }

// NewInfoStatus attaches informational provenance, e.g. "signed using key
// rollover slot 2".
func NewInfoStatus(stageID, message string) InfoStatus {
	return InfoStatus{statusRecord{stageID: stageID, message: message}}
}

// WarningStatus records a finding that did not stop processing but that an
// operator should be able to see, e.g. a certificate nearing expiry.
type WarningStatus struct{ statusRecord }

// NewWarningStatus attaches a warning-level finding.
func NewWarningStatus(stageID, message string) WarningStatus {
	return WarningStatus{statusRecord{stageID: stageID, message: message}}
}

// ErrorStatus records a per-item defect. Whether an ErrorStatus is merely
// recorded or instead causes the owning stage to abort the pipeline with a
// StageProcessingError is a per-stage configuration choice (see pkg/stage
// and pkg/validate), not something this type decides.
type ErrorStatus struct{ statusRecord }

// NewErrorStatus attaches an error-level finding.
func NewErrorStatus(stageID, message string) ErrorStatus {
	return ErrorStatus{statusRecord{stageID: stageID, message: message}}
}
