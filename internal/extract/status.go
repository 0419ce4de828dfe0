package extract

// Status is the tiered extraction outcome for a section or a document.
type Status string

const (
	StatusNotProcessed Status = "not_processed"
	StatusSuccess      Status = "success"
	StatusPartial      Status = "partial"
	StatusFailed       Status = "failed"
)

// Overall combines the per-section statuses into one document status. The
// items section dominates: a successful items extraction makes the document
// a success, a partial one caps it at partial. With items failed the
// document can reach partial only when header or summary succeeded.
func Overall(header, items, summary Status) Status {
	switch {
	case items == StatusSuccess:
		return StatusSuccess
	case items == StatusPartial:
		return StatusPartial
	case header == StatusSuccess || summary == StatusSuccess:
		return StatusPartial
	default:
		return StatusFailed
	}
}

// mergeStatus folds one more page-level outcome into a section's running
// status. Mixed success and failure across pages degrades to partial.
func mergeStatus(current, next Status) Status {
	if next == StatusNotProcessed {
		return current
	}
	switch current {
	case StatusNotProcessed:
		return next
	case StatusSuccess:
		if next == StatusSuccess {
			return StatusSuccess
		}
		return StatusPartial
	case StatusPartial:
		return StatusPartial
	case StatusFailed:
		if next == StatusFailed {
			return StatusFailed
		}
		return StatusPartial
	}
	return next
}
