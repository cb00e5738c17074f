package reconcile

import "fmt"

// OutcomeKind is the action the reconciler takes for one source file.
type OutcomeKind int

const (
	// OutcomeSkip leaves the stored records untouched.
	OutcomeSkip OutcomeKind = iota
	// OutcomeProcess indexes a file with no stored records.
	OutcomeProcess
	// OutcomeReprocess deletes the file's stored records and writes
	// fresh ones.
	OutcomeReprocess
)

// String returns the outcome name as it appears in logs.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSkip:
		return "skip"
	case OutcomeProcess:
		return "process"
	case OutcomeReprocess:
		return "reprocess"
	default:
		return "unknown"
	}
}

// DecisionInput is everything Decide looks at for one file: what the
// snapshot recorded and what the current run selected.
type DecisionInput struct {
	// Indexed is true when the snapshot holds records for this source.
	Indexed bool
	// StoredProfile is the profile recorded in the stored payloads.
	StoredProfile string
	// SelectedProfile is what this run's selection resolved to.
	SelectedProfile string
	// MixedProfiles is true when the source's records disagree on
	// their stored profile.
	MixedProfiles bool
	// StoredHash is the content hash recorded in the stored payloads.
	StoredHash string
	// CurrentHash is the hash of the file's current preprocessed
	// text. Only consulted when VerifyContent is set.
	CurrentHash string
	// VerifyContent enables the content-hash tripwire.
	VerifyContent bool
}

// Outcome is a decision with its human-readable reason.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
}

// Decide maps one file's stored state and current selection to an
// outcome. Pure: same input, same outcome, no I/O. Rules apply in
// order and the first match wins.
func Decide(in DecisionInput) Outcome {
	if !in.Indexed {
		return Outcome{Kind: OutcomeProcess, Reason: "new file"}
	}
	if in.MixedProfiles {
		return Outcome{Kind: OutcomeReprocess, Reason: "inconsistent records"}
	}
	if in.StoredProfile != in.SelectedProfile {
		return Outcome{
			Kind:   OutcomeReprocess,
			Reason: fmt.Sprintf("profile changed %s -> %s", in.StoredProfile, in.SelectedProfile),
		}
	}
	if in.VerifyContent && in.StoredHash != in.CurrentHash {
		return Outcome{Kind: OutcomeReprocess, Reason: "content changed"}
	}
	return Outcome{Kind: OutcomeSkip, Reason: "up to date"}
}
