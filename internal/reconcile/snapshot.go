package reconcile

import (
	"github.com/jcascante/brew-master-ai/internal/store"
)

// sourceState is the snapshot view of one indexed source: its record
// IDs and the profile/hash its payloads recorded.
type sourceState struct {
	// IDs are the record IDs stored for this source.
	IDs []string
	// Profile is the recorded profile when all records agree.
	Profile string
	// Mixed is true when records disagree on their profile, which
	// means stale duplicates from interrupted or legacy runs.
	Mixed bool
	// ContentHash is the recorded content hash (first seen).
	ContentHash string
}

// snapshot groups scroll points by source identity. Records written
// before identities were stored fall back to the source_file basename;
// records carrying neither key cannot be attributed to any file and
// are left out (and therefore never deleted).
type snapshot struct {
	sources        map[string]*sourceState
	unattributable int
}

func buildSnapshot(points []store.ScrollPoint) *snapshot {
	snap := &snapshot{sources: make(map[string]*sourceState)}

	for _, p := range points {
		identity := payloadString(p.Payload, "source_identity")
		if identity == "" {
			identity = payloadString(p.Payload, "source_file")
		}
		if identity == "" {
			snap.unattributable++
			continue
		}

		state, ok := snap.sources[identity]
		if !ok {
			state = &sourceState{}
			snap.sources[identity] = state
		}
		state.IDs = append(state.IDs, p.ID)

		profile := payloadString(p.Payload, "profile_used")
		if profile == "" {
			// Key used by the original ingestion scripts.
			profile = payloadString(p.Payload, "config_used")
		}
		switch {
		case len(state.IDs) == 1:
			state.Profile = profile
		case state.Profile != profile:
			state.Mixed = true
		}

		if state.ContentHash == "" {
			state.ContentHash = payloadString(p.Payload, "content_hash")
		}
	}

	return snap
}

// lookup returns the state for identity, or nil when the source is not
// indexed.
func (s *snapshot) lookup(identity string) *sourceState {
	return s.sources[identity]
}

func payloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	v, _ := payload[key].(string)
	return v
}
