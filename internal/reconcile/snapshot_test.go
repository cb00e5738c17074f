package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcascante/brew-master-ai/internal/store"
)

func point(id, identity, profile, hash string) store.ScrollPoint {
	payload := map[string]any{}
	if identity != "" {
		payload["source_identity"] = identity
	}
	if profile != "" {
		payload["profile_used"] = profile
	}
	if hash != "" {
		payload["content_hash"] = hash
	}
	return store.ScrollPoint{ID: id, Payload: payload}
}

func TestBuildSnapshot_GroupsBySource(t *testing.T) {
	snap := buildSnapshot([]store.ScrollPoint{
		point("id-1", "episodes/ep1.txt", "podcast_episode", "h1"),
		point("id-2", "episodes/ep1.txt", "podcast_episode", "h1"),
		point("id-3", "recipes/ipa.txt", "general_brewing", "h2"),
	})

	require.Len(t, snap.sources, 2)

	ep := snap.lookup("episodes/ep1.txt")
	require.NotNil(t, ep)
	assert.Equal(t, []string{"id-1", "id-2"}, ep.IDs)
	assert.Equal(t, "podcast_episode", ep.Profile)
	assert.Equal(t, "h1", ep.ContentHash)
	assert.False(t, ep.Mixed)

	ipa := snap.lookup("recipes/ipa.txt")
	require.NotNil(t, ipa)
	assert.Equal(t, []string{"id-3"}, ipa.IDs)
	assert.Equal(t, "general_brewing", ipa.Profile)
}

func TestBuildSnapshot_DetectsMixedProfiles(t *testing.T) {
	snap := buildSnapshot([]store.ScrollPoint{
		point("id-1", "episodes/ep1.txt", "podcast_episode", ""),
		point("id-2", "episodes/ep1.txt", "general_brewing", ""),
	})

	ep := snap.lookup("episodes/ep1.txt")
	require.NotNil(t, ep)
	assert.True(t, ep.Mixed)
	assert.Len(t, ep.IDs, 2)
}

func TestBuildSnapshot_MissingProfileIsNotMixed(t *testing.T) {
	// Records written by the same run always share a profile; a record
	// with no profile key at all still groups cleanly.
	snap := buildSnapshot([]store.ScrollPoint{
		point("id-1", "notes/gear.txt", "", ""),
		point("id-2", "notes/gear.txt", "", ""),
	})

	gear := snap.lookup("notes/gear.txt")
	require.NotNil(t, gear)
	assert.False(t, gear.Mixed)
	assert.Empty(t, gear.Profile)
}

func TestBuildSnapshot_LegacySourceFileFallback(t *testing.T) {
	snap := buildSnapshot([]store.ScrollPoint{
		{ID: "id-1", Payload: map[string]any{
			"source_file":  "ep1.txt",
			"profile_used": "podcast_episode",
		}},
	})

	ep := snap.lookup("ep1.txt")
	require.NotNil(t, ep)
	assert.Equal(t, []string{"id-1"}, ep.IDs)
}

func TestBuildSnapshot_LegacyConfigUsedFallback(t *testing.T) {
	snap := buildSnapshot([]store.ScrollPoint{
		{ID: "id-1", Payload: map[string]any{
			"source_identity": "episodes/ep1.txt",
			"config_used":     "podcast_episode",
		}},
	})

	ep := snap.lookup("episodes/ep1.txt")
	require.NotNil(t, ep)
	assert.Equal(t, "podcast_episode", ep.Profile)
}

func TestBuildSnapshot_PrefersProfileUsedOverLegacyKey(t *testing.T) {
	snap := buildSnapshot([]store.ScrollPoint{
		{ID: "id-1", Payload: map[string]any{
			"source_identity": "episodes/ep1.txt",
			"profile_used":    "podcast_episode",
			"config_used":     "general_brewing",
		}},
	})

	ep := snap.lookup("episodes/ep1.txt")
	require.NotNil(t, ep)
	assert.Equal(t, "podcast_episode", ep.Profile)
}

func TestBuildSnapshot_UnattributableRecords(t *testing.T) {
	snap := buildSnapshot([]store.ScrollPoint{
		{ID: "id-1", Payload: map[string]any{"text": "no identity here"}},
		{ID: "id-2", Payload: nil},
		{ID: "id-3", Payload: map[string]any{"source_identity": 42}},
		point("id-4", "recipes/ipa.txt", "general_brewing", ""),
	})

	// Unattributable records are counted but never grouped, so orphan
	// deletion can never touch them.
	assert.Equal(t, 3, snap.unattributable)
	require.Len(t, snap.sources, 1)
	assert.NotNil(t, snap.lookup("recipes/ipa.txt"))
}

func TestBuildSnapshot_ContentHashFirstNonEmpty(t *testing.T) {
	snap := buildSnapshot([]store.ScrollPoint{
		point("id-1", "episodes/ep1.txt", "podcast_episode", ""),
		point("id-2", "episodes/ep1.txt", "podcast_episode", "h2"),
		point("id-3", "episodes/ep1.txt", "podcast_episode", "h3"),
	})

	ep := snap.lookup("episodes/ep1.txt")
	require.NotNil(t, ep)
	assert.Equal(t, "h2", ep.ContentHash)
}

func TestBuildSnapshot_Empty(t *testing.T) {
	snap := buildSnapshot(nil)

	assert.Empty(t, snap.sources)
	assert.Zero(t, snap.unattributable)
	assert.Nil(t, snap.lookup("anything"))
}

func TestSnapshot_LookupMiss(t *testing.T) {
	snap := buildSnapshot([]store.ScrollPoint{
		point("id-1", "recipes/ipa.txt", "general_brewing", ""),
	})

	assert.Nil(t, snap.lookup("recipes/stout.txt"))
}
