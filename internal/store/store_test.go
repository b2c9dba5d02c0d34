package store

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSnapshotArchiver_KeyIncludesPrefixAndSessionAndTimestamp(t *testing.T) {
	t.Parallel()
	a := &SnapshotArchiver{bucket: "finyx-snapshots", prefix: "sessions"}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	k := a.key("sess-1", at)
	require.Equal(t, "sessions/sess-1/20260102T030405.000Z.json", k)
}

func TestSnapshotArchiver_KeyWithoutPrefix(t *testing.T) {
	t.Parallel()
	a := &SnapshotArchiver{bucket: "finyx-snapshots"}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	k := a.key("sess-1", at)
	require.Equal(t, "sess-1/20260102T030405.000Z.json", k)
}

func TestNewPostgresSessionStore_RejectsEmptyDSN(t *testing.T) {
	t.Parallel()
	_, err := NewPostgresSessionStore(nil, "", zerolog.Nop())
	require.Error(t, err)
}

func TestNewSnapshotArchiver_RejectsEmptyBucket(t *testing.T) {
	t.Parallel()
	_, err := NewSnapshotArchiver(nil, "", "", zerolog.Nop())
	require.Error(t, err)
}
