package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

// SnapshotArchiver mirrors session snapshots into S3 (or an S3-compatible
// store), keyed by sessionID plus a timestamp so history is retained rather
// than overwritten. It applies no size threshold: Archive uploads whatever
// snapshot it is given. It is
// best-effort: callers log and continue on error rather than failing a
// workflow run over archival (spec.md §6 "Persisted state").
type SnapshotArchiver struct {
	client *s3.Client
	bucket string
	prefix string
	log    zerolog.Logger
}

// NewSnapshotArchiver builds an archiver against the given bucket using the
// default AWS credential chain (env vars, shared config, IAM role).
func NewSnapshotArchiver(ctx context.Context, bucket, prefix string, log zerolog.Logger) (*SnapshotArchiver, error) {
	if bucket == "" {
		return nil, errors.New("store: s3 bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: load aws config: %w", err)
	}
	return &SnapshotArchiver{
		client: s3.NewFromConfig(awsCfg),
		bucket: bucket,
		prefix: strings.TrimSuffix(prefix, "/"),
		log:    log,
	}, nil
}

func (a *SnapshotArchiver) key(sessionID string, at time.Time) string {
	k := fmt.Sprintf("%s/%s.json", sessionID, at.UTC().Format("20060102T150405.000Z"))
	if a.prefix == "" {
		return k
	}
	return a.prefix + "/" + k
}

// Archive uploads one snapshot for sessionID at the given time. Errors are
// returned to the caller (internal/store/session_postgres.go's SessionStore
// stays the source of truth; this is a secondary best-effort mirror, so
// callers are expected to log.Warn and continue rather than abort).
func (a *SnapshotArchiver) Archive(ctx context.Context, sessionID string, at time.Time, data []byte) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.key(sessionID, at)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("store: archive snapshot: %w", err)
	}
	return nil
}

// ListArchived returns the archived snapshot keys for sessionID, oldest
// first is not guaranteed by S3 listing order but keys embed a sortable
// timestamp so callers can sort client-side if needed.
func (a *SnapshotArchiver) ListArchived(ctx context.Context, sessionID string) ([]string, error) {
	prefix := sessionID + "/"
	if a.prefix != "" {
		prefix = a.prefix + "/" + prefix
	}
	out, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("store: list archived snapshots: %w", err)
	}
	keys := make([]string, 0, len(out.Contents))
	for _, obj := range out.Contents {
		keys = append(keys, aws.ToString(obj.Key))
	}
	return keys, nil
}

// FetchArchived retrieves one archived snapshot by its full key.
func (a *SnapshotArchiver) FetchArchived(ctx context.Context, key string) ([]byte, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("store: fetch archived snapshot: %w", errSnapshotNotFound)
		}
		return nil, fmt.Errorf("store: fetch archived snapshot: %w", err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

var errSnapshotNotFound = errors.New("archived snapshot not found")
