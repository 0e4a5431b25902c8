package forecast

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/presage-dev/presage/pkg/protocol"
	"github.com/presage-dev/presage/pkg/state"
)

// Snapshot is a portable dump of learned patterns, used to warm a
// fresh store from a previous run. Timestamps are not carried over:
// restored entries start with fresh access times so eviction scoring
// is not skewed by a past lifetime.
type Snapshot struct {
	SavedAt time.Time       `json:"savedAt"`
	Entries []SnapshotEntry `json:"entries"`
}

// SnapshotEntry is one pattern in wire form. Patches are stored in the
// binary patch-list encoding; JSON base64s the bytes.
type SnapshotEntry struct {
	Signature        state.Signature `json:"signature"`
	Patches          []byte          `json:"patches"`
	Confidence       float64         `json:"confidence"`
	ObservationCount uint64          `json:"observationCount"`
	CorrectCount     uint64          `json:"correctCount"`
}

// Snapshot captures all current entries.
func (s *Store) Snapshot() *Snapshot {
	snap := &Snapshot{SavedAt: time.Now()}
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, e := range sh.entries {
			enc := protocol.NewEncoder()
			protocol.EncodePatchList(enc, e.Patches)
			wire := make([]byte, enc.Len())
			copy(wire, enc.Bytes())

			snap.Entries = append(snap.Entries, SnapshotEntry{
				Signature:        e.Signature,
				Patches:          wire,
				Confidence:       e.Confidence,
				ObservationCount: e.ObservationCount,
				CorrectCount:     e.CorrectCount,
			})
		}
		sh.mu.Unlock()
	}
	return snap
}

// Restore loads a snapshot into the store, replacing any entry that
// shares a signature. The usual budget enforcement runs afterward, so
// restoring into a smaller budget simply evicts down to it.
func (s *Store) Restore(snap *Snapshot) error {
	now := time.Now()
	for _, se := range snap.Entries {
		patches, err := protocol.DecodePatchList(protocol.NewDecoder(se.Patches))
		if err != nil {
			return err
		}
		key := se.Signature.Key()
		size := int64(protocol.PatchListSize(patches))
		sh := s.shardFor(key)

		sh.mu.Lock()
		if prior, ok := sh.entries[key]; ok {
			s.totalBytes.Add(-prior.SizeBytes)
			s.entryCount.Add(-1)
		}
		sh.entries[key] = &Entry{
			Signature:        se.Signature,
			Patches:          patches,
			Confidence:       se.Confidence,
			ObservationCount: se.ObservationCount,
			CorrectCount:     se.CorrectCount,
			LastAccessed:     now,
			CreatedAt:        now,
			SizeBytes:        size,
		}
		s.totalBytes.Add(size)
		s.entryCount.Add(1)
		sh.mu.Unlock()
	}

	s.EvictIfOverBudget()
	s.updateGauges()
	return nil
}

// SnapshotStore persists snapshots between runs.
type SnapshotStore interface {
	Save(ctx context.Context, data []byte) error
	Load(ctx context.Context) ([]byte, error)
}

// SaveSnapshot serializes the current patterns and writes them to ss.
func (s *Store) SaveSnapshot(ctx context.Context, ss SnapshotStore) error {
	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		return err
	}
	return ss.Save(ctx, data)
}

// LoadSnapshot reads a snapshot from ss and restores it.
func (s *Store) LoadSnapshot(ctx context.Context, ss SnapshotStore) error {
	data, err := ss.Load(ctx)
	if err != nil {
		return err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	return s.Restore(&snap)
}

// S3SnapshotStore keeps snapshots in an S3 object.
//
// Example:
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	ss := forecast.NewS3SnapshotStore(s3.NewFromConfig(cfg), "my-bucket", "presage/patterns.json")
type S3SnapshotStore struct {
	client *s3.Client
	bucket string
	key    string
}

// NewS3SnapshotStore creates a snapshot store backed by one S3 object.
func NewS3SnapshotStore(client *s3.Client, bucket, key string) *S3SnapshotStore {
	return &S3SnapshotStore{client: client, bucket: bucket, key: key}
}

// Save uploads the snapshot, overwriting the previous one.
func (s *S3SnapshotStore) Save(ctx context.Context, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	return err
}

// Load downloads the most recent snapshot.
func (s *S3SnapshotStore) Load(ctx context.Context) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
