package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/bol"
	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/queue"
)

func testJob(key int64) *queue.Job {
	created := time.Unix(0, key).UTC()
	return &queue.Job{
		Key:           key,
		ID:            "job-id",
		SchemaVersion: queue.SchemaVersion,
		Metadata: bol.Metadata{
			Company:       "qlm",
			DriverName:    "R. Alvarez",
			LoadNumber:    "123456",
			PickupCity:    "Tulsa",
			PickupState:   "OK",
			DeliveryCity:  "Memphis",
			DeliveryState: "TN",
			Description:   "pallets, shrink wrapped",
			DocumentType:  "bol",
		},
		Attachments: []bol.Attachment{
			{
				Name:         "bol-front.jpg",
				MIMEType:     "image/jpeg",
				Size:         8,
				LastModified: created,
				Content:      []byte("jpegdata"),
			},
			{
				Name:         "freight.jpg",
				MIMEType:     "image/jpeg",
				Size:         9,
				LastModified: created,
				Content:      []byte("jpegdata2"),
			},
		},
		Status:    queue.StatusPending,
		CreatedAt: created,
	}
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "bolterm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_JobRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	job := testJob(time.Now().UnixNano())

	require.NoError(t, store.PutJob(ctx, job))

	got, err := store.GetJob(ctx, job.Key)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, queue.SchemaVersion, got.SchemaVersion)
	assert.Equal(t, job.Metadata, got.Metadata)
	assert.Equal(t, queue.StatusPending, got.Status)
	require.Len(t, got.Attachments, 2)
	assert.Equal(t, "bol-front.jpg", got.Attachments[0].Name)
	assert.Equal(t, []byte("jpegdata"), got.Attachments[0].Content)
	assert.Equal(t, []byte("jpegdata2"), got.Attachments[1].Content)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "bolterm.db")

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)

	ctx := context.Background()
	job := testJob(time.Now().UnixNano())
	require.NoError(t, store.PutJob(ctx, job))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	count, err := reopened.CountJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := reopened.GetJob(ctx, job.Key)
	require.NoError(t, err)
	require.Len(t, got.Attachments, 2)
	assert.Equal(t, []byte("jpegdata"), got.Attachments[0].Content)
}

func TestSQLiteStore_PutReplacesPriorContent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	job := testJob(time.Now().UnixNano())
	require.NoError(t, store.PutJob(ctx, job))

	job.Status = queue.StatusFailed
	job.AttemptCount = 3
	job.LastError = "upload endpoint returned 500"
	job.Attachments = job.Attachments[:1]
	require.NoError(t, store.PutJob(ctx, job))

	got, err := store.GetJob(ctx, job.Key)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusFailed, got.Status)
	assert.Equal(t, 3, got.AttemptCount)
	assert.Equal(t, "upload endpoint returned 500", got.LastError)
	require.Len(t, got.Attachments, 1)
}

func TestSQLiteStore_GetMissingJob(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	_, err := store.GetJob(context.Background(), 42)
	require.ErrorIs(t, err, queue.ErrJobNotFound)
}

func TestSQLiteStore_DeleteIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	job := testJob(time.Now().UnixNano())
	require.NoError(t, store.PutJob(ctx, job))

	require.NoError(t, store.DeleteJob(ctx, job.Key))
	require.NoError(t, store.DeleteJob(ctx, job.Key))

	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestSQLiteStore_ListKeysAndCount(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UnixNano()
	for i := int64(0); i < 3; i++ {
		require.NoError(t, store.PutJob(ctx, testJob(base+i)))
	}

	keys, err := store.ListKeys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 3)

	count, err := store.CountJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSQLiteStore_NewerSchemaVersionIsMalformed(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()
	job := testJob(time.Now().UnixNano())
	job.SchemaVersion = queue.SchemaVersion + 1
	require.NoError(t, store.PutJob(ctx, job))

	_, err := store.GetJob(ctx, job.Key)
	require.Error(t, err)

	var malformed *queue.MalformedJobError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, job.Key, malformed.Key)
}
