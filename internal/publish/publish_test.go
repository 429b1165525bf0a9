package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctmm/msqc/internal/config"
)

var day = time.Date(2013, 1, 4, 15, 0, 0, 0, time.UTC)

func TestWebDir(t *testing.T) {
	assert.Equal(t, filepath.Join("/web", "2013", "01", "04", "s1"), WebDir("/web", "s1", day))
	assert.Equal(t, "reports/2013/01/04/s1", ObjectPrefix("reports", "s1", day))
	assert.Equal(t, "2013/01/04/s1", ObjectPrefix("", "s1", day))
}

func TestPrepareWebDir(t *testing.T) {
	root := t.TempDir()
	dir, err := PrepareWebDir(root, "s1", day)
	require.NoError(t, err)
	fi, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())

	again, err := PrepareWebDir(root, "s1", day)
	require.NoError(t, err, "existing folder is fine")
	assert.Equal(t, dir, again)
}

type fakeStore struct {
	exists   bool
	made     int
	checks   int
	existErr error
	putErr   error
	puts     map[string]string
}

func (f *fakeStore) BucketExists(context.Context, string) (bool, error) {
	f.checks++
	return f.exists, f.existErr
}

func (f *fakeStore) MakeBucket(context.Context, string, minio.MakeBucketOptions) error {
	f.made++
	f.exists = true
	return nil
}

func (f *fakeStore) FPutObject(_ context.Context, _, object, _ string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	if f.puts == nil {
		f.puts = map[string]string{}
	}
	f.puts[object] = opts.ContentType
	return minio.UploadInfo{Key: object}, nil
}

func writeReport(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range map[string]string{
		"s1_report.html":    "<html></html>",
		"metrics.json":      "{}",
		"s1_heatmap.pdf":    "%PDF",
		"extra/s1_ions.pdf": "%PDF",
	} {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}
	return dir
}

func TestS3Publish(t *testing.T) {
	store := &fakeStore{}
	s := &S3{client: store, bucket: "qc", region: "us-east-1"}
	dir := writeReport(t)

	require.NoError(t, s.Publish(context.Background(), dir, "reports/2013/01/04/s1"))
	require.NoError(t, s.Publish(context.Background(), dir, "reports/2013/01/04/s1"))
	assert.Equal(t, 1, store.made, "bucket created once")

	var keys []string
	for k := range store.puts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{
		"reports/2013/01/04/s1/extra/s1_ions.pdf",
		"reports/2013/01/04/s1/metrics.json",
		"reports/2013/01/04/s1/s1_heatmap.pdf",
		"reports/2013/01/04/s1/s1_report.html",
	}, keys)
	assert.Equal(t, "application/json", store.puts["reports/2013/01/04/s1/metrics.json"])
	assert.Equal(t, "application/pdf", store.puts["reports/2013/01/04/s1/s1_heatmap.pdf"])
}

func TestS3Publish_Errors(t *testing.T) {
	dir := writeReport(t)

	s := &S3{client: &fakeStore{existErr: errors.New("dial tcp: refused")}, bucket: "qc"}
	assert.ErrorContains(t, s.Publish(context.Background(), dir, "k"), "ensure bucket")

	s = &S3{client: &fakeStore{exists: true, putErr: errors.New("access denied")}, bucket: "qc"}
	assert.ErrorContains(t, s.Publish(context.Background(), dir, "k"), "access denied")
}

func TestS3Publish_BucketCheckRetriedAfterFailure(t *testing.T) {
	dir := writeReport(t)
	store := &fakeStore{exists: true, existErr: errors.New("dial tcp: connection refused")}
	s := &S3{client: store, bucket: "qc"}

	assert.ErrorContains(t, s.Publish(context.Background(), dir, "k"), "connection refused")
	assert.Empty(t, store.puts)

	store.existErr = nil
	require.NoError(t, s.Publish(context.Background(), dir, "k"))
	assert.Len(t, store.puts, 4)

	require.NoError(t, s.Publish(context.Background(), dir, "k"))
	assert.Equal(t, 2, store.checks, "bucket not checked again once it succeeded")
}

func TestNewS3_Validation(t *testing.T) {
	_, err := NewS3(config.S3Config{Bucket: "qc"})
	assert.Error(t, err)
	_, err = NewS3(config.S3Config{Endpoint: "localhost:9000"})
	assert.Error(t, err)

	s, err := NewS3(config.S3Config{Endpoint: "localhost:9000", Bucket: "qc", AccessKey: "a", SecretKey: "b"})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", s.region)
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Publish(context.Background(), "/nowhere", "k"))
}
