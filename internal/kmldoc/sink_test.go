package kmldoc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = params
	b, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = b
	return &s3.PutObjectOutput{}, nil
}

func TestFileSink_Put(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	loc, err := FileSink{Dir: dir}.Put(context.Background(), "out/static.kml", []byte("<kml/>"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "out", "static.kml"), loc)

	got, err := os.ReadFile(loc)
	require.NoError(t, err)
	require.Equal(t, "<kml/>", string(got))

	entries, err := os.ReadDir(filepath.Join(dir, "out"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file is cleaned up")

	_, err = FileSink{Dir: dir}.Put(context.Background(), "", nil)
	require.Error(t, err)
}

func TestWriterSink_Put(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	loc, err := WriterSink{W: &buf}.Put(context.Background(), "ignored", []byte("doc"))
	require.NoError(t, err)
	require.Equal(t, "-", loc)
	require.Equal(t, "doc", buf.String())
}

func TestS3Sink_Put(t *testing.T) {
	t.Parallel()

	t.Run("uploads under prefix", func(t *testing.T) {
		t.Parallel()
		fp := &fakePutter{}
		s := &S3Sink{client: fp, bucket: "viz", prefix: "kml/"}
		loc, err := s.Put(context.Background(), "static.kml", []byte("<kml/>"))
		require.NoError(t, err)
		require.Equal(t, "s3://viz/kml/static.kml", loc)
		require.Equal(t, "viz", aws.ToString(fp.input.Bucket))
		require.Equal(t, "kml/static.kml", aws.ToString(fp.input.Key))
		require.Equal(t, ContentType, aws.ToString(fp.input.ContentType))
		require.Equal(t, "<kml/>", string(fp.body))
	})

	t.Run("empty name gets a generated key", func(t *testing.T) {
		t.Parallel()
		fp := &fakePutter{}
		s := &S3Sink{client: fp, bucket: "viz"}
		loc, err := s.Put(context.Background(), "", []byte("x"))
		require.NoError(t, err)
		require.True(t, strings.HasSuffix(loc, ".kml"), loc)
		require.True(t, strings.HasPrefix(loc, "s3://viz/"), loc)
	})

	t.Run("upload errors are wrapped", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		s := &S3Sink{client: &fakePutter{err: boom}, bucket: "viz"}
		_, err := s.Put(context.Background(), "a.kml", nil)
		require.ErrorIs(t, err, boom)
	})

	t.Run("bucket is required", func(t *testing.T) {
		t.Parallel()
		_, err := NewS3Sink(context.Background(), S3Config{})
		require.Error(t, err)
	})
}
