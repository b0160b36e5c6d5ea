package stream_test

import (
	"bytes"
	"compress/gzip"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/regionomics/encoding/stream"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

const tableText = "region\tgene\tval\nchr1:1-2\tGENE1\t5\nchr1:10-20\tGENE2\t\n"

func readAll(t *testing.T, path string) string {
	ctx := vcontext.Background()
	r, err := stream.Open(ctx, path)
	assert.NoError(t, err)
	data, err := ioutil.ReadAll(r)
	assert.NoError(t, err)
	assert.NoError(t, r.Close())
	return string(data)
}

func writeAll(t *testing.T, path, data string) {
	ctx := vcontext.Background()
	w, err := stream.Create(ctx, path)
	assert.NoError(t, err)
	_, err = w.Write([]byte(data))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
}

func gzipBytes(t *testing.T, data string) []byte {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(data))
	assert.NoError(t, err)
	assert.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestRoundTrip(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	for _, name := range []string{"plain.tsv", "compressed.tsv.gz", "blocked.tsv.bgz"} {
		path := filepath.Join(tmpDir, name)
		writeAll(t, path, tableText)
		expect.EQ(t, readAll(t, path), tableText, "path %s", name)
	}
}

func TestCreateCompresses(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	path := filepath.Join(tmpDir, "out.tsv.gz")
	writeAll(t, path, tableText)
	raw, err := ioutil.ReadFile(path)
	assert.NoError(t, err)
	expect.True(t, stream.IsGzip(raw))

	path = filepath.Join(tmpDir, "out.tsv")
	writeAll(t, path, tableText)
	raw, err = ioutil.ReadFile(path)
	assert.NoError(t, err)
	expect.EQ(t, string(raw), tableText)
}

func TestCreateMakesParentDirs(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	path := filepath.Join(tmpDir, "a", "b", "c", "out.tsv")
	writeAll(t, path, "x\n")
	expect.EQ(t, readAll(t, path), "x\n")
}

func TestCreateMkdirFailure(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	// A regular file where a parent directory should go.
	blocker := filepath.Join(tmpDir, "blocker")
	assert.NoError(t, ioutil.WriteFile(blocker, []byte("x"), 0644))
	_, err := stream.Create(vcontext.Background(), filepath.Join(blocker, "sub", "out.tsv"))
	expect.NotNil(t, err)
}

func TestCreateRemotePathMakesNoLocalDirs(t *testing.T) {
	// No implementation is registered for s3 in this test binary.
	_, err := stream.Create(vcontext.Background(), "s3://regionomics-test/out/peaks.tsv")
	expect.NotNil(t, err)
	_, err = os.Stat("s3:")
	expect.True(t, os.IsNotExist(err), "stat s3: %v", err)
}

func TestDiscard(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()

	for _, name := range []string{"plain.tsv", "compressed.tsv.gz", "blocked.tsv.bgz"} {
		path := filepath.Join(tmpDir, name)
		w, err := stream.Create(ctx, path)
		assert.NoError(t, err)
		_, err = w.Write([]byte(tableText))
		assert.NoError(t, err)
		w.Discard()
		_, err = os.Stat(path)
		expect.True(t, os.IsNotExist(err), "path %s: %v", name, err)
		// Close after Discard is a no-op.
		expect.NoError(t, w.Close())
	}

	// A committed file is left alone by a later, failed attempt.
	path := filepath.Join(tmpDir, "kept.tsv")
	writeAll(t, path, tableText)
	w, err := stream.Create(ctx, path)
	assert.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	assert.NoError(t, err)
	w.Discard()
	expect.EQ(t, readAll(t, path), tableText)

	var buf bytes.Buffer
	sw := stream.NewWriter(&buf)
	_, err = sw.Write([]byte("dropped"))
	assert.NoError(t, err)
	sw.Discard()
	expect.EQ(t, buf.Len(), 0)
}

func TestOpenDetectsGzipMagic(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	path := filepath.Join(tmpDir, "no_extension.bed")
	assert.NoError(t, ioutil.WriteFile(path, gzipBytes(t, tableText), 0644))
	expect.EQ(t, readAll(t, path), tableText)
}

func TestOpenRejectsFakeGzip(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	path := filepath.Join(tmpDir, "lies.tsv.gz")
	assert.NoError(t, ioutil.WriteFile(path, []byte(tableText), 0644))
	_, err := stream.Open(vcontext.Background(), path)
	expect.NotNil(t, err)
	expect.True(t, errors.Is(errors.Integrity, err))
}

func TestOpenErrors(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()

	_, err := stream.Open(ctx, filepath.Join(tmpDir, "missing.tsv"))
	expect.NotNil(t, err)

	// The magic-byte probe needs two bytes.
	short := filepath.Join(tmpDir, "short.tsv")
	assert.NoError(t, ioutil.WriteFile(short, []byte("x"), 0644))
	_, err = stream.Open(ctx, short)
	expect.NotNil(t, err)
}

func TestNewWriterDoesNotCloseUnderlying(t *testing.T) {
	var buf bytes.Buffer
	w := stream.NewWriter(&buf)
	_, err := w.Write([]byte("abc"))
	assert.NoError(t, err)
	expect.EQ(t, buf.Len(), 0)
	assert.NoError(t, w.Close())
	expect.EQ(t, buf.String(), "abc")
	// Closing twice is harmless.
	assert.NoError(t, w.Close())
}

func TestCreateOutput(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := vcontext.Background()

	var stdout bytes.Buffer
	w, err := stream.CreateOutput(ctx, stream.Stdout, &stdout)
	assert.NoError(t, err)
	_, err = w.Write([]byte("a\tb\n"))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	expect.EQ(t, stdout.String(), "a\tb\n")

	path := filepath.Join(tmpDir, "out.tsv")
	w, err = stream.CreateOutput(ctx, path, &stdout)
	assert.NoError(t, err)
	_, err = w.Write([]byte("c\n"))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	data, err := ioutil.ReadFile(path)
	assert.NoError(t, err)
	expect.EQ(t, string(data), "c\n")
	expect.EQ(t, stdout.String(), "a\tb\n")
}
