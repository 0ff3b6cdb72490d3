package tts_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tavernvoice/tts-adapter/internal/tts"
)

func TestSliceStream_SingleConsumption(t *testing.T) {
	ctx := context.Background()
	s := tts.SliceStream([]byte("a"), []byte("b"))

	chunk, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", string(chunk))

	chunk, err = s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", string(chunk))

	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)

	// Exhausted streams stay exhausted.
	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)

	require.NoError(t, s.Close())
	_, err = s.Next(ctx)
	assert.ErrorIs(t, err, tts.ErrStreamClosed)
}

func TestMapStream_IsLazy(t *testing.T) {
	pulled := 0
	src := tts.NewStream(func(context.Context) ([]byte, error) {
		pulled++
		if pulled > 3 {
			return nil, io.EOF
		}
		return []byte("x"), nil
	}, nil)

	mapped := tts.MapStream(src, func(b []byte) ([]byte, error) {
		return bytes.ToUpper(b), nil
	})
	assert.Equal(t, 0, pulled, "wrapping must not read the source")

	chunk, err := mapped.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "X", string(chunk))
	assert.Equal(t, 1, pulled)
}

func TestMapStream_ClosesSource(t *testing.T) {
	closed := false
	src := tts.NewStream(func(context.Context) ([]byte, error) { return nil, io.EOF }, func() error {
		closed = true
		return nil
	})

	require.NoError(t, tts.MapStream(src, func(b []byte) ([]byte, error) { return b, nil }).Close())
	assert.True(t, closed)
}

func TestBufferStream(t *testing.T) {
	data, err := tts.BufferStream(context.Background(), tts.SliceStream([]byte("ab"), []byte("cd")))
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(data))
}

func TestBufferStream_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	src := tts.NewStream(func(context.Context) ([]byte, error) { return nil, boom }, nil)

	_, err := tts.BufferStream(context.Background(), src)
	assert.ErrorIs(t, err, boom)
}

type flushRecorder struct {
	bytes.Buffer
	flushes int
}

func (f *flushRecorder) Flush() { f.flushes++ }

func TestCopy_FlushesPerChunk(t *testing.T) {
	var dst flushRecorder
	n, err := tts.Copy(context.Background(), &dst, tts.SliceStream([]byte("ab"), nil, []byte("c")))
	require.NoError(t, err)

	assert.Equal(t, int64(3), n)
	assert.Equal(t, "abc", dst.String())
	assert.Equal(t, 2, dst.flushes, "empty chunks are skipped")
}

func TestCopy_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var dst bytes.Buffer
	_, err := tts.Copy(ctx, &dst, tts.SliceStream([]byte("a")))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, dst.Len())
}

func TestReaderStream(t *testing.T) {
	rc := io.NopCloser(strings.NewReader("abcdefg"))
	data, err := tts.BufferStream(context.Background(), tts.ReaderStream(rc, 3))
	require.NoError(t, err)
	assert.Equal(t, "abcdefg", string(data))
}
