package tts

import (
	"context"
	"errors"
	"io"
	"sync"
)

// DefaultChunkSize is the read size used when adapting an io.Reader.
const DefaultChunkSize = 32 * 1024

// ErrStreamClosed is returned by Next after Close.
var ErrStreamClosed = errors.New("stream closed")

// Stream is a lazy, single-consumption sequence of audio chunks.
// Next returns io.EOF once the sequence is exhausted. Handlers that need to
// see the whole payload must opt in through BufferStream; everything else
// should wrap the stream so chunks keep flowing as they arrive.
type Stream interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// =============================================================================
// FUNC STREAM
// =============================================================================

type funcStream struct {
	mu     sync.Mutex
	next   func(ctx context.Context) ([]byte, error)
	close  func() error
	done   bool
	closed bool
}

// NewStream builds a Stream from a next function and an optional close hook.
// Once next returns an error (including io.EOF) the stream stays finished.
func NewStream(next func(ctx context.Context) ([]byte, error), closeFn func() error) Stream {
	return &funcStream{next: next, close: closeFn}
}

func (s *funcStream) Next(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chunk, err := s.next(ctx)
	if err != nil {
		s.done = true
		return nil, err
	}
	return chunk, nil
}

func (s *funcStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.close != nil {
		return s.close()
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// BytesStream yields data as a single chunk.
func BytesStream(data []byte) Stream {
	sent := false
	return NewStream(func(context.Context) ([]byte, error) {
		if sent {
			return nil, io.EOF
		}
		sent = true
		return data, nil
	}, nil)
}

// SliceStream yields each chunk in order.
func SliceStream(chunks ...[]byte) Stream {
	i := 0
	return NewStream(func(context.Context) ([]byte, error) {
		if i >= len(chunks) {
			return nil, io.EOF
		}
		chunk := chunks[i]
		i++
		return chunk, nil
	}, nil)
}

// ReaderStream adapts a ReadCloser, reading up to chunkSize bytes per chunk.
func ReaderStream(rc io.ReadCloser, chunkSize int) Stream {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return NewStream(func(context.Context) ([]byte, error) {
		buf := make([]byte, chunkSize)
		n, err := rc.Read(buf)
		if n > 0 {
			return buf[:n], nil
		}
		if err == nil {
			// Zero-byte read without error; report an empty chunk.
			return buf[:0], nil
		}
		return nil, err
	}, rc.Close)
}

// MapStream lazily transforms each chunk of src. Closing the result closes src.
func MapStream(src Stream, fn func([]byte) ([]byte, error)) Stream {
	return NewStream(func(ctx context.Context) ([]byte, error) {
		chunk, err := src.Next(ctx)
		if err != nil {
			return nil, err
		}
		return fn(chunk)
	}, src.Close)
}

// BufferStream drains and closes src, returning all chunks concatenated.
func BufferStream(ctx context.Context, src Stream) ([]byte, error) {
	defer src.Close()

	var out []byte
	for {
		chunk, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, chunk...)
	}
}

type flusher interface {
	Flush()
}

// Copy writes every chunk of src to dst as it arrives, flushing after each
// chunk when dst supports it. src is always closed.
func Copy(ctx context.Context, dst io.Writer, src Stream) (int64, error) {
	defer src.Close()

	f, canFlush := dst.(flusher)
	var written int64
	for {
		chunk, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return written, err
		}
		if len(chunk) == 0 {
			continue
		}
		n, err := dst.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, err
		}
		if canFlush {
			f.Flush()
		}
	}
}
