package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errTestClassifier = errors.New("test classifier error")

// countingClassifier returns a fixed answer and counts calls.
type countingClassifier struct {
	// detected is the answer to return.
	detected bool
	// err is the error to return.
	err error
	// calls counts ContainsCat invocations.
	calls int
}

func (c *countingClassifier) ContainsCat(context.Context, []byte, float32) (bool, error) {
	c.calls++

	return c.detected, c.err
}

// TestFake_RejectsEmptyImage verifies the fake validates input and produces both answers.
func TestFake_RejectsEmptyImage(t *testing.T) {
	t.Parallel()

	f := NewFake(1)

	_, err := f.ContainsCat(context.Background(), nil, 50)
	require.ErrorIs(t, err, ErrEmptyImage)

	seen := map[bool]bool{}

	for range 64 {
		detected, err := f.ContainsCat(context.Background(), []byte{1}, 50)
		require.NoError(t, err)

		seen[detected] = true
	}

	require.True(t, seen[true])
	require.True(t, seen[false])
}

// TestHTTP_ContainsCat checks label matching against the threshold.
func TestHTTP_ContainsCat(t *testing.T) {
	t.Parallel()

	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(labelsResponse{Labels: []Label{
			{Name: "Sofa", Confidence: 99},
			{Name: "Cat", Confidence: 72.5},
		}})
	}))
	defer server.Close()

	h := NewHTTP(server.URL, time.Second)

	detected, err := h.ContainsCat(context.Background(), []byte("frame"), 50)
	require.NoError(t, err)
	require.True(t, detected)
	require.Equal(t, []byte("frame"), gotBody)

	detected, err = h.ContainsCat(context.Background(), []byte("frame"), 80)
	require.NoError(t, err)
	require.False(t, detected)

	_, err = h.ContainsCat(context.Background(), nil, 50)
	require.ErrorIs(t, err, ErrEmptyImage)
}

// TestHTTP_ErrorStatus verifies non-2xx answers become errors.
func TestHTTP_ErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := NewHTTP(server.URL, time.Second).ContainsCat(context.Background(), []byte("frame"), 50)
	require.ErrorIs(t, err, errUnexpectedStatus)
}

// TestCaching_MemoizesPerFrameAndThreshold verifies identical frames hit the cache.
func TestCaching_MemoizesPerFrameAndThreshold(t *testing.T) {
	t.Parallel()

	next := &countingClassifier{detected: true}
	c, ok := NewCaching(next, 2).(*Caching)
	require.True(t, ok)

	ctx := context.Background()

	for range 3 {
		detected, err := c.ContainsCat(ctx, []byte("frame-a"), 50)
		require.NoError(t, err)
		require.True(t, detected)
	}

	require.Equal(t, 1, next.calls)

	// Another threshold is another question.
	_, err := c.ContainsCat(ctx, []byte("frame-a"), 90)
	require.NoError(t, err)
	require.Equal(t, 2, next.calls)

	// Third distinct key evicts the least recently used one.
	_, err = c.ContainsCat(ctx, []byte("frame-b"), 50)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	_, err = c.ContainsCat(ctx, []byte("frame-a"), 50)
	require.NoError(t, err)
	require.Equal(t, 4, next.calls)
}

// TestCaching_HitRefreshesRecency keeps a recently answered frame over an older one.
func TestCaching_HitRefreshesRecency(t *testing.T) {
	t.Parallel()

	next := new(countingClassifier)
	c := NewCaching(next, 2)
	ctx := context.Background()

	for _, frame := range []string{"frame-a", "frame-b", "frame-a", "frame-c", "frame-a"} {
		_, err := c.ContainsCat(ctx, []byte(frame), 50)
		require.NoError(t, err)
	}

	// frame-b was evicted, frame-a was served from the cache twice.
	require.Equal(t, 3, next.calls)

	_, err := c.ContainsCat(ctx, []byte("frame-b"), 50)
	require.NoError(t, err)
	require.Equal(t, 4, next.calls)
}

// TestCaching_DoesNotCacheErrors ensures failures are retried on the next call.
func TestCaching_DoesNotCacheErrors(t *testing.T) {
	t.Parallel()

	next := &countingClassifier{err: errTestClassifier}
	c := NewCaching(next, 4)

	_, err := c.ContainsCat(context.Background(), []byte("frame"), 50)
	require.ErrorIs(t, err, errTestClassifier)

	_, err = c.ContainsCat(context.Background(), []byte("frame"), 50)
	require.ErrorIs(t, err, errTestClassifier)
	require.Equal(t, 2, next.calls)

	require.Same(t, next, NewCaching(next, 0))
}
