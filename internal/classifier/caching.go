package classifier

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/blake3"
)

// cacheKey identifies a classification: the frame digest and the threshold.
type cacheKey struct {
	// digest is the blake3 hash of the frame.
	digest [32]byte
	// threshold is the requested confidence threshold.
	threshold float32
}

// Caching memoizes answers of another classifier for identical frames.
// Cameras often resend unchanged frames; those are answered without calling
// the wrapped classifier. Errors are never cached.
type Caching struct {
	// next is the wrapped classifier.
	next Classifier
	// cache holds the most recently used answers.
	cache *lru.Cache[cacheKey, bool]
}

// NewCaching wraps next with an LRU cache of at most size answers.
// A non-positive size returns next unchanged.
//
//nolint:ireturn // Returns the wrapped classifier when caching is disabled.
func NewCaching(next Classifier, size int) Classifier {
	if size <= 0 {
		return next
	}

	cache, err := lru.New[cacheKey, bool](size)
	if err != nil {
		// Only non-positive sizes are rejected.
		return next
	}

	return &Caching{
		next:  next,
		cache: cache,
	}
}

// ContainsCat returns the cached answer or asks the wrapped classifier.
func (c *Caching) ContainsCat(ctx context.Context, image []byte, confidenceThreshold float32) (bool, error) {
	if len(image) == 0 {
		return false, ErrEmptyImage
	}

	key := cacheKey{
		digest:    blake3.Sum256(image),
		threshold: confidenceThreshold,
	}

	if detected, ok := c.cache.Get(key); ok {
		return detected, nil
	}

	detected, err := c.next.ContainsCat(ctx, image, confidenceThreshold)
	if err != nil {
		return false, err
	}

	c.cache.Add(key, detected)

	return detected, nil
}

// Len returns the number of cached answers.
func (c *Caching) Len() int {
	return c.cache.Len()
}
