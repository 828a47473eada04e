package diagram

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// SVGCache keeps rendered SVGs keyed by diagram kind and source text.
type SVGCache struct {
	c   *ristretto.Cache[string, string]
	ttl time.Duration
}

// NewSVGCache bounds the cache to maxCostBytes of SVG text.
func NewSVGCache(maxCostBytes int64, ttl time.Duration) (*SVGCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, string]{
		NumCounters: maxCostBytes / 1000 * 10,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &SVGCache{c: c, ttl: ttl}, nil
}

func cacheKey(kind, source string) string {
	sum := sha256.Sum256([]byte(kind + "\x00" + source))
	return hex.EncodeToString(sum[:])
}

func (s *SVGCache) Get(kind, source string) (string, bool) {
	if s == nil {
		return "", false
	}
	return s.c.Get(cacheKey(kind, source))
}

func (s *SVGCache) Set(kind, source, svg string) {
	if s == nil {
		return
	}
	s.c.SetWithTTL(cacheKey(kind, source), svg, int64(len(svg)), s.ttl)
	// make the entry visible to the next Get
	s.c.Wait()
}

func (s *SVGCache) Close() {
	if s != nil {
		s.c.Close()
	}
}
