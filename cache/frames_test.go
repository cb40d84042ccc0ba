package cache_test

import (
	"fmt"
	"testing"

	"github.com/klippmedia/klipp-engine/cache"
	"github.com/klippmedia/klipp-engine/media"
	"github.com/klippmedia/klipp-engine/project"
	"github.com/klippmedia/klipp-engine/timebase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(tag byte) *media.PreviewFrame {
	return &media.PreviewFrame{Width: 1, Height: 1, Format: media.PixelFormatRGBA8, Bytes: []byte{tag}}
}

func TestSameBucketSharesOneEntry(t *testing.T) {
	c := cache.NewPreviewFrameCache(4, 33_333)

	a := c.KeyFor("/a.mp4", 0)
	b := c.KeyFor("/a.mp4", 33_332)
	assert.Equal(t, a, b)

	next := c.KeyFor("/a.mp4", 33_333)
	assert.NotEqual(t, a, next)

	negative := c.KeyFor("/a.mp4", -500)
	assert.Equal(t, a, negative)
}

func TestInsertEvictsSingleLeastRecentlyUsed(t *testing.T) {
	c := cache.NewPreviewFrameCache(2, 10)

	k0 := c.KeyFor("/a.mp4", 0)
	k1 := c.KeyFor("/a.mp4", 10)
	k2 := c.KeyFor("/a.mp4", 20)

	c.Insert(k0, frame(0))
	c.Insert(k1, frame(1))
	c.Insert(k2, frame(2))

	assert.Equal(t, 2, c.Len())
	assert.False(t, c.Contains(k0))
	assert.True(t, c.Contains(k1))
	assert.True(t, c.Contains(k2))
}

func TestGetProtectsEntryFromEviction(t *testing.T) {
	c := cache.NewPreviewFrameCache(2, 10)

	k0 := c.KeyFor("/a.mp4", 0)
	k1 := c.KeyFor("/a.mp4", 10)
	k2 := c.KeyFor("/a.mp4", 20)

	c.Insert(k0, frame(0))
	c.Insert(k1, frame(1))

	_, hit := c.Get(k0)
	require.True(t, hit)

	c.Insert(k2, frame(2))
	assert.True(t, c.Contains(k0))
	assert.False(t, c.Contains(k1))
}

func TestContainsDoesNotTouchRecency(t *testing.T) {
	c := cache.NewPreviewFrameCache(2, 10)

	k0 := c.KeyFor("/a.mp4", 0)
	k1 := c.KeyFor("/a.mp4", 10)
	k2 := c.KeyFor("/a.mp4", 20)

	c.Insert(k0, frame(0))
	c.Insert(k1, frame(1))

	// A probe must not save k0 from being the eviction victim.
	require.True(t, c.Contains(k0))
	c.Insert(k2, frame(2))
	assert.False(t, c.Contains(k0))
}

func TestInsertExistingKeyReplacesFrame(t *testing.T) {
	c := cache.NewPreviewFrameCache(2, 10)
	k := c.KeyFor("/a.mp4", 0)

	c.Insert(k, frame(1))
	c.Insert(k, frame(2))

	assert.Equal(t, 1, c.Len())
	got, hit := c.Get(k)
	require.True(t, hit)
	assert.Equal(t, []byte{2}, got.Bytes)
}

func TestClearDropsEverything(t *testing.T) {
	c := cache.NewPreviewFrameCache(4, 10)
	for i := int64(0); i < 4; i++ {
		c.Insert(c.KeyFor(fmt.Sprintf("/%d.mp4", i), 0), frame(byte(i)))
	}

	c.Clear()
	assert.Equal(t, 0, c.Len())
	assert.False(t, c.Contains(c.KeyFor("/0.mp4", 0)))
}

func TestBucketSizeForAssets(t *testing.T) {
	ntsc := timebase.Rational{Num: 30_000, Den: 1_001}
	pal := timebase.Rational{Num: 25, Den: 1}

	withRate := func(fr *timebase.Rational, tb timebase.Rational) project.MediaAsset {
		return project.MediaAsset{Video: &project.VideoStreamInfo{TimeBase: tb, FrameRate: fr}}
	}

	// No video assets at all.
	assert.Equal(t, cache.DefaultBucketSizeTL, cache.BucketSizeForAssets(nil))
	assert.Equal(t, cache.DefaultBucketSizeTL,
		cache.BucketSizeForAssets([]project.MediaAsset{{}}))

	// Declared frame rates: one NTSC frame is 1001/30000 s = 33_367 ticks,
	// one PAL frame is 40_000 ticks. The minimum wins.
	assert.Equal(t, int64(33_367), cache.BucketSizeForAssets([]project.MediaAsset{
		withRate(&ntsc, timebase.Rational{Num: 1, Den: 30_000}),
		withRate(&pal, timebase.Rational{Num: 1, Den: 25}),
	}))

	// No frame rate: one tick of the native time base.
	assert.Equal(t, int64(11), cache.BucketSizeForAssets([]project.MediaAsset{
		withRate(nil, timebase.Rational{Num: 1, Den: 90_000}),
	}))
}

func TestPrefetchOffsets(t *testing.T) {
	policy := cache.DefaultPrefetchPolicy()

	forward := policy.Offsets(cache.ScrubForward)
	require.Len(t, forward, 18)
	assert.Equal(t, int64(1), forward[0])
	assert.Equal(t, int64(18), forward[17])

	backward := policy.Offsets(cache.ScrubBackward)
	require.Len(t, backward, 18)
	assert.Equal(t, int64(-1), backward[0])
	assert.Equal(t, int64(-18), backward[17])

	idle := policy.Offsets(cache.ScrubUnknown)
	require.Len(t, idle, 240)
	assert.Equal(t, []int64{1, -1, 2, -2}, idle[:4])
	assert.Equal(t, int64(-120), idle[239])
}
