// Package cache holds decoded preview frames in a bounded LRU keyed by source
// file and frame bucket, plus the prefetch policy that decides which buckets
// to warm around the playhead.
package cache

import (
	"container/list"

	"github.com/klippmedia/klipp-engine/media"
	"github.com/klippmedia/klipp-engine/project"
	"github.com/klippmedia/klipp-engine/timebase"
)

// DefaultBucketSizeTL is one NTSC-ish frame in timeline ticks, used when no
// asset reveals a better granularity.
const DefaultBucketSizeTL int64 = 33_333

// Key identifies one cached frame: the source file and the frame bucket its
// source position falls into.
type Key struct {
	Path   string
	Bucket int64
}

type frameEntry struct {
	key   Key
	frame *media.PreviewFrame
}

// PreviewFrameCache is a strict LRU over decoded frames. It is confined to a
// single goroutine and does no locking.
type PreviewFrameCache struct {
	capacity     int
	bucketSizeTL int64
	entries      map[Key]*list.Element
	order        *list.List // front = most recently used
}

// NewPreviewFrameCache creates a cache with the given capacity and frame
// bucket size. Non-positive inputs fall back to a capacity of 1 and the
// default bucket size.
func NewPreviewFrameCache(capacity int, bucketSizeTL int64) *PreviewFrameCache {
	if capacity < 1 {
		capacity = 1
	}
	if bucketSizeTL < 1 {
		bucketSizeTL = DefaultBucketSizeTL
	}
	return &PreviewFrameCache{
		capacity:     capacity,
		bucketSizeTL: bucketSizeTL,
		entries:      make(map[Key]*list.Element, capacity),
		order:        list.New(),
	}
}

// BucketSizeTL returns the frame bucket width in timeline ticks.
func (c *PreviewFrameCache) BucketSizeTL() int64 {
	return c.bucketSizeTL
}

// KeyFor maps a source position to its cache key. Negative positions share
// bucket zero with position zero.
func (c *PreviewFrameCache) KeyFor(path string, sourceTL int64) Key {
	return Key{Path: path, Bucket: max(sourceTL, 0) / c.bucketSizeTL}
}

// Get returns the cached frame for the key and marks it most recently used.
func (c *PreviewFrameCache) Get(key Key) (*media.PreviewFrame, bool) {
	element, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(element)
	return element.Value.(*frameEntry).frame, true
}

// Contains reports whether the key is cached without touching its recency.
// Prefetch probes use this so scanning candidates cannot reorder the cache.
func (c *PreviewFrameCache) Contains(key Key) bool {
	_, ok := c.entries[key]
	return ok
}

// Insert stores a frame as most recently used, evicting the single least
// recently used entry if the cache is over capacity afterwards.
func (c *PreviewFrameCache) Insert(key Key, frame *media.PreviewFrame) {
	if element, ok := c.entries[key]; ok {
		element.Value.(*frameEntry).frame = frame
		c.order.MoveToFront(element)
		return
	}

	c.entries[key] = c.order.PushFront(&frameEntry{key: key, frame: frame})
	if len(c.entries) > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*frameEntry).key)
	}
}

// Len returns the number of cached frames.
func (c *PreviewFrameCache) Len() int {
	return len(c.entries)
}

// Clear drops every cached frame. Called on any edit that can change what a
// timeline position shows.
func (c *PreviewFrameCache) Clear() {
	c.entries = make(map[Key]*list.Element, c.capacity)
	c.order.Init()
}

// BucketSizeForAssets derives the bucket size from the project: the smallest
// exact frame duration in timeline ticks across all video assets. Assets
// without a declared frame rate contribute one tick of their native time base.
// With no video assets at all the default applies.
func BucketSizeForAssets(assets []project.MediaAsset) int64 {
	best := int64(0)
	for _, asset := range assets {
		if asset.Video == nil {
			continue
		}
		var frameTL int64
		if fr := asset.Video.FrameRate; fr != nil {
			// One frame of an fr.Num/fr.Den fps stream lasts fr.Den/fr.Num seconds.
			frameTL = timebase.Rescale(1, timebase.Rational{Num: fr.Den, Den: fr.Num}, timebase.TimelineTimeBase)
		} else {
			frameTL = timebase.Rescale(1, asset.Video.TimeBase, timebase.TimelineTimeBase)
		}
		if frameTL < 1 {
			frameTL = 1
		}
		if best == 0 || frameTL < best {
			best = frameTL
		}
	}
	if best == 0 {
		return DefaultBucketSizeTL
	}
	return best
}
