/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-19
 */
package overlay

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"sync"
	"time"

	"github.com/duocall/relay_core/pkg/utils"
)

// maxCachedImages bounds the cache; overlays are small and rooms are
// two-party, so a handful of entries is plenty.
const maxCachedImages = 32

// ImageCache resolves overlay image URLs to decoded images. Fetches happen
// in the background: Get returns nil until the image is available, and the
// pipeline passes frames through unchanged in the meantime.
type ImageCache struct {
	mu       sync.Mutex
	logger   *utils.Logger
	client   *http.Client
	images   map[string]image.Image
	fetching map[string]bool
}

// NewImageCache creates an image cache.
func NewImageCache(logger *utils.Logger) *ImageCache {
	return &ImageCache{
		logger:   logger.With("images"),
		client:   &http.Client{Timeout: 10 * time.Second},
		images:   make(map[string]image.Image),
		fetching: make(map[string]bool),
	}
}

// Get returns the decoded image for url, or nil if it is not cached yet.
// A miss triggers a single background fetch.
func (c *ImageCache) Get(url string) image.Image {
	if url == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if img, ok := c.images[url]; ok {
		return img
	}
	if !c.fetching[url] {
		c.fetching[url] = true
		go c.fetch(url)
	}
	return nil
}

func (c *ImageCache) fetch(url string) {
	img, err := c.download(url)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.fetching, url)

	if err != nil {
		c.logger.Warn("fetch overlay %s: %v", url, err)
		return
	}

	if len(c.images) >= maxCachedImages {
		// Evict an arbitrary entry to stay bounded.
		for k := range c.images {
			delete(c.images, k)
			break
		}
	}
	c.images[url] = img
	c.logger.Debug("cached overlay %s (%dx%d)", url, img.Bounds().Dx(), img.Bounds().Dy())
}

func (c *ImageCache) download(url string) (image.Image, error) {
	resp, err := c.client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
