// Package iconcache keeps one resolved icon per process id.
package iconcache

import (
	"image"
	"io"
	"log"
)

// Resolver extracts a small bitmap from an executable. A nil image with a
// nil error means the executable has no icon.
type Resolver interface {
	ResolveIcon(exePath string) (image.Image, error)
}

type ResolverFunc func(exePath string) (image.Image, error)

func (f ResolverFunc) ResolveIcon(exePath string) (image.Image, error) { return f(exePath) }

// PathFunc yields the executable path of the process being resolved.
type PathFunc func() (string, error)

// Cache maps pid to icon. Only successful resolutions are stored, so a pid
// whose path or icon was unavailable is retried on the next lookup.
// All calls come from the scheduling loop.
type Cache struct {
	resolver Resolver
	logger   *log.Logger
	entries  map[int]image.Image
}

func New(resolver Resolver, logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Cache{
		resolver: resolver,
		logger:   logger,
		entries:  make(map[int]image.Image),
	}
}

func (c *Cache) Get(pid int) (image.Image, bool) {
	if c == nil {
		return nil, false
	}
	icon, ok := c.entries[pid]
	return icon, ok
}

// GetOrResolve returns the cached icon for pid or resolves it through path.
func (c *Cache) GetOrResolve(pid int, path PathFunc) image.Image {
	if c == nil {
		return nil
	}
	if icon, ok := c.entries[pid]; ok {
		return icon
	}
	if c.resolver == nil || path == nil {
		return nil
	}

	exe, err := path()
	if err != nil {
		c.logger.Printf("icon path pid %d: %v", pid, err)
		return nil
	}
	if exe == "" {
		return nil
	}

	icon, err := c.resolver.ResolveIcon(exe)
	if err != nil {
		c.logger.Printf("icon resolve %s: %v", exe, err)
		return nil
	}
	if icon == nil {
		return nil
	}

	c.entries[pid] = icon
	return icon
}

// Prune drops icons of pids that are not in live.
func (c *Cache) Prune(live map[int]struct{}) {
	if c == nil {
		return
	}
	for pid := range c.entries {
		if _, ok := live[pid]; !ok {
			delete(c.entries, pid)
		}
	}
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}
