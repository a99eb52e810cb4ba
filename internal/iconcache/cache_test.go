package iconcache

import (
	"errors"
	"image"
	"testing"
)

func TestGetOrResolveCachesSuccess(t *testing.T) {
	resolves := 0
	icon := image.NewRGBA(image.Rect(0, 0, 16, 16))
	c := New(ResolverFunc(func(exe string) (image.Image, error) {
		resolves++
		return icon, nil
	}), nil)

	paths := 0
	path := func() (string, error) {
		paths++
		return `C:\app.exe`, nil
	}

	if got := c.GetOrResolve(100, path); got != icon {
		t.Fatalf("expected resolved icon, got %v", got)
	}
	if got := c.GetOrResolve(100, path); got != icon {
		t.Fatalf("expected cached icon, got %v", got)
	}
	if resolves != 1 || paths != 1 {
		t.Fatalf("expected single resolution, got resolves=%d paths=%d", resolves, paths)
	}
}

func TestGetOrResolveDoesNotCacheFailures(t *testing.T) {
	cases := []struct {
		name    string
		path    PathFunc
		resolve ResolverFunc
	}{
		{
			name:    "pathDenied",
			path:    func() (string, error) { return "", errors.New("access denied") },
			resolve: func(string) (image.Image, error) { return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil },
		},
		{
			name:    "emptyPath",
			path:    func() (string, error) { return "", nil },
			resolve: func(string) (image.Image, error) { return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil },
		},
		{
			name:    "noIcon",
			path:    func() (string, error) { return "/usr/bin/app", nil },
			resolve: func(string) (image.Image, error) { return nil, nil },
		},
		{
			name:    "extractFailed",
			path:    func() (string, error) { return "/usr/bin/app", nil },
			resolve: func(string) (image.Image, error) { return nil, errors.New("boom") },
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := New(tc.resolve, nil)
			if got := c.GetOrResolve(5, tc.path); got != nil {
				t.Fatalf("expected nil icon, got %v", got)
			}
			if c.Len() != 0 {
				t.Fatalf("failure must not be cached, have %d entries", c.Len())
			}
		})
	}
}

func TestGetOrResolveRetriesAfterTransientFailure(t *testing.T) {
	icon := image.NewRGBA(image.Rect(0, 0, 1, 1))
	c := New(ResolverFunc(func(string) (image.Image, error) { return icon, nil }), nil)

	denied := true
	path := func() (string, error) {
		if denied {
			return "", errors.New("access denied")
		}
		return "/opt/app", nil
	}

	if got := c.GetOrResolve(1, path); got != nil {
		t.Fatalf("expected nil while denied")
	}
	denied = false
	if got := c.GetOrResolve(1, path); got != icon {
		t.Fatalf("expected icon after retry, got %v", got)
	}
}

func TestPrune(t *testing.T) {
	icon := image.NewRGBA(image.Rect(0, 0, 1, 1))
	c := New(ResolverFunc(func(string) (image.Image, error) { return icon, nil }), nil)
	path := func() (string, error) { return "/bin/x", nil }
	c.GetOrResolve(1, path)
	c.GetOrResolve(2, path)

	c.Prune(map[int]struct{}{2: {}})

	if _, ok := c.Get(1); ok {
		t.Fatalf("pid 1 should be pruned")
	}
	if _, ok := c.Get(2); !ok {
		t.Fatalf("pid 2 should survive")
	}
}

func TestNilCache(t *testing.T) {
	var c *Cache
	if c.GetOrResolve(1, nil) != nil || c.Len() != 0 {
		t.Fatalf("nil cache should be inert")
	}
	c.Prune(nil)
}
