package repo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/mod/module"
	"golang.org/x/mod/semver"

	"github.com/miradorstack/mirador-drift/internal/cache"
)

// ErrModuleNotFound is returned when the proxy does not know a module.
var ErrModuleNotFound = errors.New("module not found on proxy")

// ModProxyClient queries a Go module proxy (GOPROXY protocol) for the latest
// published version of a module.
type ModProxyClient struct {
	baseURL    string
	httpClient *http.Client
	cache      cache.Provider
	ttl        time.Duration
}

// NewModProxyClient constructs a client for the proxy at baseURL. Latest
// versions are cached for ttl.
func NewModProxyClient(baseURL string, timeout time.Duration, cacheProvider cache.Provider, ttl time.Duration) *ModProxyClient {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	return &ModProxyClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		cache:      cacheProvider,
		ttl:        ttl,
	}
}

// Latest returns the version the proxy reports from its @latest endpoint.
func (c *ModProxyClient) Latest(ctx context.Context, modulePath string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("module proxy client not initialised")
	}
	if c.baseURL == "" {
		return "", fmt.Errorf("module proxy URL not configured")
	}
	escaped, err := module.EscapePath(modulePath)
	if err != nil {
		return "", fmt.Errorf("escape module path %q: %w", modulePath, err)
	}

	cacheKey := "mirador-drift:modproxy:latest:" + modulePath
	if data, err := c.cache.Get(ctx, cacheKey); err == nil && len(data) > 0 {
		return string(data), nil
	}

	var info struct {
		Version string    `json:"Version"`
		Time    time.Time `json:"Time"`
	}
	if err := getJSON(ctx, c.httpClient, c.baseURL+"/"+escaped+"/@latest", &info); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && (statusErr.StatusCode == http.StatusNotFound || statusErr.StatusCode == http.StatusGone) {
			return "", fmt.Errorf("%w: %s", ErrModuleNotFound, modulePath)
		}
		return "", fmt.Errorf("module proxy request failed: %w", err)
	}
	if !semver.IsValid(info.Version) {
		return "", fmt.Errorf("module proxy returned invalid version %q for %s", info.Version, modulePath)
	}

	_ = c.cache.Set(ctx, cacheKey, []byte(info.Version), c.ttl)
	return info.Version, nil
}

// Newer returns latest when it is a higher semantic version than current and
// current otherwise.
func Newer(current, latest string) string {
	if !semver.IsValid(latest) {
		return current
	}
	if !semver.IsValid(current) || semver.Compare(latest, current) > 0 {
		return latest
	}
	return current
}
