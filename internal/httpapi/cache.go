package httpapi

import (
	"fmt"
	"net/http"
	"time"
)

// setCacheControl mirrors the Python service's make_cache_control: a
// public, max-age + stale-while-revalidate directive, plus no-transform
// so intermediate proxies don't recompress tile bodies.
func setCacheControl(w http.ResponseWriter, maxAge, stale time.Duration) {
	w.Header().Set("Cache-Control", fmt.Sprintf(
		"public, max-age=%d, stale-while-revalidate=%d, no-transform",
		int(maxAge.Seconds()), int(stale.Seconds())))
}
