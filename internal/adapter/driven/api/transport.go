package api

import (
	"net/http"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// newTransport builds the outbound transport stack, innermost first:
//  1. base (network transport; http.DefaultTransport when nil)
//  2. httpcache over the credential-scoped ResponseCache (skipped when cache is nil)
//  3. go-github-ratelimit (sleeps on 429 / Retry-After responses)
//  4. otelhttp (client spans and trace propagation)
//
// Request decoration and failure recovery run above this stack in Client.
func newTransport(base http.RoundTripper, cache *ResponseCache) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}

	rt := base
	if cache != nil {
		rt = &cacheTransport{base: base, cache: cache}
	}

	rt = github_ratelimit.NewClient(rt).Transport

	return otelhttp.NewTransport(rt)
}
