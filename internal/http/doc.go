// Package http provides the HTTP client used to fetch source bundles.
//
// Regional extracts are hundreds of megabytes and mirrors are flaky, so the
// client retries connection failures, 5xx responses and 429 responses with
// exponential backoff, honouring Retry-After up to the maximum backoff. Other
// 4xx responses are not retried.
//
// # Usage
//
//	client := http.NewClient(http.Options{
//	    Timeout:       0, // bundles can take minutes; rely on ctx
//	    RetryAttempts: 5,
//	})
//
//	info, err := client.Head(ctx, url)
//	body, err := client.Get(ctx, url)
//	defer body.Close()
package http
