package driven

import "context"

// Fetcher retrieves externally referenced content, such as archived logs.
type Fetcher interface {
	// Fetch returns the raw bytes at url.
	// Failures are reported as *domain.FetchError.
	Fetch(ctx context.Context, url string) ([]byte, error)
}
