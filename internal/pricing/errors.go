package pricing

import "fmt"

// ExternalFetchError wraps a price or fee feed failure. The book recovers
// from it with stale or fallback values; it never reaches the payer.
type ExternalFetchError struct {
	Source string
	Err    error
}

func (e *ExternalFetchError) Error() string {
	return fmt.Sprintf("%s fetch failed: %v", e.Source, e.Err)
}

func (e *ExternalFetchError) Unwrap() error {
	return e.Err
}

func fetchError(source string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalFetchError{Source: source, Err: err}
}
