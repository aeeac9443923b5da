package types

import "fmt"

// ProviderError wraps a failure from an external collaborator (embedding
// provider, index, or language model). The pipeline recovers from these
// locally by degrading the affected source rather than failing the query.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
