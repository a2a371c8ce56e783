package journal

import "fmt"

// CredentialError reports that the stored broker credentials could not be
// resolved. It aborts a sync before anything is written.
type CredentialError struct {
	Err error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential error: %v", e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// UpstreamFetchError reports that the broker bridge could not be reached
// or rejected the request. It aborts a sync before anything is written;
// the bridge's detail string is preserved in the wrapped error.
type UpstreamFetchError struct {
	Err error
}

func (e *UpstreamFetchError) Error() string {
	return fmt.Sprintf("upstream fetch error: %v", e.Err)
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }
