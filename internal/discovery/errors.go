package discovery

import "errors"

var (
	// ErrBusy is returned when a discovery or validation pass is already
	// running.
	ErrBusy = errors.New("discovery: already running")

	// ErrNoCandidates is returned when the observation window expires
	// without a single decodable advertisement. Distinct from an unconfirmed
	// ranking: the caller suggests retrying or pairing mode instead of
	// re-validating.
	ErrNoCandidates = errors.New("discovery: no candidates observed")

	// ErrValidationFailed is returned when every candidate was blinked
	// without confirmation. Recoverable: the caller may re-enter discovery
	// or fall back to pairing mode.
	ErrValidationFailed = errors.New("discovery: no candidate confirmed")
)
