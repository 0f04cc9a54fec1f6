package codecs

import "errors"

// Domain errors for the codecs package.
var (
	// ErrUnsupportedCommand is returned when a Command variant is not
	// representable by the target codec (e.g. a fan command sent to a
	// light-only protocol). Rejected before any transmission.
	ErrUnsupportedCommand = errors.New("codecs: command not supported by codec")

	// ErrUnknownCodec is returned when a codec identifier is not registered.
	ErrUnknownCodec = errors.New("codecs: unknown codec identifier")

	// ErrDecode is returned when a buffer cannot be decoded. During registry
	// dispatch a per-codec decode failure is non-fatal; this error only
	// surfaces when every registered codec rejects the buffer.
	ErrDecode = errors.New("codecs: buffer not decodable")

	// ErrIdentityMismatch is returned when a buffer decodes cleanly but
	// belongs to a different device than the one requested.
	ErrIdentityMismatch = errors.New("codecs: decoded identity does not match")

	// ErrDuplicateCodec is returned when a registry is built with two codecs
	// sharing an identifier.
	ErrDuplicateCodec = errors.New("codecs: duplicate codec identifier")
)
