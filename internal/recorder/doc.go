// Package recorder passively records advertisement traffic for diagnostics.
//
// Every identity the mirror or discovery engine decodes is upserted into
// SQLite with sighting counts, and buffers no codec accepts are kept by
// their raw bytes so new vendor variants can be reverse-engineered from a
// live install. The recorder never persists device configuration; the host
// owns that.
package recorder
