// Package transport serialises outbound advertisements onto a single shared
// radio.
//
// The radio itself is external: the core only produces and consumes byte
// buffers. A Transmitter adapter (local adapter, remote relay) performs the
// actual emission, and observed traffic arrives through the Handler
// callback. Most supported radios cannot send overlapping advertisements,
// so the Queue keeps at most one transmission in flight and serialises
// concurrent requests in FIFO order, with per-device supersede so a rapid
// slider drag does not replay every intermediate level.
package transport
