// Package codecs implements the multi-vendor BLE advertising protocol core.
//
// Ceiling-fan and lamp controllers of this family are commanded exclusively
// through connectionless BLE advertising packets. Each vendor phone app uses
// its own packet layout, whitening/encryption scheme, checksum and opcode
// table; this package translates between a vendor-neutral Command and the
// exact byte payloads those devices expect.
//
// # Architecture
//
// Every supported protocol variant is a Codec assembled from three parts:
//
//   - a wrapping spec (header, prefix, footer, BLE AD type and flag, payload
//     length) shared by the generic encode/decode path,
//   - a wire policy implementing the variant's whitening/encryption and the
//     packing of opcode, arguments, device id and rolling counter,
//   - a translation table mapping Commands to vendor opcodes and back.
//
// Protocols share structure (opcode + args + counter + checksum) but differ
// in constants, so composition is used instead of codec inheritance.
//
// # Identities and counters
//
// A physical device is addressed by an Identity: the codec identifier plus
// the forced id and sub index embedded in every advertisement. Devices
// reject packets with stale or repeated rolling counters, so per-identity
// counter state is held in a CounterStore and advanced on every encode.
// Counter wraparound is normal steady-state behaviour, reproduced exactly
// as each protocol declares it.
//
// # Registry
//
// The Registry is an immutable identifier-to-codec mapping built once at
// startup. Steady-state decode dispatches identity-first (one codec
// invocation); only discovery scans all registered codecs.
//
// Thread Safety: Codec and Registry are immutable after construction and
// safe for concurrent use; CounterStore serialises access internally.
package codecs
