// Package discovery finds which codec and identity parameters drive a
// physical device.
//
// The devices never answer: the only feedback channels are passive
// listening and a human watching a light. Discovery therefore runs in two
// stages. The Engine listens to raw advertisement traffic for a bounded
// window, decoding every packet against every registered codec, and ranks
// the identities it keeps seeing. The Validator then walks the ranked
// candidates, transmitting one distinguishing blink per candidate and
// waiting for the operator to confirm that the device visibly reacted.
//
// Confirmation is explicitly operator-driven. The protocols offer no state
// echo to detect automatically, so Confirm is exposed for the host's
// configuration flow to call when the operator reports the blink.
package discovery
