// Package entity maps per-fixture configuration onto vendor-neutral
// Commands.
//
// A logical entity is one controllable aspect of a physical device: a full
// RGB lamp, a cold-white/warm-white lamp, one channel of a split cold/warm
// fixture, a bare on/off light, or a 3- or 6-speed fan. Each entity carries
// a Config describing its type, its sub index on the device and its minimum
// usable brightness; this package turns a desired state plus that Config
// into exactly one Command, applying the brightness floor and the split
// channel mapping before anything reaches a codec.
package entity
