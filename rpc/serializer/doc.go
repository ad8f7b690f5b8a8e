// Package serializer provides conversion between Envelope objects and byte
// arrays for transmission over a transport. Multiple wire formats are
// supported behind the IEnvelopeSerializer interface:
//
//   - JSON (NewJSONSerializer): the default and the canonical wire contract,
//     a flat mapping with the stable field names defined in the common package.
//     Interoperable with any peer that can produce json.
//
//   - GOB (NewGOBSerializer): Go's native binary encoding. Compact and fast
//     but only usable between Go peers.
//
//   - Binary (NewBinarySerializer): a custom flag-bitmap format optimized for
//     size. Fixed fields are length-prefixed, the free-form Args mapping is
//     carried as a nested json blob.
//
// Both peers of a connection must be configured with the same serializer.
package serializer
