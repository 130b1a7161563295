// Package source loads the JSON document that jsonstreamer serves.
//
// A Document keeps two views of the same file:
//   - Text: the raw file contents, byte for byte. Delta and raw emission
//     modes replay this text so that concatenating their output reproduces
//     the file exactly.
//   - The parsed top-level shape (object members, array elements, or a
//     scalar). Nested values are kept as compact raw JSON so that key order
//     inside them survives a snapshot round trip.
//
// Loading fails with a *source.Error carrying one of two codes:
// CodeNotFound when the file cannot be read, CodeInvalid when the file is
// not a single valid JSON value. Both are detected before any output is
// produced.
package source
