// Package emitter turns a loaded JSON document into a paced, ordered
// sequence of fragments, the way a language-model API streams partial output.
//
// # Strategies
//
// Three independent strategies implement the Strategy interface, one per
// delivery mode:
//
//	Strategy          | Fragments                               | End marker | Delay
//	----------------- | --------------------------------------- | ---------- | ------
//	DeltaStrategy     | runs of characters cut at boundaries    | yes        | 200ms
//	SnapshotStrategy  | full accumulator after each top-level   | yes        | 2.5s
//	                  | member or element is added              |            |
//	RawStrategy       | one character per fragment              | no         | 10ms
//
// A strategy opens a Producer over a Document. Producers are pure: they
// compute fragments and never sleep.
//
// # Streams
//
// A Stream drives one strategy for one consumer. It loads the document on
// the first call to Next, then walks the state machine
//
//	Idle -> Loading -> Error | Streaming -> Draining -> Terminated
//
// sleeping for the strategy's delay before each content fragment. A load
// failure produces exactly one Error fragment followed by the strategy's
// termination. Cancelling the context passed to Next terminates the stream
// at the next fragment boundary; no partial fragment is ever returned.
//
// Streams are not safe for concurrent use and are never shared between
// requests.
package emitter
