// Package wire frames emitter fragments for each endpoint.
//
//	Format          | Content type       | Content fragment                                   | End marker
//	--------------- | ------------------ | -------------------------------------------------- | ------------------------------------
//	FormatDelta     | text/event-stream  | data: {"choices":[{"delta":{"content":"..."}}]}    | data: {"choices":[{"delta":{}}]}
//	FormatSnapshot  | text/event-stream  | data: {"data":"<snapshot as a JSON string>"}       | data: {"data":null}
//	FormatLines     | text/plain         | <snapshot>\n                                       | (none)
//	FormatRaw       | application/json   | <one character>                                    | (none)
//
// SSE events end with a blank line. JSON is compact and never HTML-escaped.
// Each fragment is written with a single Write call so a frame is never
// split across writes.
package wire
