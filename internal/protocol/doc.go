// Package protocol is the quiz wire catalog.
//
// Every message is a one-byte kind tag followed by a body whose length is fully
// determined by the kind and the session's fixed player id width:
// - player ids are exactly Codec.IDWidth bytes
// - player numbers, scores and choices are single bytes
// - question text is the UTF-8 remainder of the payload
//
// Framing into radio blocks is handled by the frame package; this package only
// sees complete payloads.
package protocol
