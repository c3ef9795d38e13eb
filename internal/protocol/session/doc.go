// Package session turns a block-oriented radio link into ordered delivery of
// whole messages.
//
// Ownership boundary:
// - radio capability interfaces consumed by both roles
// - per-peer outbound queues, one block in flight awaiting its write ack
// - per-peer reassembly through the frame package
// - the join handshake and host-side admission control
//
// Server (host role) and Client (guest role) each keep all state on a private
// serial.Worker; results reach the application through Events.
package session
