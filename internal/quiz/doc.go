// Package quiz runs a quiz session on top of a session link.
//
// Host is authoritative: it owns the roster, draws questions, collects one
// answer per connected player per round, scores, and broadcasts every change.
// Guest mirrors those broadcasts and forwards the local player's answers.
//
// Both keep their state on a private serial.Worker. Application-facing
// notifications arrive on Events in the order they happened; a consumer that
// falls behind never stalls the protocol.
package quiz
