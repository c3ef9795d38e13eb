// Package wsradio carries radio blocks over websockets, one binary message per
// block. The host mounts Host as an http.Handler; a plain GET on it answers
// whether the host is advertising, which is how guests discover it.
package wsradio
