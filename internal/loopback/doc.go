// ABOUTME: Loopback audio server package
// ABOUTME: Serves a client stream in-process over real sockets and shared memory
// Package loopback plays the audio server's part for a single stream.
//
// Connect builds both socket pairs and a shared memory region, hands the
// client ends to a new stream.Stream and keeps the server ends. The peer then
// paces the stream the way the server does: REQUEST_DATA followed by a
// drain of the committed frames for playback, or a filled period followed by
// DATA_READY for capture. Disconnect messages sent on the administrative
// socket are recorded.
//
// It lets the CLI render a stream to a file and lets tests run the whole
// client against a real transport without a running server.
package loopback
