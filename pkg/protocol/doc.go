// ABOUTME: CRAS control channel package
// ABOUTME: Provides message encoding and the unix socket transports used by streams
// Package protocol implements the control channel between a CRAS client and the server.
//
// Two sockets are involved per stream:
//   - the administrative ServerSocket, shared by the client, which carries
//     fixed-size server messages such as DisconnectStreamMessage and can pass
//     file descriptors alongside them
//   - the per-stream AudioSocket, which carries 12-byte AudioMessage values that
//     pace the exchange of samples through shared memory
//
// All messages are packed little-endian structures.
//
// Example:
//
//	a, b, err := protocol.NewSocketPair()
//	client := protocol.NewAudioSocket(a)
//	server := protocol.NewAudioSocket(b)
//	err = server.RequestData(480)
//	msg, err := client.ReadAudioMessage()
package protocol
