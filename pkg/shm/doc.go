// Package shm maps the shared audio region a CRAS server hands to each stream.
//
// The region starts with a 64-byte header holding the frame size, ring
// capacity and period, plus monotonic write and read frame counters. The
// sample ring follows. Header words are read and written atomically in host
// byte order; no lock is shared with the server because the control channel
// handshake already serialises who may move which cursor.
package shm
