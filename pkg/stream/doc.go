// ABOUTME: CRAS client stream package
// ABOUTME: Provides the Stream session that exchanges audio with the server through shared memory
// Package stream implements the client side of a CRAS audio stream.
//
// A Stream coordinates two channels with the server: the per-stream audio
// socket, which carries small pacing messages, and a shared memory region,
// which carries the samples. For playback the loop is:
//
//	request  -> NextPlaybackBuffer blocks until the server sends REQUEST_DATA
//	fill     -> the caller writes frames into the returned window
//	release  -> Commit advances the shared write cursor and sends DATA_READY
//
// Capture mirrors this with NextCaptureBuffer, DATA_READY from the server and
// DATA_CAPTURED from the client.
//
// Example:
//
//	s := stream.New(id, serverSock, 480, audio.DirectionPlayback, 48000, 2, audio.FormatS16LE, audioSock)
//	defer s.Close()
//	if err := s.AttachSharedMemory(shmFile); err != nil {
//	    return err
//	}
//	for {
//	    buf, err := s.NextPlaybackBuffer()
//	    if err != nil {
//	        return err
//	    }
//	    n, _ := io.ReadFull(source, buf.Bytes())
//	    buf.CommitFrames(n / buf.FrameSize())
//	}
//
// Errors returned by buffer requests are *Error values; match them with
// errors.Is against ErrIO, ErrMessageType or ErrNoShm. Failures while
// releasing a buffer or closing the stream are logged and never returned.
package stream
