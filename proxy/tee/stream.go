package tee

import (
	"io"
	"sync"
)

// Stream is the client half of a tee. It yields upstream bytes in the order
// they were read and reports an upstream failure as a read error.
//
// Close tells the tee the client is gone; the server calls it when the
// response finishes or the connection drops.
type Stream struct {
	frames  <-chan Frame
	gone    chan struct{}
	pending []byte
	err     error
	once    sync.Once
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		if s.err != nil {
			return 0, s.err
		}

		f, ok := <-s.frames
		if !ok {
			s.err = io.EOF
			return 0, io.EOF
		}
		if f.Err != nil {
			s.err = f.Err
			return 0, f.Err
		}
		s.pending = f.Data
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Close implements io.Closer. It is safe to call more than once.
func (s *Stream) Close() error {
	s.once.Do(func() {
		close(s.gone)
	})
	return nil
}
