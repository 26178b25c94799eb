package metrics

import (
	"net"
	"sync/atomic"
)

// sender writes datagrams to a unixgram socket, dialing lazily and again
// after every write error.
type sender struct {
	monitor *monitor
	address string
	conn    net.Conn
}

func newSender(address string, monitor *monitor) *sender {
	return &sender{
		monitor: monitor,
		address: address,
	}
}

func (s *sender) send(packet []byte) {
	if len(packet) == 0 {
		return
	}
	if s.conn == nil {
		conn, err := net.Dial("unixgram", s.address)
		if err != nil {
			atomic.AddInt64(&s.monitor.senderDialError, 1)
			s.monitor.logger.Debug("[metrics.sender] dial fail. address=%s err=%v", s.address, err)
			return
		}
		s.conn = conn
	}
	if _, err := s.conn.Write(packet); err != nil {
		_ = s.conn.Close()
		s.conn = nil
		atomic.AddInt64(&s.monitor.senderWriteError, 1)
		s.monitor.logger.Debug("[metrics.sender] write fail. bytes=%d err=%v", len(packet), err)
	}
}

func (s *sender) close() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}
