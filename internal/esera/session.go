package esera

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/esera-bridge/bridge/internal/logging"
	"github.com/esera-bridge/bridge/internal/queue"
)

// readTimeout is the inactivity timeout past which a controller connection
// is considered dead — deliberately longer than the 120s
// keepalive-send interval the handshake configures, so two missed
// keepalives, not one, trigger the disconnect.
const readTimeout = 300 * time.Second

const readBufSize = 4096

// ControllerSession owns one TCP connection to one ESERA controller:
// sends commands, receives parsed messages, and supports out-of-order
// "pick this kind" waits alongside an ordered stream of everything else,
// backed by a connect/receive-loop/done-flag shutdown shape and a
// pending-message queue supporting out-of-order Pick.
type ControllerSession struct {
	conn   net.Conn
	logger *logging.Logger

	contno    uint8
	contnoSet bool

	mu      sync.Mutex
	cond    *sync.Cond
	pending []Response
	fatal   error

	streamOut *queue.Unbounded[Response]
	writeOut  *queue.Unbounded[string]

	sendMu sync.Mutex
	closed bool

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Open dials address, runs the controller-setup handshake to completion,
// and returns a session ready for Stream(). The picked CSI and device list
// are re-queued as ordinary stream messages before Open returns, so that
// the Bus is initialised through the same Bus.Handle1Wire path as any later
// enumeration. They are appended behind any events that arrived during the
// handshake, so those events reach Stream() first.
func Open(ctx context.Context, address string, logger *logging.Logger) (*ControllerSession, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, address, err)
	}

	s := &ControllerSession{
		conn:      conn,
		logger:    logger,
		streamOut: queue.NewUnbounded[Response](),
		writeOut:  queue.NewUnbounded[string](),
		done:      make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)

	s.wg.Add(2)
	go s.readerLoop()
	go s.writerLoop()

	// streamPump must not start until the handshake's Picks have drained
	// every reply they're waiting on: it competes with Pick for the same
	// pending queue, and a handshake reply it grabs first would sit
	// unread in streamOut (nothing drains Stream() until Open returns),
	// deadlocking the Pick waiting on it.
	if err := s.handshake(); err != nil {
		s.Close()
		return nil, err
	}

	s.wg.Add(1)
	go s.streamPump()

	return s, nil
}

// handshake runs the controller-setup sequence: dataprint on, set
// date/time, keepalive and datatime intervals, save, then fetch CSI and
// device list.
func (s *ControllerSession) handshake() error {
	if err := s.Send("SET,SYS,DATAPRINT,1"); err != nil {
		return err
	}
	if _, err := s.Pick(isKind(RespDataprint)); err != nil {
		return err
	}

	now := time.Now()
	if err := s.Send(fmt.Sprintf("SET,SYS,DATE,%s", now.Format("02.01.06"))); err != nil {
		return err
	}
	if _, err := s.Pick(isKind(RespDate)); err != nil {
		return err
	}

	if err := s.Send(fmt.Sprintf("SET,SYS,TIME,%s", now.Format("15:04:05"))); err != nil {
		return err
	}
	if _, err := s.Pick(isKind(RespTime)); err != nil {
		return err
	}

	if err := s.Send("SET,SYS,KALSENDTIME,120"); err != nil {
		return err
	}
	if err := s.Send("SET,SYS,DATATIME,30"); err != nil {
		return err
	}

	if err := s.Send("SET,SYS,SAVE"); err != nil {
		return err
	}
	if _, err := s.Pick(isDevstatus("SAVE")); err != nil {
		return err
	}

	if err := s.Send("GET,SYS,INFO"); err != nil {
		return err
	}
	csi, err := s.Pick(isKind(RespCSI))
	if err != nil {
		return err
	}
	s.contno = csi.CSI.Contno
	s.contnoSet = true

	if err := s.Send("GET,OWB,LISTALL1"); err != nil {
		return err
	}
	list, err := s.Pick(isKind(RespList3))
	if err != nil {
		return err
	}

	s.pushResponse(csi)
	s.pushResponse(list)
	return nil
}

func isKind(kind ResponseKind) func(Response) bool {
	return func(r Response) bool { return r.Kind == kind }
}

func isDevstatus(addr string) func(Response) bool {
	return func(r Response) bool { return r.Kind == RespDevstatus && r.Devstatus.Addr == addr }
}

// Contno returns the controller number fixed by the handshake's CSI pick.
func (s *ControllerSession) Contno() (uint8, bool) { return s.contno, s.contnoSet }

// Send enqueues a command line, appending CR/LF if missing. The write
// queue is unbounded so Send never blocks on a slow writer. sendMu
// serialises Send against Close so a concurrent Close can't close
// writeOut out from under an in-flight send.
func (s *ControllerSession) Send(line string) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return ErrNotConnected
	}
	s.writeOut.In() <- line
	return nil
}

// Pick blocks until a message satisfying match is found anywhere in the
// pending queue, removing and returning it. A controller-error message
// encountered while scanning (before a match) fails the pick with a
// protocol error carrying its numeric code.
func (s *ControllerSession) Pick(match func(Response) bool) (Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		for i, r := range s.pending {
			if r.Kind == RespErr {
				s.pending = append(s.pending[:i:i], s.pending[i+1:]...)
				return Response{}, fmt.Errorf("%w: code %d", ErrProtocol, r.ErrCode)
			}
			if match(r) {
				s.pending = append(s.pending[:i:i], s.pending[i+1:]...)
				return r, nil
			}
		}
		if s.fatal != nil {
			return Response{}, ErrDisconnected
		}
		s.cond.Wait()
	}
}

// Stream returns the channel of messages not consumed by Pick, in arrival
// order. It closes when the connection is lost.
func (s *ControllerSession) Stream() <-chan Response {
	return s.streamOut.Out()
}

// Close tears down both goroutines and the underlying connection.
func (s *ControllerSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
		s.sendMu.Lock()
		s.closed = true
		s.writeOut.Close()
		s.sendMu.Unlock()
		s.mu.Lock()
		if s.fatal == nil {
			s.fatal = ErrDisconnected
		}
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	s.wg.Wait()
	return err
}

func (s *ControllerSession) pushResponse(r Response) {
	s.mu.Lock()
	s.pending = append(s.pending, r)
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *ControllerSession) fail(err error) {
	s.mu.Lock()
	if s.fatal == nil {
		s.fatal = err
	}
	s.cond.Broadcast()
	s.mu.Unlock()
}

// readerLoop reads bytes off the socket and feeds them through Parse,
// pushing every decoded message onto the pending queue. A hard parse
// error discards through the next newline and resumes ;
// a transport error or the 300s inactivity timeout is fatal.
func (s *ControllerSession) readerLoop() {
	defer s.wg.Done()

	var acc []byte
	tmp := make([]byte, readBufSize)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			s.fail(fmt.Errorf("%w: %w", ErrDisconnected, err))
			return
		}
		n, err := s.conn.Read(tmp)
		if n > 0 {
			acc = append(acc, tmp[:n]...)
		}
		if err != nil {
			s.fail(fmt.Errorf("%w: %w", ErrDisconnected, err))
			return
		}

		for {
			consumed, resp, perr := Parse(acc)
			if perr != nil {
				if s.logger != nil {
					s.logger.Warn("discarding malformed controller line", "contno", s.contno, "error", perr)
				}
				acc = discardLine(acc)
				continue
			}
			if consumed == 0 {
				break
			}
			acc = acc[consumed:]
			s.pushResponse(resp)
		}
	}
}

func discardLine(buf []byte) []byte {
	for i, b := range buf {
		if b == '\n' {
			return buf[i+1:]
		}
	}
	return buf
}

// writerLoop serialises outbound command writes.
func (s *ControllerSession) writerLoop() {
	defer s.wg.Done()
	for line := range s.writeOut.Out() {
		if len(line) < 2 || line[len(line)-2:] != "\r\n" {
			line += "\r\n"
		}
		if err := s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
			s.fail(fmt.Errorf("%w: %w", ErrDisconnected, err))
			return
		}
		if _, err := s.conn.Write([]byte(line)); err != nil {
			s.fail(fmt.Errorf("%w: %w", ErrDisconnected, err))
			return
		}
	}
}

// streamPump drains the pending queue into the Stream() channel in FIFO
// order, leaving room for a concurrent Pick to pull a match out from
// under it.
func (s *ControllerSession) streamPump() {
	defer s.wg.Done()
	defer s.streamOut.Close()
	for {
		s.mu.Lock()
		for len(s.pending) == 0 && s.fatal == nil {
			s.cond.Wait()
		}
		if len(s.pending) == 0 && s.fatal != nil {
			s.mu.Unlock()
			return
		}
		r := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		s.streamOut.In() <- r
	}
}
