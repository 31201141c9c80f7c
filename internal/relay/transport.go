package relay

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	errLineTooLong   = errors.New("line_too_long")
	errFrameTooLarge = errors.New("frame_too_large")
)

// wsFrameLines is how many maximum-length lines one frame may carry before
// the connection is dropped.
const wsFrameLines = 16

// Transport frames protocol lines over a connection. ReadLine is called
// from one goroutine and WriteLine from another.
type Transport interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	// Interrupt unblocks a pending ReadLine while leaving writes usable.
	Interrupt()
	Close() error
	RemoteAddr() string
}

type tcpTransport struct {
	conn         net.Conn
	r            *bufio.Reader
	writeTimeout time.Duration
	pendingEOF   bool
	closeOnce    sync.Once
}

func newTCPTransport(conn net.Conn, maxLine int, writeTimeout time.Duration) *tcpTransport {
	return &tcpTransport{
		conn:         conn,
		r:            bufio.NewReaderSize(conn, maxLine),
		writeTimeout: writeTimeout,
	}
}

// ReadLine returns the next newline-terminated line without its terminator.
// An overlong line is discarded up to its newline and reported as
// errLineTooLong; the stream stays usable.
func (t *tcpTransport) ReadLine() (string, error) {
	if t.pendingEOF {
		return "", io.EOF
	}
	raw, err := t.r.ReadSlice('\n')
	switch {
	case errors.Is(err, bufio.ErrBufferFull):
		for errors.Is(err, bufio.ErrBufferFull) {
			_, err = t.r.ReadSlice('\n')
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		t.pendingEOF = errors.Is(err, io.EOF)
		return "", errLineTooLong
	case errors.Is(err, io.EOF) && len(raw) > 0:
		t.pendingEOF = true
	case err != nil:
		return "", err
	}
	return cleanLine(string(raw)), nil
}

func (t *tcpTransport) WriteLine(line string) error {
	if t.writeTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	_, err := io.WriteString(t.conn, line+"\n")
	return err
}

func (t *tcpTransport) Interrupt() {
	_ = t.conn.SetReadDeadline(time.Now())
}

func (t *tcpTransport) Close() error {
	var err error
	t.closeOnce.Do(func() { err = t.conn.Close() })
	return err
}

func (t *tcpTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

// wsTransport carries one or more protocol lines per text frame. Line
// length is checked per line like on TCP; only a frame beyond the read limit
// fails the connection, since gorilla answers it with a close frame.
type wsTransport struct {
	conn         *websocket.Conn
	pending      []string
	maxLine      int
	failed       error
	writeTimeout time.Duration
	closeOnce    sync.Once
}

func newWSTransport(conn *websocket.Conn, maxLine int, writeTimeout time.Duration) *wsTransport {
	conn.SetReadLimit(int64(maxLine) * wsFrameLines)
	return &wsTransport{conn: conn, maxLine: maxLine, writeTimeout: writeTimeout}
}

// ReadLine never reads again after a failed read: gorilla panics on
// repeated reads of a failed connection.
func (t *wsTransport) ReadLine() (string, error) {
	if t.failed != nil {
		return "", t.failed
	}
	for len(t.pending) == 0 {
		kind, msg, err := t.conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				err = errFrameTooLarge
			}
			t.failed = err
			return "", err
		}
		if kind != websocket.TextMessage {
			continue
		}
		t.pending = strings.Split(strings.TrimSuffix(string(msg), "\n"), "\n")
	}
	line := t.pending[0]
	t.pending = t.pending[1:]
	if len(line) > t.maxLine {
		return "", errLineTooLong
	}
	return cleanLine(line), nil
}

func (t *wsTransport) WriteLine(line string) error {
	if t.writeTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	return t.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (t *wsTransport) Interrupt() {
	_ = t.conn.SetReadDeadline(time.Now())
}

func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() { err = t.conn.Close() })
	return err
}

func (t *wsTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

func cleanLine(s string) string {
	s = strings.TrimRight(s, "\r\n")
	return strings.ToValidUTF8(s, "�")
}
