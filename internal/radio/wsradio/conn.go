package wsradio

import (
	"sync"
	"time"

	"github.com/danmuck/quizlink/internal/protocol/session"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// wsConn pumps blocks for one websocket. Each written block is reported back
// as RadioBlockWritten once the frame is on the wire.
type wsConn struct {
	ref     session.PeerRef
	conn    *websocket.Conn
	cfg     Config
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	emit    func(session.RadioEvent)
	onClose func(*wsConn)
}

func newConn(ref session.PeerRef, conn *websocket.Conn, cfg Config, emit func(session.RadioEvent), onClose func(*wsConn)) *wsConn {
	return &wsConn{
		ref:     ref,
		conn:    conn,
		cfg:     cfg,
		send:    make(chan []byte, cfg.SendBuffer),
		done:    make(chan struct{}),
		emit:    emit,
		onClose: onClose,
	}
}

func (c *wsConn) start() {
	go c.writePump()
	go c.readPump()
}

func (c *wsConn) enqueue(block []byte) error {
	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}
	select {
	case c.send <- append([]byte(nil), block...):
		return nil
	case <-c.done:
		return ErrNotConnected
	default:
		return ErrSendBufferFull
	}
}

// hangUp sends a close frame and tears the connection down.
func (c *wsConn) hangUp() {
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.cfg.WriteWait),
	)
	c.shutdown()
}

func (c *wsConn) shutdown() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
		if c.onClose != nil {
			c.onClose(c)
		}
		c.emit(session.RadioEvent{Kind: session.RadioDisconnected, Peer: c.ref})
	})
}

func (c *wsConn) readPump() {
	defer c.shutdown()

	c.conn.SetReadLimit(int64(c.cfg.MaxBlock))
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		kind, block, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Str("component", "wsradio.readPump").Str("peer", string(c.ref)).Err(err).Msg("read error")
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		c.emit(session.RadioEvent{Kind: session.RadioBlockReceived, Peer: c.ref, Block: block})
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(c.cfg.pingPeriod())
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case <-c.done:
			return
		case block := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			err := c.conn.WriteMessage(websocket.BinaryMessage, block)
			c.emit(session.RadioEvent{Kind: session.RadioBlockWritten, Peer: c.ref, Err: err})
			if err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
