package server

import (
	"encoding/json"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"gocv.io/x/gocv"
	"golang.org/x/time/rate"

	"github.com/ayusman/signpost/internal/display"
	"github.com/ayusman/signpost/internal/pipeline"
)

// DefaultPublishRate caps JPEG encoding and telemetry pushes per second.
const DefaultPublishRate = 15

// clientBuffer is the number of telemetry messages queued per client
// before new ones are dropped for it.
const clientBuffer = 4

// Hub is a presentation sink for remote viewers. It keeps the latest report
// and annotated JPEG, and fans reports out to telemetry clients. Present is
// called by the frame loop and never blocks on the network.
type Hub struct {
	limiter *rate.Limiter

	mu      sync.RWMutex
	report  pipeline.Report
	has     bool
	jpeg    []byte
	seq     uint64
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a Hub publishing at most perSecond frames and telemetry
// messages per second.
func NewHub(perSecond float64) *Hub {
	if perSecond <= 0 {
		perSecond = DefaultPublishRate
	}
	return &Hub{
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		clients: make(map[*client]struct{}),
	}
}

// Present records the view's report and, when the publish rate allows,
// encodes the annotated frame and pushes the report to telemetry clients.
func (h *Hub) Present(v display.View) error {
	report := v.Report
	report.Overlays = append([]pipeline.Overlay(nil), v.Report.Overlays...)

	h.mu.Lock()
	h.report = report
	h.has = true
	h.mu.Unlock()

	if !h.limiter.Allow() {
		return nil
	}

	var encodeErr error
	if v.Annotated != nil && !v.Annotated.Empty() {
		encodeErr = h.storeFrame(*v.Annotated)
	}

	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	if n == 0 {
		return encodeErr
	}

	msg, err := json.Marshal(report)
	if err != nil {
		return errors.CombineErrors(encodeErr, errors.Wrap(err, "encode telemetry"))
	}
	h.broadcast(msg)
	return encodeErr
}

func (h *Hub) storeFrame(img gocv.Mat) error {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return errors.Wrap(err, "encode stream frame")
	}
	defer buf.Close()

	data := append([]byte(nil), buf.GetBytes()...)

	h.mu.Lock()
	h.jpeg = data
	h.seq++
	h.mu.Unlock()
	return nil
}

func (h *Hub) broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Slow client; it will catch up with the next report.
		}
	}
}

// Latest returns the most recent report, if any frame has been presented.
func (h *Hub) Latest() (pipeline.Report, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.report, h.has
}

// Frame returns the latest annotated JPEG and its sequence number. The
// sequence number is zero until the first frame is encoded.
func (h *Hub) Frame() ([]byte, uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.jpeg, h.seq
}

// Clients returns the number of connected telemetry clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close disconnects every telemetry client.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		c.conn.Close()
	}
	return nil
}
