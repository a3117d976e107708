package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"tradecore/internal/domain"
	"tradecore/internal/event"
	"tradecore/internal/infra"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	maxRetries  = 10
	readTimeout = 60 * time.Second
)

// barMessage is the wire format of one feed bar. Prices arrive as strings
// and are parsed exactly with decimal before the one conversion to float
// points for core math.
type barMessage struct {
	Type       string `json:"type"` // "bar"
	Instrument string `json:"instrument"`
	Ts         int64  `json:"ts"`
	Idx        int64  `json:"idx"`
	Open       string `json:"open"`
	High       string `json:"high"`
	Low        string `json:"low"`
	Close      string `json:"close"`
	Volume     string `json:"volume"`
}

// Worker handles the WebSocket bar feed for a set of instruments and routes
// each bar into its instrument's pipeline inbox. Bars are never dropped:
// the send blocks until the pipeline admits it or the context ends.
type Worker struct {
	url       string
	inboxes   map[string]chan<- event.Event
	seqs      map[string]uint64 // per-instrument: each pipeline checks its own contiguous sequence
	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	ctx       context.Context
}

// NewWorker creates a feed gateway worker. inboxes maps instrument name to
// its pipeline inbox.
func NewWorker(url string, inboxes map[string]chan<- event.Event) *Worker {
	return &Worker{
		url:     url,
		inboxes: inboxes,
		seqs:    make(map[string]uint64, len(inboxes)),
	}
}

// Connect starts the WebSocket connection
func (w *Worker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.ctx = ctx
	w.wg.Add(1)
	go w.connectionLoop(ctx)
	return nil
}

func (w *Worker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := w.connect(ctx); err != nil {
			slog.Warn("feed connection failed", slog.Any("error", err), slog.Int("retry", retryCount))
			delay := infra.CalculateBackoff(retryCount)
			retryCount++
			if retryCount > maxRetries {
				retryCount = 0
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		} else {
			retryCount = 0
			w.readLoop(ctx)
		}
	}
}

func (w *Worker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, w.url, http.Header{})
	if err != nil {
		return domain.NewFeedError("connect", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()

	if err := w.subscribe(); err != nil {
		w.closeConnection()
		return err
	}

	slog.Info("feed connected", slog.Int("instruments", len(w.inboxes)))
	return nil
}

func (w *Worker) subscribe() error {
	instruments := make([]string, 0, len(w.inboxes))
	for name := range w.inboxes {
		instruments = append(instruments, name)
	}

	msg := map[string]interface{}{
		"ticket":      fmt.Sprintf("tradecore-%d", time.Now().UnixNano()),
		"type":        "bars",
		"instruments": instruments,
	}
	b, _ := json.Marshal(msg)
	return w.threadSafeWrite(websocket.TextMessage, b)
}

func (w *Worker) threadSafeWrite(msgType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.conn == nil {
		return domain.NewFeedError("write", fmt.Errorf("no connection"))
	}
	return w.conn.WriteMessage(msgType, data)
}

func (w *Worker) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.mu.RLock()
		if w.conn == nil {
			w.mu.RUnlock()
			return
		}
		w.conn.SetReadDeadline(time.Now().Add(readTimeout))
		w.mu.RUnlock()

		_, msg, err := w.conn.ReadMessage()
		if err != nil {
			w.closeConnection()
			return
		}
		w.handleMessage(msg)
	}
}

func (w *Worker) handleMessage(msg []byte) {
	var m barMessage
	if json.Unmarshal(msg, &m) != nil || m.Type != "bar" {
		return
	}

	inbox, ok := w.inboxes[m.Instrument]
	if !ok {
		return
	}

	bar, err := parseBar(m)
	if err != nil {
		// Malformed wire values become a corrupt bar downstream; here we
		// just refuse to fabricate numbers and surface the parse failure.
		slog.Error("unparseable bar", slog.String("instrument", m.Instrument), slog.Any("error", err))
		return
	}

	// Only the readLoop goroutine touches seqs, so a plain increment is safe.
	w.seqs[m.Instrument]++

	ev := event.AcquireBarEvent()
	ev.Seq = w.seqs[m.Instrument]
	ev.Ts = time.Now().UnixMilli()
	ev.Instrument = m.Instrument
	ev.Bar = bar

	// Bars must not be dropped; block until the pipeline admits it.
	select {
	case inbox <- ev:
	case <-w.ctx.Done():
		event.ReleaseBarEvent(ev)
	}
}

// parseBar converts wire strings into a Bar with exact decimal parsing.
func parseBar(m barMessage) (domain.Bar, error) {
	fields := map[string]string{
		"open": m.Open, "high": m.High, "low": m.Low, "close": m.Close, "volume": m.Volume,
	}
	parsed := make(map[string]float64, len(fields))
	for name, raw := range fields {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("field %s: %w", name, err)
		}
		parsed[name], _ = d.Float64()
	}

	return domain.Bar{
		Ts:     m.Ts,
		Index:  m.Idx,
		Open:   parsed["open"],
		High:   parsed["high"],
		Low:    parsed["low"],
		Close:  parsed["close"],
		Volume: parsed["volume"],
	}, nil
}

func (w *Worker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
}

// IsConnected reports the current transport state.
func (w *Worker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

// Disconnect stops the worker and closes the connection.
func (w *Worker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
}
