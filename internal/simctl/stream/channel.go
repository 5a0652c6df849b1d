// Package stream maintains the per-job WebSocket channel that delivers live
// training metrics and status frames. The channel owns its reconnect policy;
// it never touches persistent storage.
package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/simulationcontrol/simctl/internal/simctl/domain"
	"github.com/simulationcontrol/simctl/pkg/config"
	"github.com/simulationcontrol/simctl/pkg/errors"
	"github.com/simulationcontrol/simctl/pkg/logger"
)

// ConnState is the channel's connection lifecycle state
type ConnState string

const (
	StateDisconnected ConnState = "DISCONNECTED"
	StateConnecting   ConnState = "CONNECTING"
	StateConnected    ConnState = "CONNECTED"
	// StateError means reconnect attempts were exhausted; only a fresh
	// Connect leaves this state
	StateError ConnState = "ERROR"
)

// MessageHandler receives classified frames from the channel
type MessageHandler func(Message)

// StateHandler receives connection state transitions
type StateHandler func(ConnState)

// Channel is a reconnecting WebSocket subscription to one job's metrics
// stream. At most one job is tracked at a time; connecting to a new job
// tears the previous subscription down first.
type Channel struct {
	cfg    config.StreamConfig
	dialer *websocket.Dialer
	logger *logger.Logger

	mu             sync.Mutex
	conn           *websocket.Conn
	writeMu        sync.Mutex
	jobID          string
	state          ConnState
	attempt        int
	generation     uint64
	reconnectTimer *time.Timer
	heartbeatStop  chan struct{}
	msgSubs        map[string]MessageHandler
	stateSubs      map[string]StateHandler
}

// NewChannel builds a channel from the stream section of the config
func NewChannel(cfg config.StreamConfig, log *logger.Logger) *Channel {
	if log == nil {
		log = logger.WithField("component", "metrics-stream")
	}
	return &Channel{
		cfg:       cfg,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:    log,
		state:     StateDisconnected,
		msgSubs:   make(map[string]MessageHandler),
		stateSubs: make(map[string]StateHandler),
	}
}

// State returns the current connection state
func (c *Channel) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// JobID returns the tracked job id, empty when disconnected
func (c *Channel) JobID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobID
}

// OnMessage subscribes to classified frames. The returned function removes
// the subscription.
func (c *Channel) OnMessage(handler MessageHandler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := uuid.NewString()
	c.msgSubs[id] = handler
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.msgSubs, id)
	}
}

// OnStatusChange subscribes to connection state transitions
func (c *Channel) OnStatusChange(handler StateHandler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := uuid.NewString()
	c.stateSubs[id] = handler
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.stateSubs, id)
	}
}

// Connect subscribes to jobID's stream. Connecting to the already-tracked
// job while connected is a no-op; any other case tears down the existing
// subscription and starts fresh with the attempt counter reset.
func (c *Channel) Connect(ctx context.Context, jobID string) error {
	c.mu.Lock()
	if c.jobID == jobID && c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	c.teardownLocked()
	c.jobID = jobID
	c.attempt = 0
	c.mu.Unlock()

	return c.dial(ctx)
}

// Disconnect closes the subscription with a normal close frame and stops all
// timers. The channel will not reconnect until the next Connect.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
	c.jobID = ""
	c.setStateLocked(StateDisconnected)
}

// teardownLocked stops timers, invalidates the running read loop and closes
// the connection politely. Callers hold c.mu.
func (c *Channel) teardownLocked() {
	c.generation++
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
	if c.conn != nil {
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		c.writeMu.Unlock()
		c.conn.Close()
		c.conn = nil
	}
}

// dial opens the WebSocket for the tracked job and starts the read loop
func (c *Channel) dial(ctx context.Context) error {
	c.mu.Lock()
	jobID := c.jobID
	if jobID == "" {
		c.mu.Unlock()
		return errors.WrapStreamError("", "connect", errors.ErrStreamClosed)
	}
	gen := c.generation
	c.setStateLocked(StateConnecting)
	url := c.cfg.BaseURL + "/jobs/" + jobID + "/metrics/stream"
	c.mu.Unlock()

	conn, resp, err := c.dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.logger.Warn("stream dial failed", "jobId", jobID, "error", err)
		c.handleDisconnect(gen)
		return errors.WrapStreamError(jobID, "connect", err)
	}

	c.mu.Lock()
	if gen != c.generation {
		// torn down while dialing
		c.mu.Unlock()
		conn.Close()
		return errors.WrapStreamError(jobID, "connect", errors.ErrStreamClosed)
	}
	c.conn = conn
	c.heartbeatStop = make(chan struct{})
	stop := c.heartbeatStop
	c.setStateLocked(StateConnected)
	c.mu.Unlock()

	c.logger.Info("stream connected", "jobId", jobID)
	go c.readLoop(conn, gen, jobID)
	go c.heartbeatLoop(conn, stop)
	return nil
}

// readLoop consumes frames until the connection dies. A normal close ends
// the subscription; anything else goes through the reconnect path.
func (c *Channel) readLoop(conn *websocket.Conn, gen uint64, jobID string) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			stale := gen != c.generation
			c.mu.Unlock()
			if stale {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				c.logger.Info("stream closed by backend", "jobId", jobID)
				c.mu.Lock()
				c.teardownLocked()
				c.jobID = ""
				c.setStateLocked(StateDisconnected)
				c.mu.Unlock()
				return
			}
			c.logger.Warn("stream read failed", "jobId", jobID, "error", err)
			c.handleDisconnect(gen)
			return
		}

		msg, ok := classifyFrame(data)
		if !ok {
			c.logger.Debug("dropping unrecognized frame", "jobId", jobID, "size", len(data))
			continue
		}
		c.dispatch(msg)
	}
}

// heartbeatLoop sends application-level pings on a fixed interval so idle
// connections are not reaped by intermediaries.
func (c *Channel) heartbeatLoop(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	ping := []byte(`{"type":"ping"}`)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteMessage(websocket.TextMessage, ping)
			c.writeMu.Unlock()
			if err != nil {
				// the read loop observes the same failure and handles it
				return
			}
		}
	}
}

// handleDisconnect schedules a reconnect after an abnormal connection loss,
// or gives up with StateError once attempts are exhausted.
func (c *Channel) handleDisconnect(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || c.jobID == "" {
		return
	}
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	c.attempt++
	if c.attempt > c.cfg.ReconnectAttempts {
		c.logger.Error("reconnect attempts exhausted", "jobId", c.jobID, "attempts", c.cfg.ReconnectAttempts)
		c.setStateLocked(StateError)
		return
	}

	delay := c.cfg.ReconnectDelay * time.Duration(c.attempt)
	c.logger.Info("scheduling stream reconnect", "jobId", c.jobID, "attempt", c.attempt, "delay", delay)
	c.generation++
	nextGen := c.generation
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		live := nextGen == c.generation && c.jobID != ""
		c.mu.Unlock()
		if live {
			c.redial(nextGen)
		}
	})
}

// redial is the reconnect-path dial; it keeps the attempt counter so backoff
// grows across consecutive failures.
func (c *Channel) redial(gen uint64) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.dial(context.Background())
}

// dispatch fans a frame out to subscribers. A panicking handler is contained
// so it cannot kill the read loop.
func (c *Channel) dispatch(msg Message) {
	c.mu.Lock()
	handlers := make([]MessageHandler, 0, len(c.msgSubs))
	for _, h := range c.msgSubs {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()
	for _, h := range handlers {
		c.safeCall(func() { h(msg) })
	}
}

// setStateLocked updates the state and notifies subscribers. Callers hold
// c.mu; notifications run on their own goroutine to avoid lock re-entry.
func (c *Channel) setStateLocked(next ConnState) {
	if c.state == next {
		return
	}
	c.state = next
	handlers := make([]StateHandler, 0, len(c.stateSubs))
	for _, h := range c.stateSubs {
		handlers = append(handlers, h)
	}
	go func() {
		for _, h := range handlers {
			c.safeCall(func() { h(next) })
		}
	}()
}

func (c *Channel) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("subscriber callback panicked", "panic", r)
		}
	}()
	fn()
}

// classifyFrame decides what kind of payload a frame carries. Status frames
// declare themselves with a type field; metrics frames are recognized by
// their mandatory total_timesteps and timestamp fields.
func classifyFrame(data []byte) (Message, bool) {
	var probe struct {
		Type           string          `json:"type"`
		TotalTimesteps *int64          `json:"total_timesteps"`
		Timestamp      string          `json:"timestamp"`
		State          domain.JobState `json:"state"`
		Message        string          `json:"message"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Message{}, false
	}

	if probe.Type == "status" {
		if !probe.State.Valid() {
			return Message{}, false
		}
		return Message{
			Kind:   MessageJobStatus,
			Status: &JobStatusUpdate{State: probe.State, Message: probe.Message},
		}, true
	}

	if probe.Type == "" && probe.TotalTimesteps != nil && probe.Timestamp != "" {
		var metrics domain.TrainingMetrics
		if err := json.Unmarshal(data, &metrics); err != nil {
			return Message{}, false
		}
		return Message{Kind: MessageMetrics, Metrics: &metrics}, true
	}
	return Message{}, false
}
