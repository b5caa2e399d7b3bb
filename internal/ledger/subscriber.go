package ledger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/amitsaini144/solagram/internal/model"
)

const (
	subWriteWait  = 5 * time.Second
	subPongWait   = 60 * time.Second
	subPingPeriod = 20 * time.Second
	subMaxBackoff = 30 * time.Second
)

// Notification reports a record that changed on the ledger.
type Notification struct {
	Address model.Address
	Slot    uint64
}

// Subscriber maintains a websocket subscription to the node's record change
// stream and delivers notifications to a callback. It reconnects with
// capped exponential backoff until its context is canceled.
type Subscriber struct {
	endpoint string
	logger   *zap.Logger
	onChange func(Notification)
}

// NewSubscriber creates a subscriber for the node's websocket endpoint,
// e.g. ws://127.0.0.1:8900. onChange is called from the read loop and must
// not block.
func NewSubscriber(endpoint string, onChange func(Notification), logger *zap.Logger) *Subscriber {
	return &Subscriber{
		endpoint: endpoint,
		logger:   logger,
		onChange: onChange,
	}
}

// Run connects and consumes notifications until ctx is canceled.
func (s *Subscriber) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := s.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.Warn("subscription dropped, reconnecting",
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > subMaxBackoff {
			backoff = subMaxBackoff
		}
	}
}

type wireNotification struct {
	Method string `json:"method"`
	Params struct {
		Address string `json:"address"`
		Slot    uint64 `json:"slot"`
	} `json:"params"`
}

// consume runs one connection until it fails or ctx is canceled.
func (s *Subscriber) consume(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, s.endpoint, nil)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(subWriteWait))
	if err := conn.WriteJSON(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "record_subscribe",
	}); err != nil {
		return err
	}

	s.logger.Info("subscribed to record changes", zap.String("endpoint", s.endpoint))

	conn.SetReadDeadline(time.Now().Add(subPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(subPongWait))
	})

	// Close the connection when ctx ends so the blocked read returns.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(subPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(subWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var note wireNotification
		if err := json.Unmarshal(raw, &note); err != nil {
			s.logger.Debug("ignoring malformed notification", zap.Error(err))
			continue
		}
		if note.Method != "record_notification" {
			continue
		}

		addr, err := model.ParseAddress(note.Params.Address)
		if err != nil {
			s.logger.Debug("ignoring notification with bad address",
				zap.String("address", note.Params.Address))
			continue
		}
		s.onChange(Notification{Address: addr, Slot: note.Params.Slot})
	}
}
