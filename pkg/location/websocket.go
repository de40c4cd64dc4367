package location

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rubiojr/walkmap/pkg/geo"
)

// Fix is the wire form of a position relayed over WebSocket.
type Fix struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

func (f Fix) Position() geo.Position {
	return geo.Position{Lat: f.Lat, Lng: f.Lng, Accuracy: f.Accuracy, Timestamp: f.Timestamp}
}

// WebSocketSource subscribes to a relay (see the server's
// /api/location/ws) that pushes one JSON Fix per text message.
type WebSocketSource struct {
	URL        string
	Header     http.Header
	Dialer     *websocket.Dialer
	RetryDelay time.Duration
}

// NewWebSocketSource returns a provider reading from url.
func NewWebSocketSource(url string) *WebSocketSource {
	return &WebSocketSource{
		URL:        url,
		Dialer:     websocket.DefaultDialer,
		RetryDelay: 3 * time.Second,
	}
}

// Watch reads fixes until ctx is cancelled, redialling on connection loss.
// Malformed frames are skipped.
func (s *WebSocketSource) Watch(ctx context.Context, _ Options, emit func(geo.Position)) error {
	for {
		err := s.session(ctx, emit)
		if ctx.Err() != nil {
			return nil
		}
		log.Error("websocket %s: %v (retry in %s)", s.URL, err, s.RetryDelay)
		select {
		case <-time.After(s.RetryDelay):
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *WebSocketSource) session(ctx context.Context, emit func(geo.Position)) error {
	conn, _, err := s.Dialer.DialContext(ctx, s.URL, s.Header)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if mt != websocket.TextMessage {
			continue
		}
		var f Fix
		if err := json.Unmarshal(data, &f); err != nil {
			log.Debug("websocket: skipping frame: %v", err)
			continue
		}
		emit(f.Position())
	}
}
