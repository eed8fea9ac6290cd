package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/dragoon4890/siren/internal/observe"
	"github.com/dragoon4890/siren/pkg/types"
)

// maxSegmentBytes bounds the size of one uploaded WAV segment. The longest
// legal segment is a few hundred KiB of 16 kHz mono PCM; 8 MiB leaves room
// for higher sample rates and stereo capture.
const maxSegmentBytes = 8 << 20

// Server serves the /translate WebSocket endpoint. Each connection gets its
// own read loop; the pipeline is shared.
type Server struct {
	pipeline *Pipeline
	metrics  *observe.Metrics
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithServerMetrics overrides the metrics instance. Defaults to
// [observe.DefaultMetrics].
func WithServerMetrics(m *observe.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// NewServer constructs a Server around the given pipeline.
func NewServer(p *Pipeline, opts ...ServerOption) *Server {
	s := &Server{pipeline: p}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Register adds the /translate route to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /translate", s.HandleTranslate)
}

// HandleTranslate upgrades the request to a WebSocket connection, sends the
// greeting, and processes binary segments until the client disconnects.
//
// Processing errors are logged and the connection continues; only transport
// errors end the session.
func (s *Server) HandleTranslate(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept failed", slog.String("error", err.Error()))
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxSegmentBytes)

	ctx := r.Context()
	log := observe.Logger(ctx).With(slog.String("remote", r.RemoteAddr))
	log.Info("translation session opened")

	s.metrics.ActiveConnections.Add(ctx, 1)
	defer s.metrics.ActiveConnections.Add(ctx, -1)

	if err := conn.Write(ctx, websocket.MessageText, []byte(types.Greeting)); err != nil {
		log.Warn("greeting failed", slog.String("error", err.Error()))
		return
	}

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			logDisconnect(log, err)
			return
		}
		if typ != websocket.MessageBinary {
			// Text frames from the client carry no meaning yet.
			continue
		}

		result, err := s.pipeline.Process(ctx, data)
		if err != nil {
			log.Error("segment processing failed", slog.String("error", err.Error()))
			continue
		}
		if result == nil {
			continue
		}

		payload, err := json.Marshal(result)
		if err != nil {
			log.Error("marshal result failed", slog.String("error", err.Error()))
			continue
		}
		if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
			logDisconnect(log, err)
			return
		}
		log.Info("segment translated", slog.String("line", result.TranscriptLine()))
	}
}

// logDisconnect logs transport-level read/write failures, demoting expected
// close conditions to debug level.
func logDisconnect(log *slog.Logger, err error) {
	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
		errors.Is(err, context.Canceled) {
		log.Debug("translation session closed")
		return
	}
	log.Warn("translation session ended", slog.String("error", err.Error()))
}
