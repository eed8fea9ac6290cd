package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/dragoon4890/siren/internal/gateway"
	"github.com/dragoon4890/siren/pkg/provider/stt"
	sttmock "github.com/dragoon4890/siren/pkg/provider/stt/mock"
	translatemock "github.com/dragoon4890/siren/pkg/provider/translate/mock"
	"github.com/dragoon4890/siren/pkg/types"
)

// dialTestServer starts an httptest server around srv, dials the /translate
// endpoint, and consumes the greeting.
func dialTestServer(t *testing.T, srv *gateway.Server) *websocket.Conn {
	t.Helper()

	mux := http.NewServeMux()
	srv.Register(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/translate"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })

	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read greeting: %v", err)
	}
	if typ != websocket.MessageText || string(data) != types.Greeting {
		t.Fatalf("greeting = (%v, %q), want text %q", typ, data, types.Greeting)
	}
	return conn
}

func TestServerTranslatesSegment(t *testing.T) {
	t.Parallel()

	transcriber := &sttmock.Transcriber{Result: stt.Result{Text: "good morning everyone", Language: "en"}}
	translator := &translatemock.Translator{Result: "みなさん、おはようございます"}
	p := gateway.NewPipeline(transcriber, translator, "en", "ja",
		gateway.WithMetrics(newTestMetrics(t)))
	srv := gateway.NewServer(p, gateway.WithServerMetrics(newTestMetrics(t)))

	conn := dialTestServer(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageBinary, []byte("fake-wav")); err != nil {
		t.Fatalf("write segment: %v", err)
	}

	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if typ != websocket.MessageText {
		t.Fatalf("reply type = %v, want text", typ)
	}

	var result types.TranslationResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	if result.Transcript != "good morning everyone" {
		t.Errorf("transcript = %q", result.Transcript)
	}
	if result.Translation != "みなさん、おはようございます" {
		t.Errorf("translation = %q", result.Translation)
	}
	if result.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestServerSkipsRejectedTranscript(t *testing.T) {
	t.Parallel()

	// "you" is a canonical recognizer false positive and gets filtered.
	transcriber := &sttmock.Transcriber{Result: stt.Result{Text: "you", Language: "en"}}
	translator := &translatemock.Translator{Result: "x"}
	p := gateway.NewPipeline(transcriber, translator, "en", "ja",
		gateway.WithMetrics(newTestMetrics(t)))
	srv := gateway.NewServer(p, gateway.WithServerMetrics(newTestMetrics(t)))

	conn := dialTestServer(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageBinary, []byte("fake-wav")); err != nil {
		t.Fatalf("write segment: %v", err)
	}

	// No reply should arrive; a short read deadline confirms silence.
	readCtx, readCancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer readCancel()
	if _, _, err := conn.Read(readCtx); err == nil {
		t.Fatal("expected no reply for a rejected transcript")
	}

	// The connection is still usable.
	if err := conn.Ping(ctx); err != nil {
		t.Errorf("connection died after rejected transcript: %v", err)
	}
}

func TestServerContinuesAfterPipelineError(t *testing.T) {
	t.Parallel()

	transcriber := &sttmock.Transcriber{Err: context.DeadlineExceeded}
	p := gateway.NewPipeline(transcriber, &translatemock.Translator{}, "en", "ja",
		gateway.WithMetrics(newTestMetrics(t)))
	srv := gateway.NewServer(p, gateway.WithServerMetrics(newTestMetrics(t)))

	conn := dialTestServer(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageBinary, []byte("fake-wav")); err != nil {
		t.Fatalf("write segment: %v", err)
	}

	// Processing failed but the session survives.
	if err := conn.Ping(ctx); err != nil {
		t.Errorf("connection died after pipeline error: %v", err)
	}
}

func TestServerIgnoresTextFrames(t *testing.T) {
	t.Parallel()

	transcriber := &sttmock.Transcriber{Result: stt.Result{Text: "good morning everyone", Language: "en"}}
	translator := &translatemock.Translator{Result: "translated"}
	p := gateway.NewPipeline(transcriber, translator, "en", "ja",
		gateway.WithMetrics(newTestMetrics(t)))
	srv := gateway.NewServer(p, gateway.WithServerMetrics(newTestMetrics(t)))

	conn := dialTestServer(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageText, []byte("hello?")); err != nil {
		t.Fatalf("write text: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageBinary, []byte("fake-wav")); err != nil {
		t.Fatalf("write segment: %v", err)
	}

	// The only reply corresponds to the binary segment.
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	var result types.TranslationResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	if result.Transcript != "good morning everyone" {
		t.Errorf("transcript = %q", result.Transcript)
	}
}
