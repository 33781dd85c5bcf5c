package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/domafic/internal/config"
	"github.com/vango-dev/domafic/pkg/app"
	"github.com/vango-dev/domafic/pkg/effect"
	"github.com/vango-dev/domafic/pkg/host"
	"github.com/vango-dev/domafic/pkg/host/wshost"
	"github.com/vango-dev/domafic/pkg/keypath"
	"github.com/vango-dev/domafic/pkg/vdom"
)

type counter struct{ N int }

func counterUpdate(s *counter, msg vdom.Message, _ keypath.Path, _ effect.IO) {
	if msg == "inc" {
		s.N++
	}
}

func counterView(s *counter) vdom.Nodes {
	return vdom.Button(vdom.OnClick(vdom.Send("inc")), vdom.Textf("%d", s.N))
}

func runCounter(ctx context.Context, doc host.Document, selector string, opts ...app.Option) error {
	return app.Run(ctx, doc, selector, counterUpdate, counterView, counter{}, opts...)
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wshost.OpsFrame {
	t.Helper()
	var f wshost.OpsFrame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func get(t *testing.T, url string, header http.Header) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func TestPage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Title = "Todos <3"
	srv := httptest.NewServer(New(cfg, runCounter))
	defer srv.Close()

	resp, body := get(t, srv.URL+"/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	for _, want := range []string{
		`<div id="app"></div>`,
		`data-ws="/ws"`,
		`src="/_domafic/client.js"`,
		`<title>Todos &lt;3</title>`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q:\n%s", want, body)
		}
	}
}

func TestThinClientETag(t *testing.T) {
	srv := httptest.NewServer(New(nil, runCounter))
	defer srv.Close()

	resp, body := get(t, srv.URL+ClientPath, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "new WebSocket") {
		t.Error("client script body looks wrong")
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}

	resp, _ = get(t, srv.URL+ClientPath, http.Header{"If-None-Match": {`W/` + etag}})
	if resp.StatusCode != http.StatusNotModified {
		t.Errorf("conditional status = %d, want 304", resp.StatusCode)
	}
}

func TestEtagMatches(t *testing.T) {
	tests := []struct {
		header string
		want   bool
	}{
		{"", false},
		{`"abc"`, true},
		{`"x", W/"abc"`, true},
		{`"abcd"`, false},
	}
	for _, tt := range tests {
		if got := etagMatches(tt.header, `"abc"`); got != tt.want {
			t.Errorf("etagMatches(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}

func TestHealthz(t *testing.T) {
	srv := httptest.NewServer(New(nil, runCounter))
	defer srv.Close()

	resp, body := get(t, srv.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK || body != "ok\n" {
		t.Errorf("healthz = %d %q", resp.StatusCode, body)
	}
}

func TestWebSocketRunsProgram(t *testing.T) {
	s := New(nil, runCounter)
	srv := httptest.NewServer(s)
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	first := readFrame(t, conn)
	if first.Ops[0].Op != wshost.OpMount || first.Ops[0].Selector != "#app" {
		t.Fatalf("first op = %+v", first.Ops[0])
	}
	var lid uint32
	for _, op := range first.Ops {
		if op.Op == wshost.OpListen {
			lid = op.Listener
		}
	}
	if lid == 0 {
		t.Fatalf("no listener in %+v", first.Ops)
	}
	if got := s.Active(); got != 1 {
		t.Errorf("Active() = %d, want 1", got)
	}

	for i := 0; i < 2; i++ {
		if err := conn.WriteJSON(wshost.EventFrame{Listener: lid, Event: vdom.Event{Type: "click"}}); err != nil {
			t.Fatal(err)
		}
	}
	var texts []string
	for len(texts) < 2 {
		for _, op := range readFrame(t, conn).Ops {
			if op.Op == wshost.OpText {
				texts = append(texts, op.Text)
			}
		}
	}
	if texts[0] != "1" || texts[1] != "2" {
		t.Errorf("texts = %v, want [1 2]", texts)
	}

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	deadline := time.Now().Add(5 * time.Second)
	for s.Active() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := s.Active(); got != 0 {
		t.Errorf("Active() after close = %d, want 0", got)
	}
}

func TestCrossOriginRejected(t *testing.T) {
	srv := httptest.NewServer(New(nil, runCounter))
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws"),
		http.Header{"Origin": {"http://evil.example"}})
	if err == nil {
		t.Fatal("cross-origin dial succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
}

func TestOriginChecks(t *testing.T) {
	allow := AllowedOriginsCheck([]string{"https://app.example/"})
	tests := []struct {
		origin string
		same   bool
		listed bool
	}{
		{"", true, true},
		{"http://localhost:3000", true, true},
		{"https://app.example", false, true},
		{"https://evil.example", false, false},
		{"://bad", false, false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "http://localhost:3000/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := SameOriginCheck(r); got != tt.same {
			t.Errorf("SameOriginCheck(%q) = %v, want %v", tt.origin, got, tt.same)
		}
		if got := allow(r); got != tt.listed {
			t.Errorf("AllowedOriginsCheck(%q) = %v, want %v", tt.origin, got, tt.listed)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MetricsPath = "/metrics"
	cfg.Registry = prometheus.NewRegistry()
	srv := httptest.NewServer(New(cfg, runCounter))
	defer srv.Close()

	conn := dial(t, srv)
	readFrame(t, conn)
	conn.Close()

	// The cycle is counted once its frame has been written.
	want := `domafic_cycles_total{kind="init",status="ok"} 1`
	var body string
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_, body = get(t, srv.URL+"/metrics", nil)
		if strings.Contains(body, want) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	for _, w := range []string{want, "domafic_host_mutations_total", "domafic_active_programs"} {
		if !strings.Contains(body, w) {
			t.Errorf("metrics missing %q:\n%s", w, body)
		}
	}
}

func TestShutdownStopsPrograms(t *testing.T) {
	s := New(nil, runCounter)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "ws://" + ln.Addr().String() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	readFrame(t, conn)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}

	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("read after shutdown = %v, want normal close", err)
	}
}

func TestFromConfig(t *testing.T) {
	c := config.New()
	c.Server.Host = "127.0.0.1"
	c.Server.Port = 8081
	c.Server.AllowedOrigins = []string{"https://app.example"}
	c.Metrics.Namespace = "todo"
	c.Tracing.Enabled = true
	c.App.Root = "#root"
	c.Effects.Timeout = "2s"

	cfg := FromConfig(c, nil).withDefaults()
	if cfg.Address != "127.0.0.1:8081" {
		t.Errorf("Address = %q", cfg.Address)
	}
	if cfg.MetricsPath != "/metrics" || cfg.MetricsNamespace != "todo" {
		t.Errorf("metrics = %q %q", cfg.MetricsPath, cfg.MetricsNamespace)
	}
	if !cfg.Tracing || cfg.EffectTimeout != 2*time.Second {
		t.Errorf("tracing=%v timeout=%v", cfg.Tracing, cfg.EffectTimeout)
	}
	if cfg.rootID() != "root" {
		t.Errorf("rootID() = %q, want root", cfg.rootID())
	}
	if cfg.Logger == nil {
		t.Error("Logger should default")
	}

	r := httptest.NewRequest(http.MethodGet, "http://localhost/ws", nil)
	r.Header.Set("Origin", "https://app.example")
	if !cfg.CheckOrigin(r) {
		t.Error("allowed origin rejected")
	}

	c.Metrics.Enabled = false
	if FromConfig(c, nil).MetricsPath != "" {
		t.Error("disabled metrics should not mount an endpoint")
	}
}

func TestWebSocketRefusedAfterShutdown(t *testing.T) {
	s := New(nil, runCounter)
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	w := httptest.NewRecorder()
	s.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if s.track() {
		t.Error("track() succeeded after shutdown")
	}

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refused connection left the wait group non-zero")
	}
}
