package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/vango-dev/domafic/internal/artifact"
	"github.com/vango-dev/domafic/internal/errors"
	"github.com/vango-dev/domafic/pkg/app"
	"github.com/vango-dev/domafic/pkg/effect"
	"github.com/vango-dev/domafic/pkg/host"
	"github.com/vango-dev/domafic/pkg/host/wshost"
	"github.com/vango-dev/domafic/pkg/keypath"
	"github.com/vango-dev/domafic/pkg/server"
	"github.com/vango-dev/domafic/pkg/vdom"
)

type profile struct {
	Name     string
	Clients  int
	Duration time.Duration
	RPS      float64
	ListSize int
	Payload  int
	MaxProcs int
}

var profiles = map[string]profile{
	"fast":     {Name: "fast", Clients: 50, Duration: 10 * time.Second, RPS: 2, ListSize: 20, Payload: 24},
	"standard": {Name: "standard", Clients: 200, Duration: 30 * time.Second, RPS: 5, ListSize: 50, Payload: 24},
	"stress":   {Name: "stress", Clients: 500, Duration: 60 * time.Second, RPS: 10, ListSize: 100, Payload: 24, MaxProcs: 4},
}

type benchConfig struct {
	profile
	EventTimeout time.Duration
	JSONOutput   string
}

type benchCounters struct {
	eventsSent     atomic.Uint64
	eventsComplete atomic.Uint64
	eventBytes     atomic.Uint64
	frameBytes     atomic.Uint64
	frames         atomic.Uint64
	opsTotal       atomic.Uint64
}

type benchErrors struct {
	dialFailures       atomic.Uint64
	mountFailures      atomic.Uint64
	eventWriteFailures atomic.Uint64
	frameFailures      atomic.Uint64
	tokenMissing       atomic.Uint64
	total              atomic.Uint64
}

// opCounts counts received ops by name.
type opCounts struct {
	mu     sync.Mutex
	counts map[string]uint64
}

func (c *opCounts) add(op string) {
	c.mu.Lock()
	if c.counts == nil {
		c.counts = make(map[string]uint64)
	}
	c.counts[op]++
	c.mu.Unlock()
}

func (c *opCounts) snapshot() map[string]uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]uint64, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

func benchCmd() *cobra.Command {
	var (
		profileName string
		cfg         benchConfig
		duration    string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Load test the server with simulated browsers",
		Long: `Start an in-process server and drive it with WebSocket clients that
behave like the thin client. Each client types into an input; the
round trip ends when the echoed text arrives in an op frame.

Profiles: fast, standard, stress. Flags override the profile.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, ok := profiles[strings.ToLower(strings.TrimSpace(profileName))]
			if !ok {
				return errors.New(errors.CodeInvalidConfig).WithDetailf("unknown profile %q", profileName)
			}
			flags := cmd.Flags()
			if !flags.Changed("clients") {
				cfg.Clients = base.Clients
			}
			if !flags.Changed("rps") {
				cfg.RPS = base.RPS
			}
			if !flags.Changed("list") {
				cfg.ListSize = base.ListSize
			}
			if !flags.Changed("payload-bytes") {
				cfg.Payload = base.Payload
			}
			if !flags.Changed("max-procs") {
				cfg.MaxProcs = base.MaxProcs
			}
			cfg.Name = base.Name
			cfg.Duration = base.Duration
			if duration != "" {
				d, err := time.ParseDuration(duration)
				if err != nil {
					return errors.New(errors.CodeInvalidConfig).WithDetail("--duration").Wrap(err)
				}
				cfg.Duration = d
			}
			if err := cfg.validate(); err != nil {
				return err
			}
			cfg.EventTimeout = eventTimeout(cfg.RPS)

			if cfg.MaxProcs > 0 {
				runtime.GOMAXPROCS(cfg.MaxProcs)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			report, err := runBench(ctx, cfg)
			if err != nil {
				return err
			}
			writeSummary(cmd.ErrOrStderr(), report)
			return writeJSON(ctx, cmd.OutOrStdout(), cfg.JSONOutput, report)
		},
	}

	cmd.Flags().StringVar(&profileName, "profile", "standard", "Profile: fast|standard|stress")
	cmd.Flags().IntVar(&cfg.Clients, "clients", 0, "Number of concurrent WebSocket clients")
	cmd.Flags().StringVar(&duration, "duration", "", "Benchmark duration, e.g. 30s")
	cmd.Flags().Float64Var(&cfg.RPS, "rps", 0, "Target events/sec per client")
	cmd.Flags().IntVar(&cfg.ListSize, "list", 0, "List size rendered per program")
	cmd.Flags().IntVar(&cfg.Payload, "payload-bytes", 0, "Bytes of text per event")
	cmd.Flags().IntVar(&cfg.MaxProcs, "max-procs", 0, "GOMAXPROCS cap (0 leaves it unchanged)")
	cmd.Flags().StringVar(&cfg.JSONOutput, "json", "-", "JSON report location: '-' for stdout, a path, s3://bucket/key, or '' to skip")

	return cmd
}

func (c benchConfig) validate() error {
	var msg string
	switch {
	case c.Clients <= 0:
		msg = "--clients must be > 0"
	case c.Duration <= 0:
		msg = "--duration must be > 0"
	case c.RPS <= 0:
		msg = "--rps must be > 0"
	case c.ListSize < 0:
		msg = "--list must be >= 0"
	case c.Payload <= 0:
		msg = "--payload-bytes must be > 0"
	case c.MaxProcs < 0:
		msg = "--max-procs must be >= 0"
	default:
		return nil
	}
	return errors.New(errors.CodeInvalidConfig).WithDetail(msg)
}

func eventTimeout(rps float64) time.Duration {
	if rps <= 0 {
		return 0
	}
	timeout := time.Duration(float64(time.Second)/rps) * 10
	return max(timeout, 2*time.Second)
}

// runBench serves the load program on a loopback listener and runs every
// client until cfg.Duration has passed.
func runBench(ctx context.Context, cfg benchConfig) (benchReport, error) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		return benchReport{}, err
	}

	scfg := server.DefaultConfig()
	scfg.CheckOrigin = func(*http.Request) bool { return true }
	scfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := server.New(scfg, loadProgram(cfg.ListSize))

	srvCtx, stopServer := context.WithCancel(ctx)
	served := make(chan error, 1)
	go func() { served <- srv.Serve(srvCtx, ln) }()
	defer func() {
		stopServer()
		<-served
	}()

	wsURL := "ws://" + ln.Addr().String() + scfg.WSPath

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var (
		counters  benchCounters
		errCounts benchErrors
		ops       opCounts
		samplesMu sync.Mutex
		samples   []time.Duration
	)
	record := func(d time.Duration) {
		samplesMu.Lock()
		samples = append(samples, d)
		samplesMu.Unlock()
	}

	var before runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < cfg.Clients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c := &loadClient{id: id, cfg: cfg, counters: &counters, errs: &errCounts, ops: &ops, record: record}
			if err := c.run(runCtx, wsURL); err != nil {
				errCounts.total.Add(1)
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	var after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&after)

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return buildReport(cfg, elapsed, samples, &counters, &errCounts, &ops, before, after), nil
}

// loadClient plays the thin client: it types into the program's input and
// waits for the echo.
type loadClient struct {
	id       int
	cfg      benchConfig
	counters *benchCounters
	errs     *benchErrors
	ops      *opCounts
	record   func(time.Duration)

	conn  *websocket.Conn
	input uint32
}

func (c *loadClient) run(ctx context.Context, url string) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		c.errs.dialFailures.Add(1)
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	c.conn = conn

	// Unblock pending reads when the run ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := c.mount(); err != nil {
		c.errs.mountFailures.Add(1)
		return err
	}

	period := time.Duration(float64(time.Second) / c.cfg.RPS)
	for seq := uint64(1); ; seq++ {
		if ctx.Err() != nil {
			return nil
		}

		token := makeToken(c.id, seq, c.cfg.Payload)
		start := time.Now()
		if err := c.send(token); err != nil {
			c.errs.eventWriteFailures.Add(1)
			return err
		}

		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.EventTimeout))
		if err := c.await(token); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.errs.tokenMissing.Add(1)
			return err
		}
		c.counters.eventsComplete.Add(1)
		c.record(time.Since(start))

		if sleep := period - time.Since(start); sleep > 0 {
			timer := time.NewTimer(sleep)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
	}
}

// mount reads the first frame and finds the input listener.
func (c *loadClient) mount() error {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.EventTimeout))
	f, err := c.readFrame()
	if err != nil {
		return fmt.Errorf("mount: %w", err)
	}
	for _, op := range f.Ops {
		if op.Op == wshost.OpListen && op.Event == "input" {
			c.input = op.Listener
			return nil
		}
	}
	return fmt.Errorf("mount: no input listener in %d ops", len(f.Ops))
}

func (c *loadClient) send(token string) error {
	data, err := json.Marshal(wshost.EventFrame{
		Listener: c.input,
		Event:    vdom.Event{Type: "input"}.WithValue(token),
	})
	if err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("event write: %w", err)
	}
	c.counters.eventsSent.Add(1)
	c.counters.eventBytes.Add(uint64(len(data)))
	return nil
}

// await reads frames until a text op carries token.
func (c *loadClient) await(token string) error {
	for {
		f, err := c.readFrame()
		if err != nil {
			return err
		}
		for _, op := range f.Ops {
			if op.Op == wshost.OpText && op.Text == token {
				return nil
			}
		}
	}
}

func (c *loadClient) readFrame() (wshost.OpsFrame, error) {
	var f wshost.OpsFrame
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(data, &f); err != nil {
		c.errs.frameFailures.Add(1)
		return f, err
	}
	c.counters.frames.Add(1)
	c.counters.frameBytes.Add(uint64(len(data)))
	for _, op := range f.Ops {
		c.ops.add(op.Op)
		c.counters.opsTotal.Add(1)
	}
	return f, nil
}

func makeToken(clientID int, seq uint64, size int) string {
	seed := (uint64(clientID) << 32) ^ seq
	base := strconv.FormatUint(seed, 36)
	if len(base) >= size {
		return base[len(base)-size:]
	}
	return base + strings.Repeat("x", size-len(base))
}

// The load program: an input echoed into a text node and written into one
// row of a keyed list chosen by hash.

type loadState struct {
	Echo  string
	Items []string
}

type echoed struct{ Value string }

func loadProgram(listSize int) server.RunFunc {
	return func(ctx context.Context, doc host.Document, selector string, opts ...app.Option) error {
		items := make([]string, listSize)
		for i := range items {
			items[i] = fmt.Sprintf("Item %d", i)
		}
		return app.Run(ctx, doc, selector, loadUpdate, loadView, loadState{Items: items}, opts...)
	}
}

func loadUpdate(s *loadState, msg vdom.Message, _ keypath.Path, _ effect.IO) {
	m, ok := msg.(echoed)
	if !ok {
		return
	}
	s.Echo = m.Value
	if len(s.Items) > 0 {
		s.Items[fnv1a32(m.Value)%uint32(len(s.Items))] = m.Value
	}
}

func loadView(s *loadState) vdom.Nodes {
	return vdom.Div(
		vdom.Input(vdom.Type("text"), vdom.OnInput(loadInput)),
		vdom.Div(vdom.ID("echo"), s.Echo),
		vdom.Ul(vdom.Map(s.Items, func(i int, it string) vdom.Node {
			return vdom.Li(it).WithKey(keypath.Key(strconv.Itoa(i)))
		})),
	)
}

func loadInput(ev vdom.Event) vdom.Message {
	v, ok := ev.Value()
	if !ok {
		return nil
	}
	return echoed{Value: v}
}

func fnv1a32(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	var h uint32 = offset32
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}

// writeJSON writes the report to stdout ("-"), a file or an S3 location.
func writeJSON(ctx context.Context, stdout io.Writer, location string, report benchReport) error {
	if location == "" {
		return nil
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if location == "-" {
		_, err = stdout.Write(data)
		return err
	}
	return artifact.New(artifact.OptionsFromEnv()).Write(ctx, location, data, "application/json")
}
