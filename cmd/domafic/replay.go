package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/domafic/examples/todomvc"
	"github.com/vango-dev/domafic/internal/artifact"
	"github.com/vango-dev/domafic/internal/errors"
	"github.com/vango-dev/domafic/pkg/app"
	"github.com/vango-dev/domafic/pkg/host"
	"github.com/vango-dev/domafic/pkg/host/htmlhost"
	"github.com/vango-dev/domafic/pkg/vdom"
)

// Script is a replay script: events dispatched to the todo program running
// on an in-process document, with expectations checked between them.
type Script struct {
	Name  string `yaml:"name"`
	Root  string `yaml:"root"`
	Steps []Step `yaml:"steps"`
}

// Step dispatches one event, checks one expectation, or both in that order.
type Step struct {
	Name   string  `yaml:"name"`
	Event  string  `yaml:"event"`
	Target string  `yaml:"target"`
	Index  int     `yaml:"index"`
	Value  *string `yaml:"value"`
	Key    int     `yaml:"key"`
	Shift  bool    `yaml:"shift"`
	Alt    bool    `yaml:"alt"`
	Ctrl   bool    `yaml:"ctrl"`
	Meta   bool    `yaml:"meta"`
	Expect *Expect `yaml:"expect"`
}

// Expect describes the document after a step. Unset fields are not checked.
type Expect struct {
	Selector  string  `yaml:"selector"`
	Index     int     `yaml:"index"`
	Count     *int    `yaml:"count"`
	Text      *string `yaml:"text"`
	Title     *string `yaml:"title"`
	Mutations *int    `yaml:"mutations"`
}

func (s Step) label(i int) string {
	if s.Name != "" {
		return fmt.Sprintf("step %d (%s)", i+1, s.Name)
	}
	return fmt.Sprintf("step %d", i+1)
}

// ParseScript decodes and checks a replay script. Unknown fields are
// rejected.
func ParseScript(r io.Reader) (*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Script
	if err := dec.Decode(&s); err != nil {
		return nil, errors.New(errors.CodeBadScript).Wrap(err)
	}
	if len(s.Steps) == 0 {
		return nil, errors.New(errors.CodeBadScript).WithDetail("script has no steps")
	}
	if s.Root == "" {
		s.Root = "body"
	}
	for i, st := range s.Steps {
		switch {
		case st.Event == "" && st.Expect == nil:
			return nil, errors.New(errors.CodeBadScript).
				WithDetailf("%s has neither an event nor an expectation", st.label(i))
		case st.Event != "" && st.Target == "":
			return nil, errors.New(errors.CodeBadScript).
				WithDetailf("%s: %s event has no target", st.label(i), st.Event)
		case st.Expect != nil && st.Expect.Selector == "" && (st.Expect.Count != nil || st.Expect.Text != nil):
			return nil, errors.New(errors.CodeBadScript).
				WithDetailf("%s: count and text need a selector", st.label(i))
		}
	}
	return &s, nil
}

// Report summarizes a replay.
type Report struct {
	Steps     int
	Mutations int
	HTML      string
}

// Replayer runs scripts against a fresh todo program.
type Replayer struct {
	Out     io.Writer
	Logger  *slog.Logger
	Verbose bool
}

// Run executes s and stops at the first failed step.
func (r *Replayer) Run(ctx context.Context, s *Script) (*Report, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	out := r.Out
	if out == nil {
		out = io.Discard
	}

	doc := htmlhost.New()
	rec := host.NewRecorder(doc)
	p := todomvc.New(rec, app.WithLogger(logger))
	if err := p.Start(s.Root); err != nil {
		return nil, errors.New(errors.CodeBadScript).WithDetailf("root %q", s.Root).Wrap(err)
	}

	report := &Report{}
	for i, st := range s.Steps {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		rec.Reset()

		if st.Event != "" {
			if err := dispatch(doc, st, st.label(i)); err != nil {
				return report, err
			}
			if err := settle(p); err != nil {
				return report, errors.New(errors.CodeScriptFailed).WithDetail(st.label(i)).Wrap(err)
			}
		}

		muts := rec.Mutations()
		report.Steps++
		report.Mutations += len(muts)

		if st.Expect != nil {
			if err := check(doc, st.Expect, len(muts)); err != nil {
				return report, errors.New(errors.CodeScriptFailed).
					WithDetailf("%s: %s", st.label(i), err)
			}
		}

		fmt.Fprintf(out, "\033[32m✓\033[0m %s %s (%d mutations)\n", st.label(i), describeStep(st), len(muts))
		if r.Verbose {
			for _, op := range muts {
				fmt.Fprintf(out, "    %s\n", op)
			}
		}
	}

	if root := doc.Find(s.Root); root != nil {
		report.HTML = htmlhost.InnerHTML(root)
	}
	logger.Debug("replay finished", "script", s.Name, "steps", report.Steps, "mutations", report.Mutations)
	return report, nil
}

// settle drains the program, waiting for effects it started.
func settle(p *app.Program[todomvc.State]) error {
	if err := p.Drain(); err != nil {
		return err
	}
	p.WaitEffects()
	return p.Drain()
}

func dispatch(doc *htmlhost.Document, st Step, label string) error {
	matches := doc.FindAll(st.Target)
	if st.Index < 0 || st.Index >= len(matches) {
		return errors.New(errors.CodeScriptFailed).
			WithDetailf("%s: %q matched %d elements, want index %d", label, st.Target, len(matches), st.Index)
	}

	ev := vdom.Event{
		Type:     st.Event,
		KeyCode:  st.Key,
		ShiftKey: st.Shift,
		AltKey:   st.Alt,
		CtrlKey:  st.Ctrl,
		MetaKey:  st.Meta,
	}
	if st.Value != nil {
		ev = ev.WithValue(*st.Value)
	}
	if doc.Dispatch(matches[st.Index], ev) == 0 {
		return errors.New(errors.CodeScriptFailed).
			WithDetailf("%s: no %s listener on %s", label, st.Event, st.Target)
	}
	return nil
}

func check(doc *htmlhost.Document, e *Expect, mutations int) error {
	if e.Selector != "" {
		matches := doc.FindAll(e.Selector)
		if e.Count != nil && len(matches) != *e.Count {
			return fmt.Errorf("%q matched %d elements, want %d", e.Selector, len(matches), *e.Count)
		}
		if e.Text != nil {
			if e.Index < 0 || e.Index >= len(matches) {
				return fmt.Errorf("%q has no element %d", e.Selector, e.Index)
			}
			if got := textContent(matches[e.Index]); got != *e.Text {
				return fmt.Errorf("%q text = %q, want %q", e.Selector, got, *e.Text)
			}
		}
	}
	if e.Title != nil {
		if got := doc.Title(); got != *e.Title {
			return fmt.Errorf("title = %q, want %q", got, *e.Title)
		}
	}
	if e.Mutations != nil && mutations != *e.Mutations {
		return fmt.Errorf("%d mutations, want %d", mutations, *e.Mutations)
	}
	return nil
}

func describeStep(st Step) string {
	var parts []string
	if st.Event != "" {
		parts = append(parts, st.Event+" "+st.Target)
	}
	if st.Expect != nil {
		parts = append(parts, "expect")
	}
	return strings.Join(parts, ", ")
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func replayCmd() *cobra.Command {
	var (
		verbose  bool
		showHTML bool
	)

	cmd := &cobra.Command{
		Use:   "replay <script.yaml|s3://bucket/key>",
		Short: "Replay a scripted session against the todo program",
		Long: `Replay dispatches the events of a YAML script to the todo program
running on an in-process document and checks the expectations between
them. No browser is needed. Scripts may be read from S3 using the
standard AWS_* environment variables.

Example script:

  name: add a todo
  steps:
    - event: input
      target: input.new-todo
      value: buy milk
    - event: keydown
      target: input.new-todo
      key: 13
      value: buy milk
    - expect:
        selector: li
        count: 1
        text: buy milkRemove`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			f, err := artifact.New(artifact.OptionsFromEnv()).Open(ctx, args[0])
			if err != nil {
				return errors.New(errors.CodeBadScript).Wrap(err)
			}
			defer f.Close()

			script, err := ParseScript(f)
			if err != nil {
				return err
			}

			r := &Replayer{Out: cmd.OutOrStdout(), Verbose: verbose}
			report, err := r.Run(ctx, script)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d steps, %d mutations\n", report.Steps, report.Mutations)
			if showHTML {
				fmt.Fprintln(cmd.OutOrStdout(), report.HTML)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every host mutation")
	cmd.Flags().BoolVar(&showHTML, "html", false, "Print the final document")

	return cmd
}
