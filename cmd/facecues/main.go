// facecues derives behavioral cues from face landmarks.
//
// By default it reads one JSON frame per line on stdin and writes one JSON
// result per line on stdout:
//
//	{"width":640,"height":480,"landmarks":[{"x":0.51,"y":0.42,"z":-0.03},...]}
//
// With -serve it runs the HTTP/websocket API instead.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/teslashibe/go-facecues/internal/config"
	"github.com/teslashibe/go-facecues/internal/log"
	"github.com/teslashibe/go-facecues/pkg/camera"
	"github.com/teslashibe/go-facecues/pkg/facemesh"
	"github.com/teslashibe/go-facecues/pkg/signals"
	"github.com/teslashibe/go-facecues/pkg/web"
)

// maxLine bounds one input line; a 478-point frame is well under this.
const maxLine = 4 << 20

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load before reading FACECUES_* variables")
	serve := flag.Bool("serve", false, "Run the HTTP/websocket API instead of reading stdin")
	port := flag.String("port", "", "Port for -serve (overrides FACECUES_PORT)")
	workers := flag.Int("workers", 0, "Analysis workers (overrides FACECUES_WORKERS)")
	preset := flag.String("preset", camera.DefaultPreset, "Frame size for input lines without width/height: "+strings.Join(camera.PresetNames(), ", "))
	batch := flag.Int("batch", 32, "Lines analyzed together in stdin mode")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "facecues: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "facecues: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	log.Init(cfg.LogLevel)

	size, ok := camera.Preset(*preset)
	if !ok {
		log.Error("unknown preset", "preset", *preset, "valid", camera.PresetNames())
		os.Exit(2)
	}

	analyzer, err := signals.NewAnalyzer(cfg.Signals)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *serve {
		srv := web.NewServer(analyzer, web.Config{Port: cfg.Port, Workers: cfg.Workers})
		if err := srv.Run(ctx); err != nil {
			log.Error("server stopped", "error", err)
			os.Exit(1)
		}
		return
	}

	p := &pipeline{analyzer: analyzer, size: size, batch: *batch, workers: cfg.Workers}
	if err := p.run(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		log.Error("stream failed", "error", err)
		os.Exit(1)
	}
}

// Output is one stdout line. Line numbers start at 1.
type Output struct {
	Line   int             `json:"line"`
	Result *signals.Result `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// pipeline streams JSONL frames through the analyzer.
type pipeline struct {
	analyzer *signals.Analyzer
	size     facemesh.FrameSize // used when a line omits width and height
	batch    int
	workers  int
}

type pending struct {
	line  int
	frame signals.Frame
}

func (p *pipeline) run(ctx context.Context, in io.Reader, out io.Writer) error {
	if p.batch < 1 {
		p.batch = 1
	}
	w := bufio.NewWriter(out)
	defer w.Flush()
	enc := json.NewEncoder(w)

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var queue []pending
	var outputs []Output // in line order; pending entries have a nil Result

	flush := func() error {
		if len(queue) > 0 {
			frames := make([]signals.Frame, len(queue))
			for i, q := range queue {
				frames[i] = q.frame
			}
			results, err := p.analyzer.AnalyzeBatch(ctx, frames, p.workers)
			if err != nil {
				return err
			}
			byLine := make(map[int]*signals.Result, len(queue))
			for i := range results {
				byLine[queue[i].line] = &results[i]
			}
			for i := range outputs {
				if r, ok := byLine[outputs[i].Line]; ok {
					outputs[i].Result = r
				}
			}
		}
		for _, o := range outputs {
			if err := enc.Encode(o); err != nil {
				return err
			}
		}
		queue, outputs = queue[:0], outputs[:0]
		return w.Flush()
	}

	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		frame, err := p.parse([]byte(text))
		if err != nil {
			outputs = append(outputs, Output{Line: line, Error: err.Error()})
		} else {
			queue = append(queue, pending{line: line, frame: frame})
			outputs = append(outputs, Output{Line: line})
		}

		if len(queue) >= p.batch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return flush()
}

// parse decodes one frame, applying the default size when none is given.
func (p *pipeline) parse(data []byte) (signals.Frame, error) {
	var f signals.Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("decode frame: %w", err)
	}
	if f.Width == 0 && f.Height == 0 {
		f.Width, f.Height = p.size.Width, p.size.Height
	}
	if err := f.Size().Validate(); err != nil {
		return f, err
	}
	return f, nil
}
