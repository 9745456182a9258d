// Command benchmark posts every image under a data directory to the gateway
// and prints latency per format as a Markdown table.
package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cheggaaa/pb/v3"
	"golang.org/x/sync/errgroup"
)

var formatFiles = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"webp": "image/webp",
	"pdf":  "application/pdf",
}

type options struct {
	endpoint    string
	dataDir     string
	prompt      string
	concurrency int
	stream      bool
	timeout     time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.endpoint, "endpoint", "http://localhost:8080/api/analyse", "gateway analyse endpoint")
	flag.StringVar(&opts.dataDir, "data", filepath.Join(".", "data"), "directory with sample images")
	flag.StringVar(&opts.prompt, "prompt", "Analyse this screenshot and return predictions as JSON.", "prompt sent with every image")
	flag.IntVar(&opts.concurrency, "c", 4, "concurrent requests")
	flag.BoolVar(&opts.stream, "stream", false, "use the SSE endpoint (<endpoint>/stream)")
	flag.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "per request timeout")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	files, err := collectFiles(opts.dataDir)
	if err != nil {
		log.Fatalf("read data dir: %v", err)
	}
	if len(files) == 0 {
		log.Fatalf("no images found under %s", opts.dataDir)
	}

	results := run(ctx, opts, files)
	printMarkdown(os.Stdout, results)
}

func collectFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := formatFiles[formatOf(entry.Name())]; ok {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func run(ctx context.Context, opts options, files []string) []BenchResult {
	bar := pb.StartNew(len(files))
	defer bar.Finish()

	var (
		mu      sync.Mutex
		results = make([]BenchResult, 0, len(files))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.concurrency, 1))

	for _, file := range files {
		g.Go(func() error {
			res := benchmarkFile(gctx, opts, file)
			if res.Err != nil {
				log.Printf("ERR %s: %v", res.File, res.Err)
			}

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			bar.Increment()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func benchmarkFile(ctx context.Context, opts options, filePath string) BenchResult {
	start := time.Now()
	res := BenchResult{
		File:   filepath.Base(filePath),
		Format: formatOf(filePath),
	}

	raw, err := os.ReadFile(filePath)
	if err != nil {
		res.Err = err
		return res
	}
	res.Size = int64(len(raw))

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	var env Envelope
	if opts.stream {
		var full strings.Builder
		env, err = sendStream(ctx, strings.TrimSuffix(opts.endpoint, "/")+"/stream", raw, res.File, opts.prompt, func(c Chunk) error {
			full.WriteString(c.Delta)
			return nil
		})
		res.Chars = full.Len()
	} else {
		env, err = send(ctx, opts.endpoint, raw, res.File, opts.prompt)
	}

	res.Duration = time.Since(start)
	res.Status = env.Status
	res.Err = err
	if res.Chars == 0 {
		if text, ok := env.Analyse.(string); ok {
			res.Chars = len(text)
		}
	}
	return res
}

func newUpload(ctx context.Context, endpoint string, image []byte, name, prompt string) (*http.Request, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, name))
	h.Set("Content-Type", formatFiles[formatOf(name)])
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(image); err != nil {
		return nil, err
	}
	if err := w.WriteField("prompt", prompt); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}

func send(ctx context.Context, endpoint string, image []byte, name, prompt string) (Envelope, error) {
	req, err := newUpload(ctx, endpoint, image, name, prompt)
	if err != nil {
		return Envelope{}, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Envelope{}, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return Envelope{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Envelope{}, fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var env Envelope
	if err := sonic.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

func sendStream(ctx context.Context, endpoint string, image []byte, name, prompt string, onChunk func(Chunk) error) (Envelope, error) {
	req, err := newUpload(ctx, endpoint, image, name, prompt)
	if err != nil {
		return Envelope{}, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Envelope{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return Envelope{}, fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var (
		reader = bufio.NewReader(resp.Body)
		event  string
	)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Envelope{}, errors.New("stream ended without done event")
			}
			return Envelope{}, err
		}

		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
			continue
		case !strings.HasPrefix(line, "data: "):
			continue
		}

		payload := strings.TrimPrefix(line, "data: ")
		if event == "done" {
			var env Envelope
			if err := sonic.UnmarshalString(payload, &env); err != nil {
				return Envelope{}, fmt.Errorf("decode envelope: %w", err)
			}
			return env, nil
		}

		var c Chunk
		if err := sonic.UnmarshalString(payload, &c); err != nil {
			return Envelope{}, err
		}
		if err := onChunk(c); err != nil {
			return Envelope{}, err
		}
	}
}

func formatOf(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func aggregate(results []BenchResult) map[string]Agg {
	m := map[string]Agg{}
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		a := m[r.Format]
		a.Count++
		if r.Status != "ok" {
			a.Partial++
		}
		a.TotalBytes += r.Size
		a.Total += r.Duration
		m[r.Format] = a
	}
	return m
}

func printMarkdown(w io.Writer, results []BenchResult) {
	fmt.Fprintln(w, "\n## Benchmark Results")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Format | Requests | Partial | Avg Time | Total Time | Avg File Size |")
	fmt.Fprintln(w, "|--------|----------|---------|----------|------------|---------------|")

	agg := aggregate(results)

	formats := make([]string, 0, len(agg))
	for format := range agg {
		formats = append(formats, format)
	}
	sort.Strings(formats)

	var total Agg
	for _, format := range formats {
		a := agg[format]
		fmt.Fprintf(w, "| %s | %d | %d | %v | %v | %s |\n",
			format,
			a.Count,
			a.Partial,
			(a.Total / time.Duration(a.Count)).Round(time.Millisecond),
			a.Total.Round(time.Millisecond),
			humanBytes(a.TotalBytes/int64(a.Count)),
		)
		total.Count += a.Count
		total.Partial += a.Partial
		total.Total += a.Total
		total.TotalBytes += a.TotalBytes
	}

	if total.Count > 0 {
		fmt.Fprintf(w, "| **ALL** | %d | %d | %v | %v | %s |\n",
			total.Count,
			total.Partial,
			(total.Total / time.Duration(total.Count)).Round(time.Millisecond),
			total.Total.Round(time.Millisecond),
			humanBytes(total.TotalBytes/int64(total.Count)),
		)
	}
}

func humanBytes(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case size >= GB:
		return fmt.Sprintf("%.2f GB", float64(size)/GB)
	case size >= MB:
		return fmt.Sprintf("%.2f MB", float64(size)/MB)
	case size >= KB:
		return fmt.Sprintf("%.2f KB", float64(size)/KB)
	default:
		return fmt.Sprintf("%d B", size)
	}
}
