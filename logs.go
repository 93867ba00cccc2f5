package volt

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime/debug"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
)

// maxLogLineSize limits a single log line so that a server sending no line
// delimiters cannot exhaust memory.
const maxLogLineSize = 10 * 1024 * 1024 // 10MB

// LogOptions selects which pod logs to stream.
type LogOptions struct {
	// Tail is the number of trailing lines to return. Zero means the
	// server default.
	Tail int

	// Follow keeps the stream open and yields new lines as they are written.
	Follow bool
}

// LogStream is an open pod log stream.
//
// Use [Client.PodLogs] to create a stream, then iterate over lines:
//
//	logs, err := client.PodLogs(ctx, "pod-123", volt.LogOptions{Tail: 100})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logs.Close()
//
//	for logs.Next() {
//	    fmt.Println(logs.Line())
//	}
//	if err := logs.Err(); err != nil {
//	    log.Fatal(err)
//	}
type LogStream struct {
	ctx     context.Context
	resp    *http.Response
	reader  *bufio.Reader
	current string
	err     error
	closed  atomic.Bool
}

type logEvent struct {
	Log *string `json:"log"`
}

// Next advances to the next log line. It returns false when the stream is
// exhausted, closed or failed; call [LogStream.Err] to tell them apart.
func (s *LogStream) Next() bool {
	if s.closed.Load() || s.err != nil {
		return false
	}
	for {
		raw, err := s.readLine()
		if err != nil {
			// A closed stream or a finished context ends the stream cleanly.
			if err != io.EOF && !s.closed.Load() && s.ctx.Err() == nil {
				s.err = newError(CodeNetwork, "log stream interrupted", 0, err)
			}
			return false
		}
		line, ok := parseLogLine(raw)
		if !ok {
			continue
		}
		s.current = line
		return true
	}
}

// Line returns the current log line.
func (s *LogStream) Line() string {
	return s.current
}

// Err returns the error that ended the stream, if any.
func (s *LogStream) Err() error {
	return s.err
}

// Close releases the underlying connection. It is safe to call more than
// once and from another goroutine.
func (s *LogStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.resp != nil && s.resp.Body != nil {
		return s.resp.Body.Close()
	}
	return nil
}

// LinesWithContext returns a channel of log lines. The channel is closed
// when the stream ends or ctx is cancelled; cancelling ctx also closes the
// stream.
func (s *LogStream) LinesWithContext(ctx context.Context) <-chan string {
	ch := make(chan string)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.err = fmt.Errorf("panic in log reader: %v\n%s", r, debug.Stack())
			}
			close(ch)
		}()

		// Closing the body unblocks a reader waiting on the network.
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				_ = s.Close()
			case <-done:
			}
		}()
		defer close(done)

		for s.Next() {
			select {
			case ch <- s.current:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func (s *LogStream) readLine() (string, error) {
	var b strings.Builder
	for {
		chunk, err := s.reader.ReadSlice('\n')
		b.Write(chunk)
		if b.Len() > maxLogLineSize {
			return "", fmt.Errorf("log line exceeds maximum size of %d bytes", maxLogLineSize)
		}
		switch err {
		case nil:
			return strings.TrimRight(b.String(), "\r\n"), nil
		case bufio.ErrBufferFull:
			continue
		case io.EOF:
			if b.Len() > 0 {
				return strings.TrimRight(b.String(), "\r\n"), nil
			}
			return "", io.EOF
		default:
			return "", err
		}
	}
}

// parseLogLine extracts the log text from one line of the stream. SSE data
// lines carry {"log": "..."}; data that is not such an object and plain
// lines are passed through. Blank lines and other SSE fields are skipped.
func parseLogLine(line string) (string, bool) {
	if line == "" || strings.HasPrefix(line, ":") {
		return "", false
	}
	data, ok := strings.CutPrefix(line, "data:")
	if !ok {
		for _, field := range []string{"event:", "id:", "retry:"} {
			if strings.HasPrefix(line, field) {
				return "", false
			}
		}
		return line, true
	}
	data = strings.TrimPrefix(data, " ")

	var ev logEvent
	if err := json.Unmarshal([]byte(data), &ev); err == nil && ev.Log != nil {
		return *ev.Log, true
	}
	return data, true
}

// PodLogs opens a stream of a pod's logs.
//
// The client timeout ([WithTimeout]) does not apply to log streams and the
// request is not retried. Bound a following stream with a context deadline
// or call [LogStream.Close].
func (c *Client) PodLogs(ctx context.Context, id string, opts LogOptions) (*LogStream, error) {
	if err := requireID("podId", id); err != nil {
		return nil, err
	}
	if opts.Tail < 0 {
		return nil, validationError("tail", "tail must not be negative")
	}

	q := url.Values{}
	if opts.Tail > 0 {
		q.Set("tail", strconv.Itoa(opts.Tail))
	}
	if opts.Follow {
		q.Set("follow", "true")
	}
	u := c.baseURL + podPath(id) + "/logs"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, newError(CodeConfiguration, "failed to create request", 0, err)
	}
	c.setHeaders(req.Header, false)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// A copy without the client timeout, which would cut a followed stream.
	hc := *c.httpClient
	hc.Timeout = 0
	resp, err := hc.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, transportError(ctx, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()
		return nil, responseError(resp)
	}

	c.logger.Debug("log stream opened",
		zap.String("pod_id", id),
		zap.Int("tail", opts.Tail),
		zap.Bool("follow", opts.Follow))

	return &LogStream{
		ctx:    ctx,
		resp:   resp,
		reader: bufio.NewReader(resp.Body),
	}, nil
}
