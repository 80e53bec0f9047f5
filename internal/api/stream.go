package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// StreamHandler receives each chunk of a chat stream. Returning an error stops
// the stream.
type StreamHandler func(StreamChunk) error

// StreamError is an `error` chunk sent inside an otherwise successful stream.
type StreamError struct {
	Message string
	Code    string
}

func (e *StreamError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("chat stream error (%s): %s", e.Code, e.Message)
	}
	return "chat stream error: " + e.Message
}

// StreamMessage posts a question and feeds the streamed answer to handle.
func (c *Client) StreamMessage(ctx context.Context, sessionID string, req MessageRequest, handle StreamHandler) error {
	path := "/api/chat/sessions/" + url.PathEscape(sessionID) + "/messages"
	resp, err := c.send(ctx, http.MethodPost, path, nil, req, "text/event-stream")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return readStream(resp.Body, handle)
}

// Ask opens a session, streams the answer and returns it collected.
func (c *Client) Ask(ctx context.Context, repoID, question string, onContent func(string)) (*Answer, error) {
	session, err := c.CreateChatSession(ctx, repoID)
	if err != nil {
		return nil, fmt.Errorf("creating chat session: %w", err)
	}

	ans := &Answer{SessionID: session.ID}
	var content strings.Builder
	err = c.StreamMessage(ctx, session.ID, MessageRequest{Content: question}, func(ch StreamChunk) error {
		switch ch.Type {
		case ChunkContent:
			content.WriteString(ch.Content)
			if onContent != nil {
				onContent(ch.Content)
			}
		case ChunkSources:
			ans.Sources = append(ans.Sources, ch.Sources...)
		case ChunkMeta:
			ans.Meta = ch.Meta
		}
		return nil
	})
	ans.Content = content.String()
	return ans, err
}

// maxStreamLine bounds one event line. Longer lines are discarded as garbled.
const maxStreamLine = 4 * 1024 * 1024

// readStream parses `data: <json>` lines. Lines that are not data lines, do not
// decode or exceed maxStreamLine are skipped. The stream ends on a done chunk or
// when the body closes.
func readStream(body io.Reader, handle StreamHandler) error {
	r := bufio.NewReaderSize(body, 64*1024)
	for {
		line, err := readLine(r, maxStreamLine)
		if err != nil && err != io.EOF {
			return fmt.Errorf("reading event stream: %w", err)
		}
		if chunk, ok := parseDataLine(line); ok {
			switch chunk.Type {
			case ChunkError:
				msg := chunk.Error
				if msg == "" {
					msg = chunk.Content
				}
				return &StreamError{Message: msg, Code: chunk.Code}
			case ChunkDone:
				if handle != nil {
					return handle(chunk)
				}
				return nil
			}
			if handle != nil {
				if herr := handle(chunk); herr != nil {
					return herr
				}
			}
		}
		if err == io.EOF {
			return nil
		}
	}
}

// readLine returns the next line without its terminator. A line longer than
// limit is consumed and returned empty.
func readLine(r *bufio.Reader, limit int) (string, error) {
	var (
		buf     []byte
		tooLong bool
	)
	for {
		frag, err := r.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(frag) > limit {
				tooLong, buf = true, nil
			} else {
				buf = append(buf, frag...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if tooLong {
			return "", err
		}
		return strings.TrimRight(string(buf), "\r\n"), err
	}
}

func parseDataLine(line string) (StreamChunk, bool) {
	var chunk StreamChunk
	if !strings.HasPrefix(line, "data:") {
		return chunk, false
	}
	data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if data == "" {
		return chunk, false
	}
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return chunk, false
	}
	return chunk, true
}
