package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// Stream generates a reply incrementally over server-sent events.
func (c *Client) Stream(ctx context.Context, req *Request) (Stream, error) {
	if req.UserInput == "" {
		return nil, ErrEmptyInput
	}
	if len(req.UserInput) > c.config.MaxInputChars {
		return nil, oversizeError(c.name, len(req.UserInput), c.config.MaxInputChars)
	}

	resp, err := c.post(ctx, "/chat/completions", c.buildPayload(req, true))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, vendorError(c.name, resp)
	}

	return &sseStream{
		name:   c.name,
		reader: bufio.NewReader(resp.Body),
		body:   resp.Body,
	}, nil
}

// sseStream parses the "data: {...}" event framing of a streamed chat
// completion.
type sseStream struct {
	name   string
	reader *bufio.Reader
	body   io.ReadCloser
	closed bool
}

// Recv returns the next chunk.
func (s *sseStream) Recv() (*Chunk, error) {
	if s.closed {
		return nil, ErrStreamClosed
	}

	for {
		line, err := s.reader.ReadString('\n')
		if err == io.EOF {
			return &Chunk{Done: true}, nil
		}
		if err != nil {
			return nil, requestError(s.name, err)
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return &Chunk{Done: true}, nil
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			// Skip malformed events.
			continue
		}
		if len(event.Choices) == 0 {
			continue
		}

		choice := event.Choices[0]
		return &Chunk{
			Delta:        choice.Delta.Content,
			FinishReason: choice.FinishReason,
			Done:         choice.FinishReason != "",
		}, nil
	}
}

// Close stops the stream.
func (s *sseStream) Close() error {
	s.closed = true
	return s.body.Close()
}

// streamEvent is the SSE event wire format.
type streamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
			Role    string `json:"role"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}
