package llm

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// StreamEvent represents a single event from Claude's stream-json output
type StreamEvent struct {
	Type    string          `json:"type"`
	Subtype string          `json:"subtype,omitempty"`
	Message *MessageContent `json:"message,omitempty"`
	Result  string          `json:"result,omitempty"`
	IsError bool            `json:"is_error,omitempty"`
}

// MessageContent represents the message field in stream events
type MessageContent struct {
	Content []ContentBlock `json:"content,omitempty"`
	Usage   *UsageBlock    `json:"usage,omitempty"`
}

// ContentBlock represents a content block (text or tool_use)
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Name string `json:"name,omitempty"` // for tool_use
}

// UsageBlock represents token usage data from Claude's output
type UsageBlock struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheCreationTokens int `json:"cache_creation_input_tokens"`
	CacheReadTokens     int `json:"cache_read_input_tokens"`
}

// StreamResult is a parsed stream: the chunked text plus the final
// result event, if one arrived.
type StreamResult struct {
	*Result
	Final   string
	IsError bool
	Tools   int
}

// CollectStream reads stream-json lines into a chunked Result. Each
// assistant text block is one chunk. When the stream carries no
// assistant text, the final result text becomes the only chunk.
// Malformed lines are skipped.
func CollectStream(reader io.Reader, onText func(string)) (*StreamResult, error) {
	scanner := bufio.NewScanner(reader)
	// Increase buffer size for large JSON lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	out := &StreamResult{Result: Chunked()}
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event StreamEvent
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}

		switch event.Type {
		case "assistant":
			if event.Message == nil {
				continue
			}
			if u := event.Message.Usage; u != nil {
				out.Usage.InputTokens += u.InputTokens
				out.Usage.OutputTokens += u.OutputTokens
				out.Usage.CacheReadTokens += u.CacheReadTokens
				out.Usage.TotalTokens = out.Usage.InputTokens + out.Usage.OutputTokens
			}
			for _, block := range event.Message.Content {
				switch block.Type {
				case "tool_use":
					out.Tools++
				case "text":
					out.Append(block.Text)
					if onText != nil {
						onText(block.Text)
					}
				}
			}
		case "result":
			out.Final = event.Result
			out.IsError = event.IsError || strings.HasPrefix(event.Subtype, "error")
		}
	}
	if err := scanner.Err(); err != nil {
		return out, err
	}

	if len(out.Chunks()) == 0 && out.Final != "" {
		out.Append(out.Final)
	}
	return out, nil
}

// ConsolePrinter returns an OnText callback that prints each chunk as a
// single timestamped line.
func ConsolePrinter(w io.Writer, label string) func(string) {
	return func(text string) {
		timestamp := time.Now().Format("[15:04:05]")
		fmt.Fprintf(w, "%s [%s] %s\n", timestamp, label, truncateText(text, 400))
	}
}

func truncateText(s string, max int) string {
	s = cleanText(s)
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func cleanText(s string) string {
	// Replace newlines with spaces for single-line output
	s = strings.ReplaceAll(s, "\n", " ")
	// Collapse multiple spaces
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return strings.TrimSpace(s)
}
