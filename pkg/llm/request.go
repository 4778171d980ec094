package llm

import (
	"strings"

	"github.com/tidwall/gjson"
)

const (
	unknownModel   = "unknown"
	noPrompt       = "no prompt found"
	unparseableMsg = "unparseable"
)

// RequestData is the request metadata captured before a request is forwarded
// upstream. It is built once per request and read once when the response
// stream completes.
type RequestData struct {
	// RequestID uniquely identifies the proxied request.
	RequestID string `json:"request_id"`

	// Path is the proxied path as received by the proxy, e.g. "/proxy/11434/api/generate".
	Path string `json:"path"`

	// Model name requested by the client (e.g., "llama3", "gpt-4o").
	// "unknown" when the body carries no model.
	Model string `json:"model"`

	// Prompt is the "prompt" field, or the chat messages flattened as
	// "role: content" lines.
	Prompt string `json:"prompt"`

	// Raw preserves the original request payload.
	Raw []byte `json:"-"`
}

// ParseRequestData extracts the model and prompt from a raw request body.
// It never fails: a body that is not a JSON object yields model "unknown"
// and prompt "unparseable".
func ParseRequestData(raw []byte) *RequestData {
	data := &RequestData{Raw: raw}

	if !gjson.ValidBytes(raw) {
		data.Model = unknownModel
		data.Prompt = unparseableMsg
		return data
	}

	parsed := gjson.ParseBytes(raw)
	if !parsed.IsObject() {
		data.Model = unknownModel
		data.Prompt = unparseableMsg
		return data
	}

	data.Model = unknownModel
	if model := parsed.Get("model"); model.Type == gjson.String {
		data.Model = model.String()
	}

	data.Prompt = extractPrompt(parsed)
	return data
}

// extractPrompt prefers the completion-style "prompt" field and falls back to
// the chat-style "messages" array.
func extractPrompt(parsed gjson.Result) string {
	if prompt := parsed.Get("prompt"); prompt.Type == gjson.String {
		return prompt.String()
	}

	messages := parsed.Get("messages")
	if !messages.IsArray() {
		return noPrompt
	}

	lines := make([]string, 0, len(messages.Array()))
	messages.ForEach(func(_, msg gjson.Result) bool {
		lines = append(lines, msg.Get("role").String()+": "+messageText(msg.Get("content")))
		return true
	})

	return strings.Join(lines, "\n")
}

// messageText flattens message content. OpenAI-style content may be an array
// of typed parts, in which case only the text parts are kept.
func messageText(content gjson.Result) string {
	if !content.IsArray() {
		return content.String()
	}

	var parts []string
	content.ForEach(func(_, part gjson.Result) bool {
		if text := part.Get("text"); text.Exists() {
			parts = append(parts, text.String())
		}
		return true
	})

	return strings.Join(parts, " ")
}
