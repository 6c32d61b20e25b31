package transcript

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Markdown sentinels. The data comment carries the whole transcript as
// base64 JSON so the Markdown form parses back losslessly.
const (
	versionSentinel = "<!-- testgen-transcript-version: 1 -->"
	dataPrefix      = "<!-- testgen-data: "
	dataSuffix      = " -->"
)

// Parser deserializes a transcript file back into structured data.
type Parser interface {
	Parse(data []byte) (*Transcript, error)
}

// JSONParser parses a JSON-encoded Transcript.
type JSONParser struct{}

func (p *JSONParser) Parse(data []byte) (*Transcript, error) {
	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse JSON transcript: %w", err)
	}
	return &t, nil
}

// MarkdownParser parses a Markdown transcript by decoding its embedded payload.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(data []byte) (*Transcript, error) {
	content := string(data)

	if !strings.Contains(content, versionSentinel) {
		return nil, fmt.Errorf("not a valid testgen transcript: missing version sentinel")
	}

	start := strings.Index(content, dataPrefix)
	if start == -1 {
		return nil, fmt.Errorf("not a valid testgen transcript: missing data payload")
	}
	start += len(dataPrefix)
	end := strings.Index(content[start:], dataSuffix)
	if end == -1 {
		return nil, fmt.Errorf("not a valid testgen transcript: malformed data payload")
	}

	raw, err := base64.StdEncoding.DecodeString(content[start : start+end])
	if err != nil {
		return nil, fmt.Errorf("not a valid testgen transcript: corrupted base64 payload: %w", err)
	}
	var t Transcript
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("not a valid testgen transcript: failed to parse embedded JSON: %w", err)
	}
	return &t, nil
}

// ParserFor picks a parser from the file extension: ".json" gets the JSON
// parser, everything else Markdown.
func ParserFor(path string) Parser {
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		return &JSONParser{}
	}
	return &MarkdownParser{}
}
