package generate

import (
	"encoding/json"
	"errors"
	"strings"
)

// errNoText is returned by ExtractText when no known field holds text.
var errNoText = errors.New("response has no recognised text field")

type responseBody struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
		Delta *struct {
			Content *string `json:"content"`
		} `json:"delta"`
		Text *string `json:"text"`
	} `json:"choices"`
	Results []struct {
		Text *string `json:"text"`
	} `json:"results"`
	Text   *string         `json:"text"`
	Output json.RawMessage `json:"output"`
}

// ExtractText finds the generated text in a response body. Shapes are
// probed in order: chat message content, legacy text fields
// (choices[0].text, results[0].text, text), then output.
func ExtractText(body []byte) (string, error) {
	var r responseBody
	if err := json.Unmarshal(body, &r); err != nil {
		return "", err
	}

	if len(r.Choices) > 0 {
		c := r.Choices[0]
		if c.Message != nil && c.Message.Content != nil {
			return *c.Message.Content, nil
		}
		if c.Text != nil {
			return *c.Text, nil
		}
	}
	if len(r.Results) > 0 && r.Results[0].Text != nil {
		return *r.Results[0].Text, nil
	}
	if r.Text != nil {
		return *r.Text, nil
	}
	if len(r.Output) > 0 {
		var s string
		if err := json.Unmarshal(r.Output, &s); err == nil {
			return s, nil
		}
		var parts []string
		if err := json.Unmarshal(r.Output, &parts); err == nil {
			return strings.Join(parts, ""), nil
		}
	}
	return "", errNoText
}

// extractDelta reads the new text of one streamed event.
func extractDelta(data []byte) (string, error) {
	var r responseBody
	if err := json.Unmarshal(data, &r); err != nil {
		return "", err
	}
	if len(r.Choices) > 0 {
		c := r.Choices[0]
		if c.Delta != nil && c.Delta.Content != nil {
			return *c.Delta.Content, nil
		}
		if c.Text != nil {
			return *c.Text, nil
		}
		// Role-only and finish events carry no text.
		return "", nil
	}
	return ExtractText(data)
}
