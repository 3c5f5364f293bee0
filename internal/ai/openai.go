package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const visionInstruction = "Describe, keep it interesting"

// OpenAIProvider streams chat completions from an OpenAI-compatible
// endpoint.
type OpenAIProvider struct {
	BaseURL     string
	APIKey      string
	Model       string
	VisionModel string
	Client      *http.Client
}

func NewOpenAIProvider(baseURL, apiKey, model, visionModel string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if visionModel == "" {
		visionModel = model
	}
	return &OpenAIProvider{
		BaseURL:     baseURL,
		APIKey:      apiKey,
		Model:       model,
		VisionModel: visionModel,
		Client:      &http.Client{Timeout: 90 * time.Second},
	}
}

type openAIMsg struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
	Name    string `json:"name,omitempty"`
}

type openAIChatReq struct {
	Model     string      `json:"model"`
	Messages  []openAIMsg `json:"messages"`
	Stream    bool        `json:"stream"`
	MaxTokens int         `json:"max_tokens,omitempty"`
}

type openAIStreamResp struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type openAIContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

func (p *OpenAIProvider) StreamChat(ctx context.Context, messages []Message) <-chan Event {
	msgs := make([]openAIMsg, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openAIMsg{Role: m.Role, Content: m.Content, Name: m.Name})
	}
	return p.stream(ctx, openAIChatReq{Model: p.Model, Stream: true, Messages: msgs})
}

func (p *OpenAIProvider) StreamImage(ctx context.Context, image string, personaContext string) <-chan Event {
	imagePart := openAIContentPart{Type: "image_url"}
	imagePart.ImageURL = &struct {
		URL string `json:"url"`
	}{URL: image}

	msgs := []openAIMsg{
		{Role: RoleAssistant, Content: personaContext},
		{Role: RoleUser, Content: []openAIContentPart{
			imagePart,
			{Type: "text", Text: visionInstruction},
		}},
	}
	return p.stream(ctx, openAIChatReq{
		Model:     p.VisionModel,
		Stream:    true,
		MaxTokens: 1300,
		Messages:  msgs,
	})
}

func (p *OpenAIProvider) stream(ctx context.Context, reqBody openAIChatReq) <-chan Event {
	events := make(chan Event, 16)

	go func() {
		defer close(events)

		fail := func(err error) {
			events <- Event{Kind: EventFailed, Err: &GenerationError{Err: err}}
		}

		if p.Client == nil {
			fail(errors.New("openai: http client is nil"))
			return
		}
		if strings.TrimSpace(p.APIKey) == "" {
			events <- Event{Kind: EventFailed, Err: ErrMissingCredential}
			return
		}

		b, err := json.Marshal(reqBody)
		if err != nil {
			fail(err)
			return
		}

		url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			fail(err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+p.APIKey)

		if p.Client.Timeout < 30*time.Second {
			p.Client.Timeout = 0 // streaming; ctx controls the deadline
		}

		resp, err := p.Client.Do(req)
		if err != nil {
			fail(err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
			msg := strings.TrimSpace(string(body))
			if msg == "" {
				msg = fmt.Sprintf("status %d", resp.StatusCode)
			}
			fail(fmt.Errorf("openai: %s", msg))
			return
		}

		// The stream is live from here; Started fires exactly once,
		// before any token.
		events <- Event{Kind: EventStarted}

		sc := bufio.NewScanner(resp.Body)
		buf := make([]byte, 0, 64*1024)
		sc.Buffer(buf, 2*1024*1024)

		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				events <- Event{Kind: EventCompleted}
				return
			}
			var decoded openAIStreamResp
			if err := json.Unmarshal([]byte(data), &decoded); err != nil {
				fail(err)
				return
			}
			if decoded.Error != nil && decoded.Error.Message != "" {
				fail(errors.New(decoded.Error.Message))
				return
			}
			if len(decoded.Choices) == 0 {
				continue
			}
			delta := decoded.Choices[0].Delta.Content
			if delta != "" {
				events <- Event{Kind: EventToken, Token: delta}
			}
		}

		if err := sc.Err(); err != nil {
			fail(err)
			return
		}
		events <- Event{Kind: EventCompleted}
	}()

	return events
}
