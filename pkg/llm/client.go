package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a message for LLM chat completions
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Config struct {
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	TopP        float64       `yaml:"top_p"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`

	ImageModel string `yaml:"image_model"`
	ImageSize  string `yaml:"image_size"`
}

// KeyState tracks the health of an API key
type KeyState struct {
	Key          string
	FailureCount int
	LastUsed     time.Time
	LastSuccess  time.Time
}

// ReplyError wraps a failed completion. It is a per-turn failure: the
// conversation continues and the user can retry.
type ReplyError struct {
	Model string
	Err   error
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("llm reply failed (model %s): %v", e.Model, e.Err)
}

func (e *ReplyError) Unwrap() error {
	return e.Err
}

// Client talks to any OpenAI-compatible chat completion endpoint. Keys are
// comma-separated and rotated by failure count.
type Client struct {
	cfg       Config
	keys      []*KeyState
	keyMu     sync.RWMutex
	clients   map[string]openai.Client
	clientsMu sync.RWMutex
	opts      []option.RequestOption
}

func NewClient(apiKeys string, cfg Config, opts ...option.RequestOption) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}

	var keys []*KeyState
	for _, k := range strings.Split(apiKeys, ",") {
		k = strings.TrimSpace(k)
		if k != "" {
			keys = append(keys, &KeyState{Key: k})
		}
	}

	if len(keys) == 0 {
		log.Println("Warning: No LLM API keys provided")
	} else {
		log.Printf("Loaded %d LLM API key(s)", len(keys))
	}

	return &Client{
		cfg:     cfg,
		keys:    keys,
		clients: make(map[string]openai.Client),
		opts:    opts,
	}
}

func (c *Client) getClient(key string) openai.Client {
	c.clientsMu.RLock()
	if client, ok := c.clients[key]; ok {
		c.clientsMu.RUnlock()
		return client
	}
	c.clientsMu.RUnlock()

	c.clientsMu.Lock()
	defer c.clientsMu.Unlock()

	opts := []option.RequestOption{option.WithAPIKey(key), option.WithMaxRetries(0)}
	if c.cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.cfg.BaseURL))
	}
	opts = append(opts, c.opts...)

	client := openai.NewClient(opts...)
	c.clients[key] = client
	return client
}

func (c *Client) getBestKey() *KeyState {
	c.keyMu.RLock()
	defer c.keyMu.RUnlock()

	if len(c.keys) == 0 {
		return nil
	}

	best := c.keys[0]
	for _, k := range c.keys[1:] {
		if k.FailureCount < best.FailureCount {
			best = k
		}
	}
	return best
}

func (c *Client) recordSuccess(key *KeyState) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	key.LastSuccess = time.Now()
	key.LastUsed = time.Now()
	if key.FailureCount > 0 {
		key.FailureCount--
	}
}

func (c *Client) recordFailure(key *KeyState) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	key.FailureCount++
	key.LastUsed = time.Now()
}

// Reply sends the system prompt plus turns and returns the generated text.
func (c *Client) Reply(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	keyState := c.getBestKey()
	if keyState == nil {
		return "", &ReplyError{Model: c.cfg.Model, Err: fmt.Errorf("no API keys configured")}
	}

	client := c.getClient(keyState.Key)

	chatMessages := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			chatMessages[i] = openai.SystemMessage(msg.Content)
		case RoleAssistant:
			chatMessages[i] = openai.AssistantMessage(msg.Content)
		default:
			chatMessages[i] = openai.UserMessage(msg.Content)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:     shared.ChatModel(c.cfg.Model),
		Messages:  chatMessages,
		MaxTokens: openai.Int(int64(c.cfg.MaxTokens)),
	}
	if c.cfg.Temperature > 0 {
		params.Temperature = openai.Float(c.cfg.Temperature)
	}
	if c.cfg.TopP > 0 {
		params.TopP = openai.Float(c.cfg.TopP)
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		c.recordFailure(keyState)
		return "", &ReplyError{Model: c.cfg.Model, Err: err}
	}

	if resp == nil || len(resp.Choices) == 0 {
		c.recordFailure(keyState)
		return "", &ReplyError{Model: c.cfg.Model, Err: fmt.Errorf("empty response")}
	}

	c.recordSuccess(keyState)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
