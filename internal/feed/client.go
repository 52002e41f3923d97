// Package feed subscribes to ntfy topics and pastes incoming messages into
// the reader.
package feed

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message represents a message received from an ntfy stream.
type Message struct {
	ID      string `json:"id"`
	Time    int64  `json:"time"`
	Event   string `json:"event"`
	Topic   string `json:"topic"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Sink receives formatted message text.
type Sink func(ctx context.Context, topic, text string) error

// Client subscribes to ntfy topics and hands messages to a Sink.
type Client struct {
	cfg        *Config
	sink       Sink
	logger     *slog.Logger
	httpClient *http.Client
	dialer     *websocket.Dialer
	dedupeMap  map[string]time.Time
	dedupeMu   sync.Mutex
}

// NewClient creates a new feed client.
func NewClient(cfg *Config, sink Sink, logger *slog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		sink:       sink,
		logger:     logger,
		httpClient: &http.Client{},
		dialer:     websocket.DefaultDialer,
		dedupeMap:  make(map[string]time.Time),
	}
}

// Run subscribes to all configured topics and blocks until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	for _, topic := range c.cfg.Topics {
		wg.Add(1)
		go func(t string) {
			defer wg.Done()
			c.subscribeLoop(ctx, t)
		}(topic)
	}

	if c.cfg.DedupeWindow > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.dedupeCleanupLoop(ctx)
		}()
	}

	wg.Wait()
	return nil
}

// subscribeLoop subscribes to a single topic and reconnects on errors.
func (c *Client) subscribeLoop(ctx context.Context, topic string) {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.logger.Info("subscribing to ntfy topic", "topic", topic, "server", c.cfg.Server, "transport", c.cfg.Transport)

		var err error
		if c.cfg.Transport == TransportWebSocket {
			err = c.subscribeWebSocket(ctx, topic)
		} else {
			err = c.subscribeJSON(ctx, topic)
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("subscription error, reconnecting", "topic", topic, "error", err, "backoff", backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff = backoff * 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Client) topicURL(topic, suffix string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(c.cfg.Server, "/"), url.PathEscape(topic), suffix)
}

func (c *Client) authHeader() http.Header {
	h := http.Header{}
	if c.cfg.Token != "" {
		h.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	return h
}

// subscribeJSON reads the newline-delimited JSON stream for a topic.
func (c *Client) subscribeJSON(ctx context.Context, topic string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.topicURL(topic, "json"), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = c.authHeader()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Info("connected to ntfy stream", "topic", topic)

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		c.handleLine(ctx, topic, line)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// subscribeWebSocket reads messages for a topic from the ntfy websocket endpoint.
func (c *Client) subscribeWebSocket(ctx context.Context, topic string) error {
	u := c.topicURL(topic, "ws")
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)

	conn, resp, err := c.dialer.DialContext(ctx, u, c.authHeader())
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to connect: status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	c.logger.Info("connected to ntfy websocket", "topic", topic)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read error: %w", err)
		}
		c.handleLine(ctx, topic, data)
	}
}

func (c *Client) handleLine(ctx context.Context, topic string, line []byte) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		c.logger.Warn("failed to parse ntfy message", "error", err, "line", string(line))
		return
	}

	// Skip non-message events (keepalive, open, etc.)
	if msg.Event != "message" {
		c.logger.Debug("skipping non-message event", "event", msg.Event, "topic", topic)
		return
	}

	c.handleMessage(ctx, msg)
}

// handleMessage formats a message and hands it to the sink.
func (c *Client) handleMessage(ctx context.Context, msg Message) {
	c.logger.Debug("received ntfy message",
		"id", msg.ID,
		"topic", msg.Topic,
		"title", msg.Title,
	)

	text := c.FormatText(msg.Title, msg.Message)
	if text == "" {
		c.logger.Debug("skipping empty message", "id", msg.ID)
		return
	}

	if c.cfg.DedupeWindow > 0 {
		key := c.generateDedupeKey(text)
		if c.isDuplicate(key) {
			c.logger.Debug("skipping duplicate message", "id", msg.ID, "dedupe_key", key)
			return
		}
		c.recordDedupeKey(key)
	}

	if err := c.sink(ctx, msg.Topic, text); err != nil {
		c.logger.Warn("failed to deliver ntfy message",
			"error", err,
			"ntfy_id", msg.ID,
			"text_length", len(text),
		)
		return
	}

	c.logger.Info("delivered ntfy message",
		"ntfy_id", msg.ID,
		"topic", msg.Topic,
		"text_length", len(text),
	)
}

// FormatText combines title and message with the optional prefix and
// truncates the result to MaxTextLength runes.
func (c *Client) FormatText(title, message string) string {
	var parts []string

	if c.cfg.Prefix != "" {
		parts = append(parts, c.cfg.Prefix)
	}

	if title != "" {
		parts = append(parts, title)
	}

	if message != "" {
		parts = append(parts, message)
	}

	text := strings.Join(parts, ": ")

	if runes := []rune(text); len(runes) > c.cfg.MaxTextLength {
		text = string(runes[:c.cfg.MaxTextLength])
	}

	return text
}

// generateDedupeKey creates a hash-based dedupe key from the text.
func (c *Client) generateDedupeKey(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:8])
}

// isDuplicate checks if a dedupe key has been seen within the dedupe window.
func (c *Client) isDuplicate(key string) bool {
	c.dedupeMu.Lock()
	defer c.dedupeMu.Unlock()

	if seenAt, ok := c.dedupeMap[key]; ok {
		if time.Since(seenAt) < c.cfg.DedupeWindow {
			return true
		}
	}
	return false
}

// recordDedupeKey records a dedupe key with the current timestamp.
func (c *Client) recordDedupeKey(key string) {
	c.dedupeMu.Lock()
	defer c.dedupeMu.Unlock()
	c.dedupeMap[key] = time.Now()
}

// dedupeCleanupLoop periodically removes expired dedupe keys.
func (c *Client) dedupeCleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.DedupeWindow)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanupDedupeMap()
		}
	}
}

// cleanupDedupeMap removes dedupe keys older than the dedupe window.
func (c *Client) cleanupDedupeMap() {
	c.dedupeMu.Lock()
	defer c.dedupeMu.Unlock()

	now := time.Now()
	for key, seenAt := range c.dedupeMap {
		if now.Sub(seenAt) >= c.cfg.DedupeWindow {
			delete(c.dedupeMap, key)
		}
	}
}
