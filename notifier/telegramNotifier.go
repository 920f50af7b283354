package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"sync"
	"time"

	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/tidwall/gjson"
)

var log = logger.GetOrCreate("notifier")

// TelegramAPIBaseURL is the production Bot API endpoint
const TelegramAPIBaseURL = "https://api.telegram.org"

// telegramNotifier pushes alert texts and chart images to a Telegram channel
// through the Bot API. Sends are serialized so a text+chart pair dispatched by
// one goroutine is never interleaved with another's
type telegramNotifier struct {
	baseURL string
	token   string
	chatID  int64
	client  *http.Client
	mutSend sync.Mutex
}

// NewTelegramNotifier creates a new Telegram-based notifier
func NewTelegramNotifier(baseURL string, token string, chatID int64, timeout time.Duration) (*telegramNotifier, error) {
	if len(token) == 0 {
		return nil, fmt.Errorf("empty telegram bot token")
	}
	if len(baseURL) == 0 {
		return nil, fmt.Errorf("empty telegram API base URL")
	}

	return &telegramNotifier{
		baseURL: baseURL,
		token:   token,
		chatID:  chatID,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SendText posts a sendMessage call with the provided text
func (n *telegramNotifier) SendText(ctx context.Context, text string) error {
	n.mutSend.Lock()
	defer n.mutSend.Unlock()

	payload := map[string]interface{}{
		"chat_id": n.chatID,
		"text":    text,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message payload: %w", err)
	}

	err = n.post(ctx, "sendMessage", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}

	log.Debug("sent alert message", "chat_id", n.chatID, "text_len", len(text))

	return nil
}

// SendImage posts a sendPhoto call carrying the image bytes as a multipart file
func (n *telegramNotifier) SendImage(ctx context.Context, name string, image []byte) error {
	n.mutSend.Lock()
	defer n.mutSend.Unlock()

	buffer := &bytes.Buffer{}
	writer := multipart.NewWriter(buffer)

	err := writer.WriteField("chat_id", strconv.FormatInt(n.chatID, 10))
	if err != nil {
		return fmt.Errorf("failed to write chat_id field: %w", err)
	}

	part, err := writer.CreateFormFile("photo", name)
	if err != nil {
		return fmt.Errorf("failed to create photo part: %w", err)
	}
	_, err = part.Write(image)
	if err != nil {
		return fmt.Errorf("failed to write photo bytes: %w", err)
	}

	err = writer.Close()
	if err != nil {
		return fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	err = n.post(ctx, "sendPhoto", writer.FormDataContentType(), buffer)
	if err != nil {
		return err
	}

	log.Debug("sent alert chart", "chat_id", n.chatID, "name", name, "size", len(image))

	return nil
}

func (n *telegramNotifier) post(ctx context.Context, method string, contentType string, body io.Reader) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", n.baseURL, n.token, method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("network error calling %s: %w", method, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s rejected with status code %d: %s", method, resp.StatusCode,
			gjson.GetBytes(respBody, "description").String())
	}

	if !gjson.GetBytes(respBody, "ok").Bool() {
		return fmt.Errorf("%s reported failure: %s", method,
			gjson.GetBytes(respBody, "description").String())
	}

	return nil
}

// IsInterfaceNil returns true if the value under the interface is nil
func (n *telegramNotifier) IsInterfaceNil() bool {
	return n == nil
}
