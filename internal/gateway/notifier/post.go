package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	postRetries      = 3
	postTimeout      = 15 * time.Second
	retryBaseBackoff = time.Second
)

func newPostClient() *http.Client {
	return &http.Client{Timeout: postTimeout}
}

// postJSON 带退避重试地 POST 一个 JSON 负载。推送属于尽力而为：调用方只记
// 日志，不会因为通知失败打断交易流程。
func postJSON(client *http.Client, label, url string, payload any) error {
	if client == nil {
		client = newPostClient()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s payload 序列化失败: %w", label, err)
	}

	var lastErr error
	for attempt := 0; attempt < postRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * retryBaseBackoff)
		}
		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode/100 == 2 {
			return nil
		}
		lastErr = fmt.Errorf("%s status=%d", label, resp.StatusCode)
	}
	return lastErr
}
