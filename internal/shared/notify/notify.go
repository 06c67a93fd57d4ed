package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// notify — 飞书群机器人webhook通知
// 需求单指派、询价发送结果等事件推送到运营群
// =============================================================================

// Client 群机器人客户端；webhookURL为空时所有发送都是空操作
type Client struct {
	webhookURL string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient 创建通知客户端
func NewClient(webhookURL string, logger *zap.Logger) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// textMessage 飞书文本消息体
type textMessage struct {
	MsgType string `json:"msg_type"`
	Content struct {
		Text string `json:"text"`
	} `json:"content"`
}

// Send 发送文本通知
func (c *Client) Send(ctx context.Context, title, text string) error {
	if c == nil || c.webhookURL == "" {
		return nil
	}

	var msg textMessage
	msg.MsgType = "text"
	msg.Content.Text = fmt.Sprintf("【%s】\n%s", title, text)
	bodyBytes, _ := json.Marshal(msg)

	req, err := http.NewRequestWithContext(ctx, "POST", c.webhookURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("创建通知请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("发送通知失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("通知返回异常状态 %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.Code != 0 {
		return fmt.Errorf("通知被拒绝: %d %s", result.Code, result.Msg)
	}
	return nil
}

// SendAsync 异步发送，失败只记日志不阻塞业务
func (c *Client) SendAsync(title, text string) {
	if c == nil || c.webhookURL == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.Send(ctx, title, text); err != nil && c.logger != nil {
			c.logger.Warn("通知发送失败",
				zap.String("title", title),
				zap.Error(err),
			)
		}
	}()
}
