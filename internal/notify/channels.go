package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Endpoint templates are vars so tests can point channels at a local server.
var (
	barkEndpoint       = "https://api.day.app/%s/"
	pushPlusEndpoint   = "http://www.pushplus.plus/send"
	serverChanEndpoint = "https://sctapi.ftqq.com/%s.send"
	dingTalkEndpoint   = "https://oapi.dingtalk.com/robot/send?access_token=%s"
	weComEndpoint      = "https://qyapi.weixin.qq.com/cgi-bin/webhook/send?key=%s"
)

var httpClient = &http.Client{}

// postJSON sends payload and classifies by HTTP status: 2xx is success,
// anything else or a transport error is failure. The error always carries
// either the status code or the transport error text.
func postJSON(ctx context.Context, url string, payload any, headers map[string]string) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("send failed with status %d", resp.StatusCode)
	}
	return nil
}

type barkChannel struct{}

func (barkChannel) Name() string               { return "bark" }
func (barkChannel) Configured(cfg Config) bool { return cfg.BarkToken != "" }

func (barkChannel) Send(ctx context.Context, msg Message, cfg Config) error {
	payload := map[string]any{
		"title": msg.Title,
		"body":  msg.Body,
		// timeSensitive shows through iOS focus modes; a grab result is
		// exactly the kind of thing that should.
		"level":     "timeSensitive",
		"badge":     1,
		"icon":      "https://sr.mihoyo.com/favicon-mi.ico",
		"group":     "biliticket",
		"isArchive": 1,
	}
	return postJSON(ctx, fmt.Sprintf(barkEndpoint, cfg.BarkToken), payload, nil)
}

type pushPlusChannel struct{}

func (pushPlusChannel) Name() string               { return "pushplus" }
func (pushPlusChannel) Configured(cfg Config) bool { return cfg.PushPlusToken != "" }

func (pushPlusChannel) Send(ctx context.Context, msg Message, cfg Config) error {
	payload := map[string]any{
		"token":   cfg.PushPlusToken,
		"title":   msg.Title,
		"content": msg.Body,
	}
	return postJSON(ctx, pushPlusEndpoint, payload, nil)
}

type serverChanChannel struct{}

func (serverChanChannel) Name() string               { return "serverchan" }
func (serverChanChannel) Configured(cfg Config) bool { return cfg.ServerChanToken != "" }

func (serverChanChannel) Send(ctx context.Context, msg Message, cfg Config) error {
	payload := map[string]any{
		"title": msg.Title,
		"desp":  msg.Body,
		"noip":  1,
	}
	return postJSON(ctx, fmt.Sprintf(serverChanEndpoint, cfg.ServerChanToken), payload, nil)
}

var robotHeaders = map[string]string{
	"Content-Type": "application/json",
	"Charset":      "UTF-8",
}

type dingTalkChannel struct{}

func (dingTalkChannel) Name() string               { return "dingtalk" }
func (dingTalkChannel) Configured(cfg Config) bool { return cfg.DingTalkToken != "" }

func (dingTalkChannel) Send(ctx context.Context, msg Message, cfg Config) error {
	payload := map[string]any{
		"msgtype": "text",
		"text": map[string]string{
			"content": fmt.Sprintf("%s \n %s", msg.Title, msg.Body),
		},
	}
	return postJSON(ctx, fmt.Sprintf(dingTalkEndpoint, cfg.DingTalkToken), payload, robotHeaders)
}

type weComChannel struct{}

func (weComChannel) Name() string               { return "wecom" }
func (weComChannel) Configured(cfg Config) bool { return cfg.WeComToken != "" }

func (weComChannel) Send(ctx context.Context, msg Message, cfg Config) error {
	payload := map[string]any{
		"msgtype": "text",
		"text": map[string]string{
			"content": fmt.Sprintf("%s \n %s", msg.Title, msg.Body),
		},
	}
	return postJSON(ctx, fmt.Sprintf(weComEndpoint, cfg.WeComToken), payload, robotHeaders)
}

type gotifyChannel struct{}

func (gotifyChannel) Name() string               { return "gotify" }
func (gotifyChannel) Configured(cfg Config) bool { return cfg.Gotify.Token != "" }

func (gotifyChannel) Send(ctx context.Context, msg Message, cfg Config) error {
	jumpURL := msg.JumpURL
	if jumpURL == "" {
		jumpURL = "bilibili://mall/web?url=https://www.bilibili.com"
	}
	base := cfg.Gotify.URL
	if !strings.Contains(base, "http") {
		base = "http://" + base
	}
	payload := map[string]any{
		"message":  msg.Body,
		"title":    msg.Title,
		"priority": 9,
		"extras": map[string]any{
			"client::notification": map[string]any{
				"click": map[string]string{"url": jumpURL},
			},
			"android::action": map[string]any{
				"onReceive": map[string]string{"intentUrl": jumpURL},
			},
		},
	}
	headers := map[string]string{
		"Authorization": "Bearer " + cfg.Gotify.Token,
	}
	return postJSON(ctx, strings.TrimRight(base, "/")+"/message", payload, headers)
}

type smtpChannel struct{}

func (smtpChannel) Name() string               { return "smtp" }
func (smtpChannel) Configured(cfg Config) bool { return cfg.SMTP.Server != "" }

// Mail delivery is not wired yet. Deterministic failure, never a network call.
func (smtpChannel) Send(ctx context.Context, msg Message, cfg Config) error {
	return errors.New("smtp delivery not implemented")
}
