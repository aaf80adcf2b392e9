package trade

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/TsubakiDev/btr/internal/captcha"
	"github.com/TsubakiDev/btr/internal/session"
)

// Remote business codes. Everything not listed here is treated as transient;
// the remote service is opaque during an opening rush and unknown codes are
// cheaper to retry than to misclassify as fatal.
const (
	codeOK             = 0
	codeNotOnSale      = 100001
	codeRateLimited    = 100086
	codeSoldOut        = 100009
	codeBuyerRejected  = 100017
	codeRiskChallenge  = -401
	codeSessionStale   = -101
	codeSessionInvalid = -412
)

type HTTPClient struct {
	base   string
	client *http.Client
}

func NewHTTPClient(base string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		base:   base,
		client: &http.Client{Timeout: timeout},
	}
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type prepareData struct {
	Token     string            `json:"token"`
	Prompt    string            `json:"prompt"`
	ExpireSec int               `json:"expire_sec"`
	Challenge captcha.Challenge `json:"challenge"`
}

type confirmData struct {
	OrderID string `json:"order_id"`
	PayURL  string `json:"pay_url"`
}

func (c *HTTPClient) Prepare(ctx context.Context, s *session.Handle, o Order, tok *captcha.Token) (*PrepareResult, error) {
	body := map[string]any{
		"project_id": o.ProjectID,
		"screen_id":  o.ScreenID,
		"sku_id":     o.TicketID,
		"count":      o.Count,
	}
	if tok != nil {
		body["validate"] = tok.Validate
		body["seccode"] = tok.Seccode
	}

	var data prepareData
	resp, err := c.post(ctx, s, "/api/trade/prepare", body, &data)
	if err != nil {
		return nil, err
	}
	if resp.Code == codeRiskChallenge {
		return nil, &RiskChallengeError{Challenge: data.Challenge}
	}
	if err := classify(resp); err != nil {
		return nil, err
	}
	return &PrepareResult{
		Token:     data.Token,
		Prompt:    data.Prompt,
		ExpiresAt: time.Now().Add(time.Duration(data.ExpireSec) * time.Second),
	}, nil
}

func (c *HTTPClient) Confirm(ctx context.Context, s *session.Handle, o Order, p *PrepareResult) (*Confirmation, error) {
	body := map[string]any{
		"project_id": o.ProjectID,
		"screen_id":  o.ScreenID,
		"sku_id":     o.TicketID,
		"count":      o.Count,
		"token":      p.Token,
		"buyer_ids":  o.BuyerIDs,
	}
	if len(o.BuyerIDs) == 0 {
		body["contact_name"] = o.Contact.Name
		body["contact_tel"] = o.Contact.Tel
	}

	var data confirmData
	resp, err := c.post(ctx, s, "/api/trade/create", body, &data)
	if err != nil {
		return nil, err
	}
	if err := classify(resp); err != nil {
		return nil, err
	}
	return &Confirmation{
		OrderID:   data.OrderID,
		PayURL:    data.PayURL,
		CreatedAt: time.Now(),
	}, nil
}

func (c *HTTPClient) post(ctx context.Context, s *session.Handle, path string, body any, out any) (*apiResponse, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	s.Apply(req)

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trade call failed: %w", err)
	}
	defer httpResp.Body.Close()

	var resp apiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode trade response (status %d): %w", httpResp.StatusCode, err)
	}
	if len(resp.Data) > 0 && out != nil {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			return nil, fmt.Errorf("decode trade payload: %w", err)
		}
	}
	return &resp, nil
}

func classify(resp *apiResponse) error {
	switch resp.Code {
	case codeOK:
		return nil
	case codeSoldOut:
		return Permanent(ErrSoldOut)
	case codeBuyerRejected:
		return Permanent(fmt.Errorf("%w: %s", ErrBuyerRejected, resp.Message))
	case codeSessionInvalid:
		return Permanent(ErrSessionInvalid)
	case codeSessionStale:
		return ErrStaleSession
	case codeRateLimited:
		return ErrRateLimited
	case codeNotOnSale:
		return ErrNotOnSale
	default:
		return fmt.Errorf("remote error %d: %s", resp.Code, resp.Message)
	}
}
