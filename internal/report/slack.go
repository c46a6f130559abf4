package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// SlackNotifier posts plain-text copies of reports to a Slack incoming webhook.
type SlackNotifier struct {
	SlackWebhookURL string
	client          *retryablehttp.Client
}

func NewSlackNotifier(url string) *SlackNotifier {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.RetryWaitMin = 200 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.Logger = nil
	return &SlackNotifier{SlackWebhookURL: url, client: c}
}

type SlackWebhookBody struct {
	Text string `json:"text"`
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// plainText turns our Telegram HTML into something readable in Slack.
func plainText(s string) string {
	return html.UnescapeString(tagPattern.ReplaceAllString(s, ""))
}

func (n *SlackNotifier) Send(ctx context.Context, msg string) error {
	body, err := json.Marshal(SlackWebhookBody{Text: plainText(msg)})
	if err != nil {
		return err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, n.SlackWebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	if resp.StatusCode != http.StatusOK || buf.String() != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}
