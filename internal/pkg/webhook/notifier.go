package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// Notifier 任务终态通知器。投递失败只记日志，绝不影响任务状态。
type Notifier struct {
	url    string
	client *http.Client
}

// Event 终态通知载荷
type Event struct {
	Event      string      `json:"event"`
	JobID      int64       `json:"job_id"`
	Repository string      `json:"repository"`
	Status     string      `json:"status"`
	Summary    interface{} `json:"summary,omitempty"`
	Error      string      `json:"error,omitempty"`
}

func NewNotifier(url string, timeoutSeconds int) *Notifier {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 10
	}
	return &Notifier{
		url: url,
		client: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
	}
}

// Enabled 是否配置了通知地址
func (n *Notifier) Enabled() bool {
	return n != nil && n.url != ""
}

// Notify 投递终态事件，best-effort
func (n *Notifier) Notify(ctx context.Context, event *Event) {
	if !n.Enabled() {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Webhook: failed to marshal event for job %d: %v", event.JobID, err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(data))
	if err != nil {
		log.Printf("Webhook: failed to build request for job %d: %v", event.JobID, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		log.Printf("Webhook: delivery failed for job %d: %v", event.JobID, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Printf("Webhook: delivery for job %d rejected: %s", event.JobID, resp.Status)
		return
	}

	log.Printf("Webhook: delivered %s for job %d", event.Event, event.JobID)
}

// TerminalEvent 根据任务终态构造通知载荷
func TerminalEvent(jobID int64, repoFullName, status string, summary interface{}, errMsg string) *Event {
	name := "analysis.completed"
	if status != "completed" {
		name = "analysis.failed"
	}
	return &Event{
		Event:      name,
		JobID:      jobID,
		Repository: repoFullName,
		Status:     status,
		Summary:    summary,
		Error:      errMsg,
	}
}
