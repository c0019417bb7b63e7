package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/permit-gin/internal/model"
	"github.com/mautops/permit-gin/internal/repository"
	"github.com/mautops/permit-gin/internal/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LifecycleEvent 对外投递的生命周期事件载荷
type LifecycleEvent struct {
	ID           string      `json:"id"`
	Type         string      `json:"type"`
	PermitID     string      `json:"permit_id"`
	PermitNumber string      `json:"permit_number"`
	Status       string      `json:"status"`
	Payload      interface{} `json:"payload,omitempty"`
	OccurredAt   time.Time   `json:"occurred_at"`
}

// EventNotifier 生命周期事件通知器
// 事件先落库再异步投递:Webhook 推送走 worker 池,WebSocket 实时广播。
// 投递是尽力而为,任何失败都不会传播回生命周期事务
type EventNotifier struct {
	db         *gorm.DB
	eventRepo  repository.EventRepository
	hub        *websocket.Hub
	httpClient *http.Client
	webhookURL string
	queue      chan *LifecycleEvent
	workers    int
	stop       chan struct{}
}

// NewEventNotifier 创建事件通知器并启动投递 worker
func NewEventNotifier(db *gorm.DB, hub *websocket.Hub, webhookURL string, workers int) *EventNotifier {
	if workers <= 0 {
		workers = 1
	}

	n := &EventNotifier{
		db:         db,
		eventRepo:  repository.NewEventRepository(db),
		hub:        hub,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
		queue:      make(chan *LifecycleEvent, 1000),
		workers:    workers,
		stop:       make(chan struct{}),
	}

	// 启动 worker goroutines
	for i := 0; i < workers; i++ {
		go n.worker()
	}

	return n
}

// Notify 投递一条生命周期事件
// 在生命周期事务提交之后调用
func (n *EventNotifier) Notify(permit *model.PermitModel, eventType string, payload interface{}) {
	evt := &LifecycleEvent{
		ID:           uuid.New().String(),
		Type:         eventType,
		PermitID:     permit.ID,
		PermitNumber: permit.PermitNumber,
		Status:       permit.Status,
		Payload:      payload,
		OccurredAt:   time.Now(),
	}

	data, err := json.Marshal(evt)
	if err != nil {
		logrus.WithError(err).WithField("event_type", eventType).Warn("failed to marshal lifecycle event")
		return
	}

	// 1. 持久化事件到数据库
	eventModel := &model.EventModel{
		ID:         evt.ID,
		PermitID:   permit.ID,
		Type:       eventType,
		Data:       data,
		Status:     "pending",
		RetryCount: 0,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := n.eventRepo.Save(eventModel); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"event_type": eventType,
			"permit_id":  permit.ID,
		}).Warn("failed to persist lifecycle event")
	}

	// 2. WebSocket 实时广播
	if n.hub != nil {
		n.hub.BroadcastToPermit(permit.ID, data)
	}

	// 3. 异步推送到 Webhook
	select {
	case n.queue <- evt:
		// 事件成功入队
	default:
		// 队列满时记录日志,不阻塞
		logrus.WithFields(logrus.Fields{
			"event_type": eventType,
			"permit_id":  permit.ID,
		}).Warn("event queue full, dropping event")
	}
}

// worker 事件投递 worker
func (n *EventNotifier) worker() {
	for {
		select {
		case evt := <-n.queue:
			n.pushToWebhook(evt)
		case <-n.stop:
			return
		}
	}
}

// pushToWebhook 推送到 Webhook,指数退避重试
func (n *EventNotifier) pushToWebhook(evt *LifecycleEvent) {
	var eventModel model.EventModel
	if err := n.db.Where("id = ?", evt.ID).First(&eventModel).Error; err != nil {
		logrus.WithError(err).WithField("event_id", evt.ID).Warn("failed to load event for delivery")
		return
	}

	// 未配置 Webhook 时无需推送,直接标记成功
	if n.webhookURL == "" {
		eventModel.Status = "success"
		eventModel.UpdatedAt = time.Now()
		n.eventRepo.Save(&eventModel)
		return
	}

	maxRetries := 3
	backoff := time.Second

	for i := 0; i < maxRetries; i++ {
		err := n.sendWebhookRequest(evt)
		if err == nil {
			eventModel.Status = "success"
			eventModel.UpdatedAt = time.Now()
			n.eventRepo.Save(&eventModel)
			return
		}

		logrus.WithError(err).WithFields(logrus.Fields{
			"event_id": evt.ID,
			"attempt":  i + 1,
		}).Warn("webhook delivery failed")

		eventModel.RetryCount++
		eventModel.UpdatedAt = time.Now()
		n.eventRepo.Save(&eventModel)

		if i < maxRetries-1 {
			time.Sleep(backoff)
			backoff *= 2 // 指数退避
		}
	}

	eventModel.Status = "failed"
	eventModel.UpdatedAt = time.Now()
	n.eventRepo.Save(&eventModel)
}

// sendWebhookRequest 发送 Webhook 请求
func (n *EventNotifier) sendWebhookRequest(evt *LifecycleEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, n.webhookURL, bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Permit-Event", evt.Type)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &webhookStatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// Stop 停止事件通知器
func (n *EventNotifier) Stop() {
	close(n.stop)
}

// webhookStatusError 非 2xx 响应错误
type webhookStatusError struct {
	StatusCode int
}

func (e *webhookStatusError) Error() string {
	return fmt.Sprintf("webhook returned status code: %d", e.StatusCode)
}
