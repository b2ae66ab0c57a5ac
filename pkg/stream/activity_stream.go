package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ActivityStream 基于Redis发布订阅的活动事件流
type ActivityStream struct {
	client *redis.Client
	prefix string
}

// ActivityEvent 流中的活动事件
type ActivityEvent struct {
	EventID      string `json:"event_id"`
	ActorID      uint   `json:"actor_id"`
	TenantID     uint   `json:"tenant_id"` // 0表示无租户归属
	Action       string `json:"action"`
	ResourceType string `json:"resource_type,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`
	Description  string `json:"description"`
	Created      int64  `json:"created"`
}

// Config Redis配置
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

// NewActivityStream 创建活动事件流实例
func NewActivityStream(config *Config) *ActivityStream {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})

	prefix := config.Prefix
	if prefix == "" {
		prefix = "notesaas:activity"
	}

	return &ActivityStream{
		client: client,
		prefix: prefix,
	}
}

// Close 关闭Redis连接
func (s *ActivityStream) Close() error {
	return s.client.Close()
}

// Ping 测试Redis连接
func (s *ActivityStream) Ping() error {
	ctx := context.Background()
	return s.client.Ping(ctx).Err()
}

// GetClient 获取底层Redis客户端
func (s *ActivityStream) GetClient() *redis.Client {
	return s.client
}

// tenantChannel 租户频道名
func (s *ActivityStream) tenantChannel(tenantID uint) string {
	return fmt.Sprintf("%s:tenant:%d", s.prefix, tenantID)
}

// profileChannel 个人频道名（无租户用户）
func (s *ActivityStream) profileChannel(profileID uint) string {
	return fmt.Sprintf("%s:profile:%d", s.prefix, profileID)
}

// Publish 发布活动事件
// 有租户归属的事件发到租户频道，否则发到操作者个人频道
func (s *ActivityStream) Publish(actorID, tenantID uint, action, resourceType, resourceID, description string) error {
	ctx := context.Background()

	event := ActivityEvent{
		EventID:      uuid.New().String(),
		ActorID:      actorID,
		TenantID:     tenantID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Description:  description,
		Created:      time.Now().Unix(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化活动事件失败: %v", err)
	}

	channel := s.profileChannel(actorID)
	if tenantID != 0 {
		channel = s.tenantChannel(tenantID)
	}

	return s.client.Publish(ctx, channel, data).Err()
}

// Subscription 活动事件订阅
type Subscription struct {
	Events <-chan ActivityEvent
	pubsub *redis.PubSub
	cancel context.CancelFunc
}

// Close 取消订阅并释放资源，消费端断开时必须调用
func (sub *Subscription) Close() error {
	sub.cancel()
	return sub.pubsub.Close()
}

// SubscribeTenant 订阅指定租户的活动事件
func (s *ActivityStream) SubscribeTenant(ctx context.Context, tenantID uint) *Subscription {
	return s.subscribe(ctx, s.tenantChannel(tenantID))
}

// SubscribeProfile 订阅指定用户的个人活动事件
func (s *ActivityStream) SubscribeProfile(ctx context.Context, profileID uint) *Subscription {
	return s.subscribe(ctx, s.profileChannel(profileID))
}

func (s *ActivityStream) subscribe(ctx context.Context, channel string) *Subscription {
	subCtx, cancel := context.WithCancel(ctx)
	pubsub := s.client.Subscribe(subCtx, channel)

	events := make(chan ActivityEvent, 16)
	go func() {
		defer close(events)
		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event ActivityEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case events <- event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		Events: events,
		pubsub: pubsub,
		cancel: cancel,
	}
}
