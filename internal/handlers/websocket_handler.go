package handlers

import (
	"context"
	"net/http"
	"notesaas/internal/database"
	"notesaas/internal/services"
	"notesaas/pkg/config"
	"notesaas/pkg/jwt"
	"notesaas/pkg/logger"
	"notesaas/pkg/stream"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocketHandler WebSocket处理器
type WebSocketHandler struct {
	upgrader       websocket.Upgrader
	activityStream *stream.ActivityStream
	log            *logrus.Logger
	jwtManager     *jwt.JWTManager
	profileService *services.ProfileService
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(profileService *services.ProfileService) *WebSocketHandler {
	// 获取CORS配置
	cfg := config.GetConfig()
	allowedOrigins := cfg.CORS.AllowOrigins

	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 检查Origin是否在允许列表中
				origin := r.Header.Get("Origin")

				// 如果允许所有源
				for _, allowed := range allowedOrigins {
					if allowed == "*" {
						return true
					}
				}

				// 如果Origin为空（同源请求），允许
				if origin == "" {
					return true
				}

				for _, allowed := range allowedOrigins {
					if matchOrigin(origin, allowed) {
						return true
					}
				}

				// 记录被拒绝的Origin
				logger.GetLogger().Warnf("WebSocket连接被拒绝，非法Origin: %s", origin)
				return false
			},
			ReadBufferSize:  1024 * 8,
			WriteBufferSize: 1024 * 8,
		},
		activityStream: database.GetActivityStream(),
		log:            logger.GetLogger(),
		jwtManager:     jwt.GetJWTManager(), // 使用全局JWT管理器
		profileService: profileService,
	}
}

// ActivityFeed 处理活动事件实时推送的WebSocket连接
// 有租户归属的用户订阅租户频道，独立用户订阅个人频道
func (h *WebSocketHandler) ActivityFeed(c *gin.Context) {
	// 从查询参数获取token（WebSocket不支持自定义header）
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "缺少认证令牌"})
		return
	}

	// 验证token
	claims, err := h.jwtManager.VerifyToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的令牌"})
		return
	}

	// 加载用户档案，确认归属未发生变化
	profile, err := h.profileService.GetByID(claims.ProfileID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "用户档案不存在"})
		return
	}
	if !profile.Active {
		c.JSON(http.StatusForbidden, gin.H{"error": "账号已被禁用"})
		return
	}

	// 升级为WebSocket连接
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	h.log.WithFields(logrus.Fields{
		"profile_id":  profile.ID,
		"remote_addr": c.ClientIP(),
	}).Info("Activity feed WebSocket connection established")

	h.handleActivityFeedConnection(conn, profile.ID, profile.TenantID)
}

// handleActivityFeedConnection 转发活动事件直到客户端断开
func (h *WebSocketHandler) handleActivityFeedConnection(conn *websocket.Conn, profileID uint, tenantID *uint) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 按归属选择订阅频道
	var sub *stream.Subscription
	if tenantID != nil {
		sub = h.activityStream.SubscribeTenant(ctx, *tenantID)
	} else {
		sub = h.activityStream.SubscribeProfile(ctx, profileID)
	}
	defer sub.Close()

	// 启动goroutine处理客户端消息（主要是ping/pong）
	go h.readPump(conn, cancel)

	// 设置写入超时
	const writeTimeout = 10 * time.Second

	// 创建心跳ticker - 每60秒发送一次ping
	pingTicker := time.NewTicker(60 * time.Second)
	defer pingTicker.Stop()

	// 循环接收并转发事件
	for {
		select {
		case <-ctx.Done():
			return

		case <-pingTicker.C:
			// 发送ping消息保持连接
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.log.WithError(err).Error("Failed to send ping")
				return
			}

		case event, ok := <-sub.Events:
			if !ok {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(event); err != nil {
				h.log.WithError(err).Error("Failed to send event to client")
				return
			}
		}
	}
}

// readPump 处理客户端消息
func (h *WebSocketHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	// 设置读取超时
	pongWait := 300 * time.Second
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// 读取消息（主要是处理ping/pong）
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.WithError(err).Error("WebSocket unexpected close")
			}
			break
		}
	}
}

// matchOrigin 检查origin是否匹配allowed模式
// 支持精确匹配和通配符匹配（如 *.example.com）
func matchOrigin(origin, allowed string) bool {
	if origin == allowed {
		return true
	}

	if strings.HasPrefix(allowed, "*.") {
		domain := allowed[2:]

		// 去掉协议部分，例如 http://sub.example.com -> sub.example.com
		originHost := origin
		if idx := strings.Index(origin, "://"); idx != -1 {
			originHost = origin[idx+3:]
		}

		// 去掉端口号（如果有）
		if idx := strings.Index(originHost, ":"); idx != -1 {
			originHost = originHost[:idx]
		}

		if originHost == domain {
			return true
		}
		if strings.HasSuffix(originHost, "."+domain) {
			return true
		}
	}

	return false
}
