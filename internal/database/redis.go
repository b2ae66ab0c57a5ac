package database

import (
	"sync"

	"notesaas/pkg/config"
	"notesaas/pkg/stream"
)

var (
	activityStreamInstance *stream.ActivityStream
	activityStreamOnce     sync.Once
)

// GetActivityStream 获取活动事件流的单例实例
func GetActivityStream() *stream.ActivityStream {
	activityStreamOnce.Do(func() {
		cfg := config.GetConfig()
		activityStreamInstance = stream.NewActivityStream(&stream.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	})
	return activityStreamInstance
}

// CloseActivityStream 关闭Redis连接
func CloseActivityStream() error {
	if activityStreamInstance != nil {
		return activityStreamInstance.Close()
	}
	return nil
}
