package main

import (
	"context"
	"lead-newsletter/config"
	"lead-newsletter/internal/storage"
	"log"
	"os"
	"time"
)

// 删除指定运行的全部产物（运行文档和配图）
func main() {
	// 设置日志格式
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if len(os.Args) < 2 {
		log.Fatalf("用法: cleanup <runId>")
	}
	runID := os.Args[1]

	// 加载配置
	cfg := config.LoadConfig()

	// 创建MinIO客户端
	minioClient, err := storage.NewMinioClient(&cfg.MinIO)
	if err != nil {
		log.Fatalf("创建MinIO客户端失败: %v", err)
	}

	// 创建上下文
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	prefix := "newsletters/" + runID + "/"
	keys, err := minioClient.ListFiles(ctx, prefix)
	if err != nil {
		log.Fatalf("列出运行产物失败: %v", err)
	}

	if len(keys) == 0 {
		log.Printf("运行 %s 没有任何产物", runID)
		return
	}

	for _, key := range keys {
		if err := minioClient.DeleteFile(ctx, key); err != nil {
			log.Printf("删除 %s 失败: %v", key, err)
			continue
		}
		log.Printf("已删除 %s", key)
	}

	log.Printf("运行 %s 清理完成，共 %d 个对象", runID, len(keys))
}
