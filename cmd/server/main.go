package main

import (
	"lead-newsletter/config"
	"lead-newsletter/internal/api"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
)

func main() {
	// 设置日志格式
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("启动简报生成服务")

	// 加载配置
	cfg := config.LoadConfig()

	// 创建API服务器
	server, err := api.NewServer(cfg)
	if err != nil {
		log.Fatalf("创建服务器失败: %v", err)
	}

	// 创建定时任务，每天生成当日草稿
	c := cron.New(cron.WithSeconds())

	_, err = c.AddFunc(cfg.Newsletter.DailyCronSpec, func() {
		date := time.Now().Format("2006-01-02")
		log.Printf("定时任务触发: 生成 %s 的简报草稿", date)
		go server.RunDailyDraft(date)
	})

	if err != nil {
		log.Printf("添加定时任务失败: %v", err)
	} else {
		c.Start()
		defer c.Stop()
		log.Println("定时任务已启动")
	}

	// 创建通道接收系统信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// 启动服务器（非阻塞）
	go func() {
		log.Printf("服务器正在监听端口 %s", cfg.Server.Port)
		if err := server.Run(); err != nil {
			log.Fatalf("服务器运行失败: %v", err)
		}
	}()

	// 等待退出信号
	<-quit
	log.Println("收到退出信号，正在关闭服务")
}
