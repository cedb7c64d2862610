// Package main Pool Server 入口
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"buildpool/internal/apiserver"
	"buildpool/internal/apiserver/auth"
	"buildpool/internal/config"
	"buildpool/internal/dockerhost"
	eventredis "buildpool/internal/eventbus/redis"
	"buildpool/internal/history"
	"buildpool/internal/pool"
	"buildpool/internal/tlsutil"
	"buildpool/pkg/logging"
)

func main() {
	// 加载配置（自动加载 .env，根据 APP_ENV 切换配置文件）
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting Pool Server... [env=%s pool=%s]", cfg.Env, cfg.Pool.Name)

	// 池配置（含目录挂载文本块）在加载阶段已整体校验
	settings, err := cfg.PoolSettings()
	if err != nil {
		log.Fatalf("Failed to build pool settings: %v", err)
	}

	// TLS 凭据：开启 TLS 且目录中无证书时自动生成
	factory := &dockerhost.Factory{
		Port:       cfg.Pool.DockerPort,
		TLSEnabled: cfg.Pool.TLSEnabled,
	}
	if cfg.Pool.TLSEnabled {
		opts := tlsutil.DefaultGenerateOptions()
		if cfg.Pool.CertDir != "" {
			opts.CertDir = cfg.Pool.CertDir
		}
		certs, err := tlsutil.EnsureClientCerts(opts)
		if err != nil {
			log.Fatalf("Failed to prepare TLS credentials: %v", err)
		}
		factory.Certs = *certs
	}

	// 构建执行主机集合
	hosts, err := dockerhost.BuildHosts(cfg.Pool.Hosts, cfg.Pool.Name, factory)
	if err != nil {
		log.Fatalf("Failed to build docker hosts: %v", err)
	}
	log.Printf("Pool %s: %d hosts, max %d executors per host",
		cfg.Pool.Name, len(hosts), settings.MaxExecutors)

	// 安置引擎与指标
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	placer := pool.NewPlacer(settings, pool.StaticHosts(hosts))
	placer.SetMetrics(pool.NewMetrics(registry, cfg.Pool.Name))

	// 安置事件总线（可选）
	var bus *eventredis.Bus
	if cfg.Redis.URL != "" {
		bus, err = eventredis.Open(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer bus.Close()
		placer.SetEventBus(bus)
		log.Println("Connected to Redis event bus")
	}

	// 安置审计存储（可选）
	var store *history.Store
	if cfg.History.Path != "" {
		store, err = history.Open(cfg.History.Path)
		if err != nil {
			log.Fatalf("Failed to open placement history: %v", err)
		}
		defer store.Close()
		log.Printf("Placement history at %s", cfg.History.Path)
	}

	// HTTP API
	authCfg := auth.DefaultConfig()
	if cfg.Auth.Enabled {
		authCfg.JWTSecret = cfg.Auth.JWTSecret
	}

	h := apiserver.NewHandler(placer, store, authCfg)
	h.SetRegistry(registry)
	if bus != nil {
		h.SetEventBus(bus)
	}
	h.SetLogger(logging.New(logging.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Output:    cfg.Log.Output,
		Component: "pool-server",
	}))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // 安置接口同步等待容器创建
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Pool Server listening on :%s", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server stopped")
}
