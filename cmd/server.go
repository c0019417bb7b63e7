/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mautops/permit-gin/internal/api"
	"github.com/mautops/permit-gin/internal/config"
	"github.com/mautops/permit-gin/internal/container"
	"github.com/mautops/permit-gin/internal/metrics"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	Long: `Start the Permit Gin API server.
The server will listen on the configured host and port,
and provide REST API interfaces for work permit lifecycle management.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. 加载配置
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// 2. 初始化日志记录器
		logger, err := api.NewLoggerFromConfig(&cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		api.SetLogger(logger)

		// 配置文件变更时热更新日志级别
		if configPath != "" {
			watcher := config.NewConfigWatcher(cfg, configPath)
			watcher.OnConfigChange(func(newCfg *config.Config) {
				level, err := logrus.ParseLevel(newCfg.Log.Level)
				if err != nil {
					log.Printf("Invalid log level %q in updated config: %v", newCfg.Log.Level, err)
					return
				}
				api.SetLoggerLevel(level)
				log.Printf("Log level updated to %s", newCfg.Log.Level)
			})
			if err := watcher.Start(); err != nil {
				log.Printf("Failed to watch config file: %v", err)
			} else {
				defer watcher.Stop()
			}
		}

		// 3. 初始化容器
		ctr, err := container.NewContainer(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer ctr.Close()

		// 4. 启动数据库连接指标采集器
		collector := metrics.NewCollector(ctr.DB(), 15*time.Second)
		collector.Start()
		defer collector.Stop()

		// 5. 初始化链路追踪(配置了 Jaeger 端点时)
		tracingEnabled := false
		if cfg.Trace.JaegerEndpoint != "" {
			if err := api.InitTracing("permit-gin", cfg.Trace.JaegerEndpoint); err != nil {
				log.Printf("Failed to initialize tracing: %v", err)
			} else {
				tracingEnabled = true
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = api.ShutdownTracing(shutdownCtx)
				}()
			}
		}

		// 6. 设置路由
		// 如果 host 是 0.0.0.0,使用 localhost 作为 Swagger URL
		swaggerHost := cfg.Server.Host
		if swaggerHost == "0.0.0.0" {
			swaggerHost = "localhost"
		}
		router := api.SetupRoutesWithConfig(
			ctr.Hub(),
			ctr.KeycloakValidator(),
			ctr.DB(),
			ctr.Controllers(),
			api.RouterConfig{
				SwaggerHost:    swaggerHost,
				Port:           cfg.Server.Port,
				CORS:           &cfg.CORS,
				RateLimit:      &cfg.RateLimit,
				TracingEnabled: tracingEnabled,
			},
		)

		// 7. 启动服务器
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:    addr,
			Handler: router,
		}

		// 启动服务器（在 goroutine 中）
		go func() {
			log.Printf("Server starting on %s", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()

		// 等待中断信号
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("Shutting down server...")

		// 优雅关闭
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		log.Println("Server exited")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// 服务器配置标志
	serverCmd.Flags().String("config", "", "Config file path (default: config.yaml)")
	serverCmd.Flags().String("host", "0.0.0.0", "Server host")
	serverCmd.Flags().Int("port", 8080, "Server port")
}

// LoadConfig 加载配置
func LoadConfig(configPath string) (*config.Config, error) {
	return config.Load(configPath)
}
