package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/qinglongcn/bpfsconsensus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var metricsAddr string

// serveCmd 常驻运行
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "常驻运行并导出指标",
	Long:  "打开校验服务并通过 HTTP 导出 prometheus 指标，收到 SIGINT 或 SIGTERM 后退出",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := prometheus.NewRegistry()
		options.BuildRegisterer(reg)

		svc, err := openService()
		if err != nil {
			return err
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.Errorf("[serve] 指标服务退出:\t%v", err)
			}
		}()
		logrus.Infof("指标地址: http://%s/metrics", metricsAddr)

		// 阻塞直到收到终止信号并关闭服务
		bpfsconsensus.WaitForShutdown(svc)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "127.0.0.1:9464", "指标监听地址")
}
