// Package metrics exposes the bridge's Prometheus metrics.
//
// *Metrics owns a dedicated registry, wraps every metric with a constant
// `service` label, and serves the registry on /metrics. It implements
// observability.Observer, so it can be attached to a rabbit.Session, a
// bridge.Sender or a bridge.Receiver, which report their operations to it:
//
//	mqlog_messages_published_total{exchange,level}
//	mqlog_messages_dropped_total{level,reason}
//	mqlog_messages_consumed_total{queue,level}
//	mqlog_dispatch_duration_seconds{level}
//	mqlog_connection_state{session}
//	mqlog_operation_errors_total{component,operation}
//
// # Direct Usage (Without FX)
//
//	m := metrics.NewMetrics(metrics.Config{
//		Address:                 ":9090",
//		ServiceName:             "log-node",
//		EnableDefaultCollectors: true,
//	})
//	go m.Server.ListenAndServe()
//	defer m.Server.Shutdown(context.Background())
//
//	sender := bridge.NewSender("billing", cfg, bridge.WithObserver(m))
//
// # Custom Metrics
//
//	jobs := m.CreateCounter("jobs_total", "Processed jobs", []string{"status"})
//	jobs.WithLabelValues("ok").Inc()
//
// # FX Module Integration
//
//	app := fx.New(
//		logger.FXModule,
//		metrics.FXModule, // provides *Metrics and observability.Observer
//		fx.Provide(func() metrics.Config { return cfg.Metrics }),
//	)
//
// # Thread Safety
//
// All methods are safe for concurrent use.
package metrics
