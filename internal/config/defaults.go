package config

// flatten lists every configurable key with its value in cfg.
func flatten(cfg Config) map[string]any {
	return map[string]any{
		"build.source":              cfg.Build.Source,
		"build.compat":              cfg.Build.Compat,
		"build.notes":               cfg.Build.Notes,
		"build.notes_language":      cfg.Build.NotesLanguage,
		"build.rel_ids":             cfg.Build.RelIDs,
		"build.transition":          cfg.Build.Transition,
		"build.transition_duration": cfg.Build.TransitionDuration,
		"build.work_dir":            cfg.Build.WorkDir,
		"build.parallel":            cfg.Build.Parallel,

		"canvas.format":       cfg.Canvas.Format,
		"canvas.presets_file": cfg.Canvas.PresetsFile,

		"rasterizer.backend":           cfg.Rasterizer.Backend,
		"rasterizer.command":           cfg.Rasterizer.Command,
		"rasterizer.args":              cfg.Rasterizer.Args,
		"rasterizer.cache_size":        cfg.Rasterizer.CacheSize,
		"rasterizer.failure_threshold": cfg.Rasterizer.FailureThreshold,
		"rasterizer.reset_timeout":     cfg.Rasterizer.ResetTimeout,

		"server.addr":           cfg.Server.Addr,
		"server.enable_cors":    cfg.Server.EnableCORS,
		"server.debug":          cfg.Server.Debug,
		"server.read_timeout":   cfg.Server.ReadTimeout,
		"server.write_timeout":  cfg.Server.WriteTimeout,
		"server.max_upload_mb":  cfg.Server.MaxUploadMB,
		"server.max_concurrent": cfg.Server.MaxConcurrent,

		"observability.logging.level":           cfg.Observability.Logging.Level,
		"observability.logging.format":          cfg.Observability.Logging.Format,
		"observability.metrics.enabled":         cfg.Observability.Metrics.Enabled,
		"observability.tracing.enabled":         cfg.Observability.Tracing.Enabled,
		"observability.tracing.exporter":        cfg.Observability.Tracing.Exporter,
		"observability.tracing.otlp_endpoint":   cfg.Observability.Tracing.OTLPEndpoint,
		"observability.tracing.zipkin_endpoint": cfg.Observability.Tracing.ZipkinEndpoint,
		"observability.tracing.sample_rate":     cfg.Observability.Tracing.SampleRate,
		"observability.tracing.service_name":    cfg.Observability.Tracing.ServiceName,
		"observability.tracing.service_version": cfg.Observability.Tracing.ServiceVersion,
	}
}
