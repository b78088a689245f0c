/*
Package monitoring provides Prometheus metrics for the script bridge host.

# Overview

Metrics cover the host HTTP API, the plugin lifecycle (loads, evaluation
time, sandbox state, teardowns, dispatched actions), the capability bridge
(authorized calls per action, rejections per reason, in-flight fetches),
the event channel (emitted and dropped events) and host service calls.

# Usage

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	router.Use(monitoring.Middleware(metrics))

	timer := monitoring.NewTimer(metrics, "crypto.aesEncrypt")
	// ... perform operation ...
	timer.Stop("success")

Tests pass prometheus.NewRegistry() so repeated construction does not
collide on registration.

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
