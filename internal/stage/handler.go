// Package stage defines the contract between the workflow manager and the
// units of work it schedules.
package stage

import (
	"context"
	"fmt"

	"recast/internal/queue"
)

// Handler is one schedulable unit of queue work. Prepare validates and
// enriches the claimed job before any engine process starts; Execute performs
// the conversion and blocks until it reaches a terminal state; HealthCheck
// answers readiness probes without touching the queue.
type Handler interface {
	Prepare(context.Context, *queue.Job) error
	Execute(context.Context, *queue.Job) error
	HealthCheck(context.Context) Health
}

// Health reports whether a stage can currently accept work.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy marks the named stage ready.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy marks the named stage not ready, with a reason for operators.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// Unhealthyf is Unhealthy with a formatted reason.
func Unhealthyf(name, format string, args ...any) Health {
	return Health{Name: name, Ready: false, Detail: fmt.Sprintf(format, args...)}
}
