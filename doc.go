// Package serial implements a multi-port serial session engine for
// tick-driven frontends.
//
// Each discovered port gets a PortSession with its own lifecycle state
// machine and at most one running I/O task. The task owns the hardware
// handle and talks to the synchronous world only through a bounded
// channel bridge, so a frontend can poll every session once per tick
// without ever blocking on hardware.
//
// The Registry is the single entry point: it reconciles sessions against
// discovery results, ensures each session has a task, flushes queued
// outbound data and drains inbound events, in that fixed order, every
// time Tick is called.
package serial
