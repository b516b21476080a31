// Package queue defines the audit event pipeline: the queue name shared
// by publisher and consumer, and the background consumer that persists
// events to the audit_logs table.
package queue

// AuditQueueName is the durable queue carrying audit events from request
// handlers to the persistence consumer.
const AuditQueueName = "audit.events"
