// Package resources samples host load and gates the start of new encodes.
//
// Monitor answers "is the machine too busy to start another encode?" from
// /proc via prometheus/procfs and can block until the answer becomes no. It is
// advisory backpressure: running encodes are never touched, and a host whose
// load cannot be sampled is treated as idle.
package resources
