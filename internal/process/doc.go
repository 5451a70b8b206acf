// Package process supervises a single external worker process: spawning,
// stdin/stdout wiring, restart with exponential backoff, health checking, and
// translation of stdout lines into protocol messages.
package process
