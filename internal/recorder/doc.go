// Package recorder drives the long-lived audio capture worker. A Session owns
// one supervised process, translates its protocol messages into typed session
// events, and tracks whether a capture is in flight.
package recorder
