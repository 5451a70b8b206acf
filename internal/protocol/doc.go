// Package protocol parses and serializes the line-oriented text protocol
// spoken by murmur's worker processes over stdin/stdout.
package protocol
