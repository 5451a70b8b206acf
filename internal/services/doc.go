// Package services defines the shared error taxonomy used to classify
// failures across murmur components.
package services
