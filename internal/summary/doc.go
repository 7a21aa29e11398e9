// Package summary defines the core types shared across the summarizer
// pipeline: the signal bundle assembled per request, the service interfaces
// the pipeline is composed from, and the error taxonomy every subsystem
// normalizes into.
package summary
