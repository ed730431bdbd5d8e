// Package ports defines interfaces between layers in the hexagonal architecture.
// Service ports are implemented by the application layer and called by the
// command dispatcher. Collection and EventPublisher ports are implemented by
// outbound adapters (store, bus) and called by the application layer.
package ports
