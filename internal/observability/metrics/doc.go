// Package metrics defines the relay's Prometheus collectors and the observer
// types that feed them. Each observer satisfies the Observer interface of the
// package it instruments (itemstore, poll, deliver, relay), so those packages
// stay free of Prometheus imports.
//
// Collectors register with the default registry through promauto and are
// served by promhttp on the metrics port.
package metrics
