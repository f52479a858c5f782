// Package model holds values shared across the relay packages.
package model

import "errors"

var (
	// ErrClientClosed is returned when an operation targets a connection that is already closed.
	ErrClientClosed = errors.New("client closed")

	// ErrServerClosed is returned when the relay server has been stopped.
	ErrServerClosed = errors.New("relay server closed")

	// ErrSlowConsumer is the close reason for a connection whose outbound queue is full.
	ErrSlowConsumer = errors.New("outbound queue full")
)
