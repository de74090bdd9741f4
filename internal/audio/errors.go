// SPDX-License-Identifier: MIT
package audio

import "errors"

var (
	// ErrAllocation reports a buffer that could not be sized.
	ErrAllocation = errors.New("audio: allocation failed")
	// ErrInit reports an init-time dependency failure.
	ErrInit = errors.New("audio: initialisation failed")
	// ErrDevice reports a capture device that could not be opened, started or closed.
	ErrDevice = errors.New("audio: device error")
	// ErrNoData is returned by Source.Read when no frame is ready yet. It is
	// retried by the capture loop and never surfaced.
	ErrNoData = errors.New("audio: no data yet")
	// ErrFatalRead wraps the read error that stopped the capture loop.
	ErrFatalRead = errors.New("audio: read failed")
	// ErrClosed is returned by operations on a closed pipeline or source.
	ErrClosed = errors.New("audio: closed")
)
