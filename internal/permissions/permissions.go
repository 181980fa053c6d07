// Package permissions checks OS-level microphone access.
package permissions

import "errors"

// ErrMicrophoneDenied means the OS has not granted microphone access.
var ErrMicrophoneDenied = errors.New("microphone permission not granted")
