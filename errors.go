package udpcon

import "github.com/pkg/errors"

// ErrDataTooLarge is returned by Send when a payload, once framed
// with its trailer, would exceed MaxDatagramSize.
var ErrDataTooLarge = errors.New("udpcon: payload exceeds datagram size budget")

// ErrWorkerBusy is returned when the worker's outgoing queue is full. The
// caller can retry on a later Update/Send; nothing was transmitted.
var ErrWorkerBusy = errors.New("udpcon: worker outgoing queue is full")

// ErrPeerStopped is returned by Connect and Send on a Peer after Stop has
// been called.
var ErrPeerStopped = errors.New("udpcon: peer has been stopped")
