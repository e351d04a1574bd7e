package cmn

import "errors"

// Sentinel errors naming the "silently ignored" category of spec.md §7, for
// use with errors.Is, never string matching. No function in this module
// returns either of them.
var (
	// ErrStaleAck names an inbound ack that references a message id older
	// than anything still outstanding; normal under loss/retransmit.
	// writer.AckSentState reports that case by returning nil.
	ErrStaleAck = errors.New("zonerep: stale or already-superseded ack")

	// ErrUnknownNetworkID names a delta that arrives for a network id the
	// receiver has no shared object for. The receiver creates the shared
	// object on first observation of a network id instead.
	ErrUnknownNetworkID = errors.New("zonerep: update for unknown network id")
)
