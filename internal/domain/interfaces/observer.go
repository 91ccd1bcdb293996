package interfaces

import domaintypes "cipherlink/internal/domain/types"

// Observer receives session notifications for the UI layer. Callbacks run on
// the session's receive goroutine and must not block.
type Observer interface {
	// OnStateChanged reports a protocol state transition. err is non-nil
	// when the transition was caused by a failure.
	OnStateChanged(state domaintypes.State, err error)
	OnRosterChanged(peers []domaintypes.Peer)
	OnMessage(peer domaintypes.PeerID, entry domaintypes.Entry, delivery domaintypes.Delivery)
	// OnBusy brackets background key generation; input should be disabled
	// while busy is true.
	OnBusy(busy bool)
}
