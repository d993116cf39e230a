package wallet

import "context"

// TickInfoResult is the network's current tick position.
type TickInfoResult struct {
	Tick     uint32 `json:"tick"`
	Epoch    uint16 `json:"epoch"`
	Duration uint32 `json:"duration"`
}

// BalanceResult is a wallet's balance snapshot. Amounts arrive as decimal
// strings on the wire.
type BalanceResult struct {
	ID                 string `json:"id"`
	Balance            string `json:"balance"`
	ValidForTick       uint32 `json:"validForTick"`
	IncomingAmount     string `json:"incomingAmount"`
	OutgoingAmount     string `json:"outgoingAmount"`
	NumberOfIncoming   uint32 `json:"numberOfIncomingTransfers"`
	NumberOfOutgoing   uint32 `json:"numberOfOutgoingTransfers"`
	LatestIncomingTick uint32 `json:"latestIncomingTransferTick"`
	LatestOutgoingTick uint32 `json:"latestOutgoingTransferTick"`
}

// BroadcastResult reports a submitted transaction.
type BroadcastResult struct {
	PeersBroadcasted   int    `json:"peersBroadcasted"`
	EncodedTransaction string `json:"encodedTransaction"`
	TransactionID      string `json:"transactionId"`
}

// UnsignedTx is a transfer waiting for a signature.
type UnsignedTx struct {
	From       string
	To         string
	Amount     int64
	TargetTick uint32
}

// Signer produces a broadcast-ready signed transaction. The concrete
// implementation wraps the vendor signing SDK and stays outside this
// package.
type Signer interface {
	Sign(ctx context.Context, tx UnsignedTx) ([]byte, error)
}

// SignerFunc adapts a function to the Signer interface.
type SignerFunc func(ctx context.Context, tx UnsignedTx) ([]byte, error)

func (f SignerFunc) Sign(ctx context.Context, tx UnsignedTx) ([]byte, error) {
	return f(ctx, tx)
}

type tickInfoResponse struct {
	TickInfo TickInfoResult `json:"tickInfo"`
}

type balanceResponse struct {
	Balance BalanceResult `json:"balance"`
}

type broadcastRequest struct {
	EncodedTransaction string `json:"encodedTransaction"`
}
