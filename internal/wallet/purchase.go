package wallet

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"
)

// targetTickOffset schedules the transfer far enough ahead that the network
// reaches the tick after propagation.
const targetTickOffset = 10

// PaymentRecorder reports a broadcast transaction to the score backend.
type PaymentRecorder interface {
	RecordPayment(ctx context.Context, walletid, txID, paid, product, detail string) error
}

// PaymentRecorderFunc adapts a function to the PaymentRecorder interface.
type PaymentRecorderFunc func(ctx context.Context, walletid, txID, paid, product, detail string) error

func (f PaymentRecorderFunc) RecordPayment(ctx context.Context, walletid, txID, paid, product, detail string) error {
	return f(ctx, walletid, txID, paid, product, detail)
}

// PurchaseRequest describes one transfer plus its backend bookkeeping.
type PurchaseRequest struct {
	From    string
	To      string
	Amount  int64
	Product string
	Detail  string
}

// PurchaseResult reports a completed purchase.
type PurchaseResult struct {
	TransactionID    string
	TargetTick       uint32
	PeersBroadcasted int
}

// Flow runs purchases end to end: balance gate, tick targeting, signing,
// broadcast, and payment recording.
type Flow struct {
	client   *Client
	signer   Signer
	recorder PaymentRecorder

	mu         sync.Mutex
	lastTick   uint32
	lastTickAt time.Time
}

// NewFlow assembles a purchase flow.
func NewFlow(client *Client, signer Signer, recorder PaymentRecorder) *Flow {
	return &Flow{client: client, signer: signer, recorder: recorder}
}

// Purchase executes one transfer. The balance check runs before anything is
// signed: an underfunded wallet fails with InsufficientBalanceError and no
// funds move. A broadcast that the backend then fails to record returns
// RecordingError carrying the transaction id, so the caller can replay the
// recording without paying twice.
func (f *Flow) Purchase(ctx context.Context, req PurchaseRequest) (*PurchaseResult, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("wallet: purchase amount must be positive")
	}

	bal, err := f.client.Balance(ctx, req.From)
	if err != nil {
		return nil, fmt.Errorf("wallet: balance check: %w", err)
	}
	available, err := strconv.ParseInt(bal.Balance, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("wallet: unparseable balance %q: %w", bal.Balance, err)
	}
	if available < req.Amount {
		return nil, &InsufficientBalanceError{Available: available, Required: req.Amount}
	}

	targetTick, err := f.targetTick(ctx)
	if err != nil {
		return nil, err
	}

	signed, err := f.signer.Sign(ctx, UnsignedTx{
		From:       req.From,
		To:         req.To,
		Amount:     req.Amount,
		TargetTick: targetTick,
	})
	if err != nil {
		return nil, fmt.Errorf("wallet: sign: %w", err)
	}

	bcast, err := f.client.Broadcast(ctx, signed)
	if err != nil {
		return nil, fmt.Errorf("wallet: broadcast: %w", err)
	}
	log.Printf("tx_broadcast id=%s tick=%d peers=%d amount=%d product=%s",
		bcast.TransactionID, targetTick, bcast.PeersBroadcasted, req.Amount, req.Product)

	paid := strconv.FormatInt(req.Amount, 10)
	if err := f.recorder.RecordPayment(ctx, req.From, bcast.TransactionID, paid, req.Product, req.Detail); err != nil {
		return nil, &RecordingError{TransactionID: bcast.TransactionID, Err: err}
	}

	return &PurchaseResult{
		TransactionID:    bcast.TransactionID,
		TargetTick:       targetTick,
		PeersBroadcasted: bcast.PeersBroadcasted,
	}, nil
}

// targetTick resolves the scheduling tick. A failed or zero tick fetch
// falls back to the last good tick advanced by wall-clock seconds, since
// the network ticks roughly once per second.
func (f *Flow) targetTick(ctx context.Context) (uint32, error) {
	now := f.client.config.Now()

	info, err := f.client.TickInfo(ctx)
	if err == nil && info.Tick > 0 {
		f.mu.Lock()
		f.lastTick = info.Tick
		f.lastTickAt = now
		f.mu.Unlock()
		return info.Tick + targetTickOffset, nil
	}

	f.mu.Lock()
	lastTick, lastTickAt := f.lastTick, f.lastTickAt
	f.mu.Unlock()
	if lastTick == 0 {
		if err != nil {
			return 0, fmt.Errorf("wallet: tick info: %w", err)
		}
		return 0, fmt.Errorf("wallet: gateway reported tick 0")
	}

	elapsed := uint32(now.Sub(lastTickAt) / time.Second)
	estimate := lastTick + elapsed + targetTickOffset
	log.Printf("tick_fallback last=%d elapsed_s=%d estimate=%d", lastTick, elapsed, estimate)
	return estimate, nil
}
