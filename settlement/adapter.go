package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cashdesk/service"

	log "github.com/sirupsen/logrus"
)

// Outcome values carried on bet-outcome events
const (
	OutcomeWin  = "win"
	OutcomeLose = "lose"
)

// BetOutcomeEvent is the wire format of a settled bet as published by the
// betting engine.
type BetOutcomeEvent struct {
	PlayerID     int64  `json:"playerId"`
	StakeAmount  int64  `json:"stakeAmount"`
	Outcome      string `json:"outcome"`
	PayoutAmount int64  `json:"payoutAmount"`
	BetRef       string `json:"betRef"`
}

// malformedEventError marks events that can never be processed; the consumer
// skips them instead of retrying forever.
type malformedEventError struct {
	reason string
}

func (e *malformedEventError) Error() string {
	return "malformed bet outcome event: " + e.reason
}

// IsMalformed reports whether err marks an unprocessable event
func IsMalformed(err error) bool {
	var me *malformedEventError
	return errors.As(err, &me)
}

// Adapter translates bet-outcome events into wallet settlements
type Adapter struct {
	wallet service.WalletService
}

// NewAdapter creates a new settlement adapter
func NewAdapter(wallet service.WalletService) *Adapter {
	return &Adapter{wallet: wallet}
}

// Handle decodes and settles one bet-outcome event. Settlement is idempotent
// per bet ref, so redelivered events are harmless.
func (a *Adapter) Handle(ctx context.Context, payload []byte) error {
	var event BetOutcomeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return &malformedEventError{reason: err.Error()}
	}

	if event.BetRef == "" {
		return &malformedEventError{reason: "missing betRef"}
	}
	if event.PlayerID <= 0 {
		return &malformedEventError{reason: "missing playerId"}
	}
	if event.StakeAmount <= 0 {
		return &malformedEventError{reason: "stakeAmount must be positive"}
	}

	payout := event.PayoutAmount
	switch event.Outcome {
	case OutcomeWin:
		if payout <= 0 {
			return &malformedEventError{reason: "winning outcome without payout"}
		}
	case OutcomeLose:
		payout = 0
	default:
		return &malformedEventError{reason: fmt.Sprintf("unknown outcome %q", event.Outcome)}
	}

	settlement, err := a.wallet.SettleBet(ctx, service.SettleBetRequest{
		PlayerID:     event.PlayerID,
		StakeAmount:  event.StakeAmount,
		PayoutAmount: payout,
		BetRef:       event.BetRef,
	})
	if err != nil {
		return fmt.Errorf("failed to settle bet %s: %w", event.BetRef, err)
	}

	log.WithFields(log.Fields{
		"betRef":    settlement.BetRef,
		"playerId":  event.PlayerID,
		"outcome":   event.Outcome,
		"stake":     event.StakeAmount,
		"payout":    payout,
		"duplicate": settlement.StakeReceipt.Duplicate,
	}).Info("Settled bet outcome")

	return nil
}
