package event

import (
	"encoding/json"
	"fmt"
)

// AccountOpenedPayload captures the payload for account.opened events.
type AccountOpenedPayload struct {
	HolderName string `json:"holder_name"`
	Currency   string `json:"currency,omitempty"`
}

// FundsDepositedPayload captures the payload for funds.deposited events.
// Amount is in minor currency units and always positive.
type FundsDepositedPayload struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// FundsWithdrawnPayload captures the payload for funds.withdrawn events.
// Amount is in minor currency units and always positive.
type FundsWithdrawnPayload struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// AccountClosedPayload captures the payload for account.closed events.
type AccountClosedPayload struct {
	Reason string `json:"reason,omitempty"`
}

// MarshalPayload encodes a payload struct for embedding in an event.
func MarshalPayload(payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	return data, nil
}

// UnmarshalPayload decodes an event payload into target, rejecting unknown
// fields so payload schema drift surfaces as an error instead of silence.
func UnmarshalPayload(evt Event, target any) error {
	if len(evt.PayloadJSON) == 0 {
		return fmt.Errorf("event %s has no payload", evt.Type)
	}
	if err := json.Unmarshal(evt.PayloadJSON, target); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", evt.Type, err)
	}
	return nil
}
