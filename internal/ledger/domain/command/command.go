// Package command defines the command envelope for the account ledger.
//
// Commands are requests to change one account's state. Unlike events they
// may be rejected and produce nothing; an appended event is a fact of
// history and cannot be rejected after the fact.
package command

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrAccountIDRequired indicates a missing account id.
	ErrAccountIDRequired = errors.New("account id is required")
	// ErrTypeRequired indicates a missing command type.
	ErrTypeRequired = errors.New("command type is required")
	// ErrPayloadInvalid indicates malformed payload JSON.
	ErrPayloadInvalid = errors.New("payload json must be valid")
)

// Type identifies the command type string.
type Type string

const (
	// TypeOpenAccount requests establishing the account identity.
	TypeOpenAccount Type = "account.open"
	// TypeDeposit requests adding funds to an account.
	TypeDeposit Type = "funds.deposit"
	// TypeWithdraw requests removing funds from an account.
	TypeWithdraw Type = "funds.withdraw"
	// TypeCloseAccount requests closing an account.
	TypeCloseAccount Type = "account.close"
)

// Command captures the canonical command envelope.
type Command struct {
	AccountID   string
	Type        Type
	RequestID   string
	PayloadJSON []byte
}

// OpenAccountPayload carries data for account.open commands.
type OpenAccountPayload struct {
	HolderName string `json:"holder_name"`
	Currency   string `json:"currency,omitempty"`
}

// DepositPayload carries data for funds.deposit commands.
type DepositPayload struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency,omitempty"`
}

// WithdrawPayload carries data for funds.withdraw commands.
type WithdrawPayload struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency,omitempty"`
}

// CloseAccountPayload carries data for account.close commands.
type CloseAccountPayload struct {
	Reason string `json:"reason,omitempty"`
}

// Validate normalizes and checks the command envelope. It does not evaluate
// business preconditions; those belong to the decider.
func (c Command) Validate() (Command, error) {
	c.AccountID = strings.TrimSpace(c.AccountID)
	if c.AccountID == "" {
		return Command{}, ErrAccountIDRequired
	}
	c.Type = Type(strings.TrimSpace(string(c.Type)))
	if c.Type == "" {
		return Command{}, ErrTypeRequired
	}
	if len(c.PayloadJSON) > 0 && !json.Valid(c.PayloadJSON) {
		return Command{}, ErrPayloadInvalid
	}
	return c, nil
}

// New builds a command with a marshaled payload.
func New(accountID string, commandType Type, payload any) (Command, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Command{}, err
	}
	return Command{AccountID: accountID, Type: commandType, PayloadJSON: data}, nil
}
