package wallet

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
)

type ActionType string

const ActionFunctionCall ActionType = "FunctionCall"

type FunctionCall struct {
	MethodName string         `json:"methodName"`
	Args       map[string]any `json:"args"`
	Gas        string         `json:"gas"`
	Deposit    string         `json:"deposit"`
}

// Action is one step of a transaction. Only function calls are supported.
type Action struct {
	Type         ActionType
	FunctionCall *FunctionCall
}

type actionWire struct {
	Type   ActionType      `json:"type"`
	Params json.RawMessage `json:"params"`
}

func NewFunctionCall(method string, args map[string]any, gas, deposit string) Action {
	return Action{
		Type: ActionFunctionCall,
		FunctionCall: &FunctionCall{
			MethodName: method,
			Args:       args,
			Gas:        gas,
			Deposit:    deposit,
		},
	}
}

func (a Action) MarshalJSON() ([]byte, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	params, err := json.Marshal(a.FunctionCall)
	if err != nil {
		return nil, err
	}
	return json.Marshal(actionWire{Type: a.Type, Params: params})
}

func (a *Action) UnmarshalJSON(b []byte) error {
	var w actionWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.Type {
	case ActionFunctionCall:
		var fc FunctionCall
		if len(w.Params) == 0 {
			return errors.New("FunctionCall action is missing params")
		}
		if err := json.Unmarshal(w.Params, &fc); err != nil {
			return errors.Wrap(err, "FunctionCall params")
		}
		*a = Action{Type: ActionFunctionCall, FunctionCall: &fc}
		return nil
	default:
		return errors.Newf("unsupported action type %q", w.Type)
	}
}

func (a Action) validate() error {
	if a.Type != ActionFunctionCall {
		return errors.Wrapf(ErrInvalidTransaction, "unsupported action type %q", a.Type)
	}
	if a.FunctionCall == nil || strings.TrimSpace(a.FunctionCall.MethodName) == "" {
		return errors.Wrap(ErrInvalidTransaction, "function call requires a method name")
	}
	return nil
}

// TransactionRequest is one transaction addressed to a single receiver.
type TransactionRequest struct {
	ReceiverID string   `json:"receiverId"`
	Actions    []Action `json:"actions"`
}

func (r TransactionRequest) Validate() error {
	if strings.TrimSpace(r.ReceiverID) == "" {
		return errors.Wrap(ErrInvalidTransaction, "receiver id is required")
	}
	if len(r.Actions) == 0 {
		return errors.Wrap(ErrInvalidTransaction, "at least one action is required")
	}
	for i, a := range r.Actions {
		if err := a.validate(); err != nil {
			return errors.Wrapf(err, "action %d", i)
		}
	}
	return nil
}

// TransactionResult reports the outcome of a sign-and-send request.
// Success implies TransactionHash is set.
type TransactionResult struct {
	Success         bool            `json:"success"`
	TransactionHash string          `json:"transactionHash,omitempty"`
	OutcomeID       string          `json:"outcomeId,omitempty"`
	Raw             json.RawMessage `json:"raw,omitempty"`
	Error           string          `json:"error,omitempty"`
	Err             error           `json:"-"`
}

func failedResult(err error, message string) TransactionResult {
	if message == "" {
		message = err.Error()
	}
	return TransactionResult{Success: false, Error: message, Err: err}
}
