// Package dialect maps each host environment to the request vocabulary the
// wallet speaks there: method names, parameter envelopes and where the real
// result lives in the response.
package dialect

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/near-wallet-bridge/internal/near-wallet-bridge/hostenv"
	"github.com/tidwall/gjson"
)

// ErrMalformedResult is returned when a transaction response carries no
// recognisable result.
var ErrMalformedResult = errors.New("malformed transaction result")

var ErrUnknownDialect = errors.New("unknown dialect")

// SignInOptions are only sent by dialects that scope the sign-in to a contract.
type SignInOptions struct {
	ContractID  string
	MethodNames []string
}

// Transaction is the wire form of one transaction: the receiver and its
// already-encoded actions.
type Transaction struct {
	ReceiverID string `json:"receiverId"`
	Actions    any    `json:"actions"`
}

// Outcome is the normalised view of a successful transaction response.
type Outcome struct {
	Hash      string
	OutcomeID string
	Raw       json.RawMessage
}

// Identifier is the transaction hash, falling back to the outcome id.
func (o Outcome) Identifier() string {
	if o.Hash != "" {
		return o.Hash
	}
	return o.OutcomeID
}

type Dialect struct {
	Name        string
	SignIn      string
	SignOut     string
	SignAndSend string

	SignInParams      func(SignInOptions) any
	SignAndSendParams func(Transaction) any

	// ResultPath locates the transaction result inside the response.
	// Empty means the response is the result.
	ResultPath string
}

var Namespaced = Dialect{
	Name:        "namespaced",
	SignIn:      "near:signIn",
	SignOut:     "near:signOut",
	SignAndSend: "near:signAndSendTransactions",
	SignInParams: func(SignInOptions) any {
		return map[string]any{}
	},
	SignAndSendParams: func(tx Transaction) any {
		return map[string]any{"transactions": []Transaction{tx}}
	},
	ResultPath: "transactions.0",
}

var Legacy = Dialect{
	Name:        "legacy",
	SignIn:      "signIn",
	SignOut:     "signOut",
	SignAndSend: "signAndSendTransaction",
	SignInParams: func(o SignInOptions) any {
		methods := o.MethodNames
		if methods == nil {
			methods = []string{}
		}
		return map[string]any{
			"contractId":  o.ContractID,
			"methodNames": methods,
		}
	},
	SignAndSendParams: func(tx Transaction) any {
		return tx
	},
}

// Table selects a dialect per environment.
type Table map[hostenv.Environment]Dialect

// DefaultTable speaks the namespaced vocabulary in every environment. Hosts
// that still expect the legacy methods opt in with WithEmbedded.
func DefaultTable() Table {
	return Table{
		hostenv.StandaloneExtension:   Namespaced,
		hostenv.EmbeddedMessagingHost: Namespaced,
	}
}

// WithEmbedded returns a copy of t that uses d inside an embedded host.
func (t Table) WithEmbedded(d Dialect) Table {
	out := make(Table, len(t)+1)
	for env, v := range t {
		out[env] = v
	}
	out[hostenv.EmbeddedMessagingHost] = d
	return out
}

// ByName looks up a dialect by its Name. Empty means Namespaced.
func ByName(name string) (Dialect, error) {
	switch name {
	case "", Namespaced.Name:
		return Namespaced, nil
	case Legacy.Name:
		return Legacy, nil
	}
	return Dialect{}, errors.Wrapf(ErrUnknownDialect, "%q", name)
}

// For returns the dialect for env, falling back to Namespaced.
func (t Table) For(env hostenv.Environment) Dialect {
	if d, ok := t[env]; ok {
		return d
	}
	return Namespaced
}

// Normalize extracts the transaction result from a raw response.
func (d Dialect) Normalize(raw json.RawMessage) (Outcome, error) {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return Outcome{}, errors.Wrap(ErrMalformedResult, "response is not JSON")
	}

	res := gjson.ParseBytes(raw)
	if d.ResultPath != "" {
		res = res.Get(d.ResultPath)
	}
	if !res.Exists() || !res.IsObject() {
		return Outcome{}, errors.Wrapf(ErrMalformedResult, "no result object at %q", d.ResultPath)
	}

	out := Outcome{
		Hash:      res.Get("transaction.hash").String(),
		OutcomeID: res.Get("transaction_outcome.id").String(),
		Raw:       json.RawMessage(res.Raw),
	}
	if out.Identifier() == "" {
		return Outcome{}, errors.Wrap(ErrMalformedResult, "result has neither transaction hash nor outcome id")
	}
	return out, nil
}

// AccountID reads the signed-in account from a sign-in response.
func AccountID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	for _, path := range []string{"accountId", "account_id", "accounts.0.accountId"} {
		if v := gjson.GetBytes(raw, path); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}
