package types

import (
	"time"

	"github.com/enfty-lab/gateway/internal/entity"
	"github.com/fatih/structs"
	"github.com/mitchellh/mapstructure"
)

// UnsetNonce means the nonce is computed by the sequencer.
const UnsetNonce int64 = -1

// Job is the message a request publishes for the worker. Args is operation specific and is decoded
// into one of the *Args structs below.
type Job struct {
	ID         int64                            `json:"id"`
	Operation  entity.BlockchainTransactionType `json:"operation"`
	GatewayID  string                           `json:"gateway_id"`
	Args       map[string]any                   `json:"args"`
	EnqueuedAt time.Time                        `json:"enqueued_at"`
}

func NewJob(id int64, op entity.BlockchainTransactionType, gatewayID string, args any) *Job {
	return &Job{
		ID:         id,
		Operation:  op,
		GatewayID:  gatewayID,
		Args:       structs.Map(args),
		EnqueuedAt: time.Now(),
	}
}

// DecodeArgs fills out, a pointer to one of the *Args structs, from the job arguments.
func (j *Job) DecodeArgs(out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}

	return decoder.Decode(j.Args)
}

type MintArgs struct {
	Recipient string `mapstructure:"recipient" structs:"recipient"`
	TokenURI  string `mapstructure:"token_uri" structs:"token_uri"`
	Nonce     int64  `mapstructure:"nonce" structs:"nonce"`
}

type TransferArgs struct {
	FromAddress  string `mapstructure:"from_address" structs:"from_address"`
	ToAddress    string `mapstructure:"to_address" structs:"to_address"`
	TokenID      string `mapstructure:"token_id" structs:"token_id"`
	EncryptedKey string `mapstructure:"encrypted_key" structs:"encrypted_key"`
	Vector       string `mapstructure:"vector" structs:"vector"`
	Nonce        int64  `mapstructure:"nonce" structs:"nonce"`
}

type BurnArgs struct {
	FromAddress  string `mapstructure:"from_address" structs:"from_address"`
	TokenID      string `mapstructure:"token_id" structs:"token_id"`
	EncryptedKey string `mapstructure:"encrypted_key" structs:"encrypted_key"`
	Vector       string `mapstructure:"vector" structs:"vector"`
	Nonce        int64  `mapstructure:"nonce" structs:"nonce"`
}
