package transaction

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/Dyst0rti0n/ledgernode/internal/config"
)

// Input is the TransactionInput of spec.md section 3/4.3: who is paying,
// how much they claimed to have at creation time, and their signature over
// the output map.
type Input struct {
	Timestamp     int64
	Amount        uint32
	SenderAddress []byte
	Signature     []byte
}

// inputWire is Input's JSON representation: address and signature as hex,
// matching the rest of this package's hex-everywhere convention for byte
// fields exposed over the HTTP API.
type inputWire struct {
	Timestamp     int64  `json:"timestamp"`
	Amount        uint32 `json:"amount"`
	SenderAddress string `json:"sender_address"`
	Signature     string `json:"signature"`
}

// MarshalJSON implements json.Marshaler.
func (in Input) MarshalJSON() ([]byte, error) {
	return json.Marshal(inputWire{
		Timestamp:     in.Timestamp,
		Amount:        in.Amount,
		SenderAddress: hex.EncodeToString(in.SenderAddress),
		Signature:     hex.EncodeToString(in.Signature),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (in *Input) UnmarshalJSON(data []byte) error {
	var wire inputWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	sender, err := hex.DecodeString(wire.SenderAddress)
	if err != nil {
		return err
	}
	signature, err := hex.DecodeString(wire.Signature)
	if err != nil {
		return err
	}
	in.Timestamp = wire.Timestamp
	in.Amount = wire.Amount
	in.SenderAddress = sender
	in.Signature = signature
	return nil
}

// IsReward reports whether this is the distinguished reward input, judged
// by the sender address alone: it is true whenever the address equals the
// sentinel. Amount and signature are not examined.
func (in Input) IsReward() bool {
	return string(in.SenderAddress) == string(config.RewardInputAddress)
}

func rewardInput() Input {
	return Input{
		Timestamp:     time.Now().UnixMilli(),
		Amount:        0,
		SenderAddress: append([]byte(nil), config.RewardInputAddress...),
		Signature:     nil,
	}
}
