// Package block implements the proof-of-work block: its content hash, the
// bit-granular difficulty target, difficulty adjustment, and the mining
// loop. Generalizes the teacher's block.go/proof_of_work.go (byte-prefix
// SHA-256 target, fixed-step difficulty retarget) to the SHA3-256,
// bit-granular target and the exact retarget rule spec.md section 4.1
// requires.
package block

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/Dyst0rti0n/ledgernode/internal/config"
	"github.com/Dyst0rti0n/ledgernode/internal/cryptoutil"
	"github.com/Dyst0rti0n/ledgernode/internal/transaction"
)

// Block is a single link in the chain: a transaction list plus the
// proof-of-work fields that chain it to its predecessor.
type Block struct {
	Timestamp  int64
	LastHash   []byte
	Hash       []byte
	Data       []*transaction.Transaction
	Nonce      uint32
	Difficulty uint32
}

// blockWire is Block's JSON representation: hash fields as hex, matching
// the HTTP API's hex-everywhere convention for byte fields.
type blockWire struct {
	Timestamp  int64                      `json:"timestamp"`
	LastHash   string                     `json:"last_hash"`
	Hash       string                     `json:"hash"`
	Data       []*transaction.Transaction `json:"data"`
	Nonce      uint32                     `json:"nonce"`
	Difficulty uint32                     `json:"difficulty"`
}

// MarshalJSON implements json.Marshaler.
func (b *Block) MarshalJSON() ([]byte, error) {
	return json.Marshal(blockWire{
		Timestamp:  b.Timestamp,
		LastHash:   hex.EncodeToString(b.LastHash),
		Hash:       hex.EncodeToString(b.Hash),
		Data:       b.Data,
		Nonce:      b.Nonce,
		Difficulty: b.Difficulty,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Block) UnmarshalJSON(data []byte) error {
	var wire blockWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	lastHash, err := hex.DecodeString(wire.LastHash)
	if err != nil {
		return err
	}
	hashBytes, err := hex.DecodeString(wire.Hash)
	if err != nil {
		return err
	}
	b.Timestamp = wire.Timestamp
	b.LastHash = lastHash
	b.Hash = hashBytes
	b.Data = wire.Data
	b.Nonce = wire.Nonce
	b.Difficulty = wire.Difficulty
	return nil
}

// Genesis returns the fixed constant block every node constructs
// identically at startup.
func Genesis() *Block {
	return &Block{
		Timestamp:  config.GenesisTimestamp,
		LastHash:   append([]byte(nil), config.GenesisLastHash...),
		Hash:       append([]byte(nil), config.GenesisHash...),
		Data:       []*transaction.Transaction{},
		Nonce:      config.GenesisNonce,
		Difficulty: config.GenesisDifficulty,
	}
}

// dataBytes canonically serializes the block's transaction list for
// hashing: each transaction's canonical signing bytes, concatenated in
// order.
func dataBytes(data []*transaction.Transaction) []byte {
	var out []byte
	for _, tx := range data {
		out = append(out, tx.CanonicalBytes()...)
	}
	return out
}

// ComputeHash implements the hash function from spec.md section 4.1:
// SHA3-256 over data_bytes ‖ ascii(hex(last_hash)) ‖ LE(timestamp) ‖
// LE(nonce) ‖ BE(difficulty).
func ComputeHash(data []*transaction.Transaction, lastHash []byte, timestamp int64, nonce, difficulty uint32) []byte {
	buf := dataBytes(data)
	buf = append(buf, []byte(hex.EncodeToString(lastHash))...)

	var tsBuf [8]byte
	binary.LittleEndian.PutUint64(tsBuf[:], uint64(timestamp))
	buf = append(buf, tsBuf[:]...)

	var nonceBuf [4]byte
	binary.LittleEndian.PutUint32(nonceBuf[:], nonce)
	buf = append(buf, nonceBuf[:]...)

	var diffBuf [4]byte
	binary.BigEndian.PutUint32(diffBuf[:], difficulty)
	buf = append(buf, diffBuf[:]...)

	return cryptoutil.Hash256(buf)
}

// RecomputeHash recomputes b's hash from its own fields.
func (b *Block) RecomputeHash() []byte {
	return ComputeHash(b.Data, b.LastHash, b.Timestamp, b.Nonce, b.Difficulty)
}

// IsValidBitHash reports whether hash has at least `difficulty` leading
// zero bits. Bit-granular, not byte-granular: spec.md section 4.1.
func IsValidBitHash(hash []byte, difficulty uint32) bool {
	full := difficulty / 8
	bits := difficulty % 8

	if int(full) > len(hash) {
		return false
	}
	for i := uint32(0); i < full; i++ {
		if hash[i] != 0 {
			return false
		}
	}
	if bits > 0 {
		if int(full) >= len(hash) {
			return false
		}
		mask := byte(0xFF << (8 - bits))
		if hash[full]&mask != 0 {
			return false
		}
	}
	return true
}

// AdjustDifficulty implements spec.md section 4.1's retarget rule.
func AdjustDifficulty(last *Block, nowMillis int64) uint32 {
	delta := nowMillis - last.Timestamp
	if delta < 0 {
		delta = -delta
	}
	elapsed := time.Duration(delta) * time.Millisecond

	difficulty := last.Difficulty
	switch {
	case elapsed > config.MineRate+config.MineRateDelta:
		if difficulty > 1 {
			difficulty--
		}
	case elapsed < config.MineRate-config.MineRateDelta:
		difficulty++
	}
	if difficulty < 1 {
		difficulty = 1
	}
	return difficulty
}

// Mine runs the proof-of-work loop over data, chained to last, and returns
// the accepted block. Mining is pure CPU work: callers that need the event
// loop to stay responsive must run Mine on its own goroutine and rendezvous
// the result, never call it while holding a shared lock.
func Mine(data []*transaction.Transaction, last *Block) *Block {
	return mineWithWorkers(data, last, numWorkers())
}
