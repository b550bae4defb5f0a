// Package codec implements the deterministic binary wire format of
// spec.md sections 4.2/4.3/4.5/6: length-prefixed little-endian encodings
// for Block, Blockchain, and TransactionPool, built on top of
// Transaction.CanonicalBytes. The same encoding is used for gossip
// payloads and (via Transaction's own canonical bytes) for signing, so
// every node must derive byte-identical output for identical structures.
// Generalizes the teacher's serialisation.go (gob-encoded blockchain
// snapshots) to an explicit, cross-language-stable format, since gob's
// wire format is Go-specific and spec.md requires canonical bytes two
// independently-implemented peers could agree on.
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/Dyst0rti0n/ledgernode/internal/block"
	"github.com/Dyst0rti0n/ledgernode/internal/transaction"
	"github.com/Dyst0rti0n/ledgernode/internal/txid"
)

func putUint32LE(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func putUint64LE(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func readUint32LE(data []byte, offset int) (uint32, int, error) {
	if offset+4 > len(data) {
		return 0, offset, fmt.Errorf("codec: truncated u32 at offset %d", offset)
	}
	return binary.LittleEndian.Uint32(data[offset : offset+4]), offset + 4, nil
}

func readUint64LE(data []byte, offset int) (uint64, int, error) {
	if offset+8 > len(data) {
		return 0, offset, fmt.Errorf("codec: truncated u64 at offset %d", offset)
	}
	return binary.LittleEndian.Uint64(data[offset : offset+8]), offset + 8, nil
}

func readBytes(data []byte, offset int, n uint32) ([]byte, int, error) {
	end := offset + int(n)
	if end < offset || end > len(data) {
		return nil, offset, fmt.Errorf("codec: truncated %d-byte field at offset %d", n, offset)
	}
	return data[offset:end], end, nil
}

// EncodeTransaction returns t's canonical wire bytes.
func EncodeTransaction(t *transaction.Transaction) []byte {
	return t.CanonicalBytes()
}

// DecodeTransaction parses the exact canonical byte encoding of a single
// Transaction (spec.md section 4.3).
func DecodeTransaction(data []byte) (*transaction.Transaction, error) {
	if len(data) < txid.Size {
		return nil, fmt.Errorf("codec: transaction bytes too short")
	}
	var id txid.ID
	copy(id[:], data[:txid.Size])
	offset := txid.Size

	amount, offset, err := readUint32LE(data, offset)
	if err != nil {
		return nil, err
	}

	inputLen, offset, err := readUint32LE(data, offset)
	if err != nil {
		return nil, err
	}
	inputBytes, offset, err := readBytes(data, offset, inputLen)
	if err != nil {
		return nil, err
	}
	input, err := decodeInput(inputBytes)
	if err != nil {
		return nil, fmt.Errorf("codec: decoding transaction input: %w", err)
	}

	outputLen, offset, err := readUint32LE(data, offset)
	if err != nil {
		return nil, err
	}
	outputBytes, _, err := readBytes(data, offset, outputLen)
	if err != nil {
		return nil, err
	}
	outputMap, err := decodeOutputMap(outputBytes)
	if err != nil {
		return nil, fmt.Errorf("codec: decoding transaction output map: %w", err)
	}

	return &transaction.Transaction{
		ID:        id,
		Amount:    amount,
		Input:     input,
		OutputMap: outputMap,
	}, nil
}

func decodeInput(data []byte) (transaction.Input, error) {
	ts, offset, err := readUint64LE(data, 0)
	if err != nil {
		return transaction.Input{}, err
	}
	amount, offset, err := readUint32LE(data, offset)
	if err != nil {
		return transaction.Input{}, err
	}
	senderLen, offset, err := readUint32LE(data, offset)
	if err != nil {
		return transaction.Input{}, err
	}
	sender, offset, err := readBytes(data, offset, senderLen)
	if err != nil {
		return transaction.Input{}, err
	}
	sigLen, offset, err := readUint32LE(data, offset)
	if err != nil {
		return transaction.Input{}, err
	}
	signature, _, err := readBytes(data, offset, sigLen)
	if err != nil {
		return transaction.Input{}, err
	}

	return transaction.Input{
		Timestamp:     int64(ts),
		Amount:        amount,
		SenderAddress: append([]byte(nil), sender...),
		Signature:     append([]byte(nil), signature...),
	}, nil
}

func decodeOutputMap(data []byte) (transaction.OutputMap, error) {
	out := transaction.OutputMap{}
	offset := 0
	for offset < len(data) {
		keyLen, next, err := readUint32LE(data, offset)
		if err != nil {
			return nil, err
		}
		offset = next
		key, next, err := readBytes(data, offset, keyLen)
		if err != nil {
			return nil, err
		}
		offset = next
		amount, next, err := readUint32LE(data, offset)
		if err != nil {
			return nil, err
		}
		offset = next
		out[string(key)] = amount
	}
	return out, nil
}

// EncodeBlock serializes b as:
// timestamp_le_i64(8) ‖ lasthash_len_le_u32(4) ‖ lasthash ‖
// hash_len_le_u32(4) ‖ hash ‖ nonce_le_u32(4) ‖ difficulty_le_u32(4) ‖
// txn_count_le_u32(4) ‖ (txn_len_le_u32(4) ‖ txn_bytes)*
func EncodeBlock(b *block.Block) []byte {
	var out []byte
	out = putUint64LE(out, uint64(b.Timestamp))
	out = putUint32LE(out, uint32(len(b.LastHash)))
	out = append(out, b.LastHash...)
	out = putUint32LE(out, uint32(len(b.Hash)))
	out = append(out, b.Hash...)
	out = putUint32LE(out, b.Nonce)
	out = putUint32LE(out, b.Difficulty)
	out = putUint32LE(out, uint32(len(b.Data)))
	for _, t := range b.Data {
		tb := EncodeTransaction(t)
		out = putUint32LE(out, uint32(len(tb)))
		out = append(out, tb...)
	}
	return out
}

// DecodeBlock parses the exact byte encoding produced by EncodeBlock and
// returns the number of bytes consumed, so callers assembling a
// Blockchain can walk a concatenated buffer.
func DecodeBlock(data []byte) (*block.Block, int, error) {
	ts, offset, err := readUint64LE(data, 0)
	if err != nil {
		return nil, 0, err
	}
	lastHashLen, offset, err := readUint32LE(data, offset)
	if err != nil {
		return nil, 0, err
	}
	lastHash, offset, err := readBytes(data, offset, lastHashLen)
	if err != nil {
		return nil, 0, err
	}
	hashLen, offset, err := readUint32LE(data, offset)
	if err != nil {
		return nil, 0, err
	}
	hash, offset, err := readBytes(data, offset, hashLen)
	if err != nil {
		return nil, 0, err
	}
	nonce, offset, err := readUint32LE(data, offset)
	if err != nil {
		return nil, 0, err
	}
	difficulty, offset, err := readUint32LE(data, offset)
	if err != nil {
		return nil, 0, err
	}
	count, offset, err := readUint32LE(data, offset)
	if err != nil {
		return nil, 0, err
	}

	txns := make([]*transaction.Transaction, 0, count)
	for i := uint32(0); i < count; i++ {
		txLen, next, err := readUint32LE(data, offset)
		if err != nil {
			return nil, 0, err
		}
		offset = next
		txBytes, next, err := readBytes(data, offset, txLen)
		if err != nil {
			return nil, 0, err
		}
		offset = next
		tx, err := DecodeTransaction(txBytes)
		if err != nil {
			return nil, 0, fmt.Errorf("codec: decoding block transaction %d: %w", i, err)
		}
		txns = append(txns, tx)
	}

	return &block.Block{
		Timestamp:  int64(ts),
		LastHash:   append([]byte(nil), lastHash...),
		Hash:       append([]byte(nil), hash...),
		Data:       txns,
		Nonce:      nonce,
		Difficulty: difficulty,
	}, offset, nil
}

// EncodeBlockchain serializes a chain as block_count_le_u32(4) followed by
// (block_len_le_u32(4) ‖ block_bytes) for every block in order.
func EncodeBlockchain(chain []*block.Block) []byte {
	var out []byte
	out = putUint32LE(out, uint32(len(chain)))
	for _, b := range chain {
		bb := EncodeBlock(b)
		out = putUint32LE(out, uint32(len(bb)))
		out = append(out, bb...)
	}
	return out
}

// DecodeBlockchain parses the exact byte encoding produced by
// EncodeBlockchain.
func DecodeBlockchain(data []byte) ([]*block.Block, error) {
	count, offset, err := readUint32LE(data, 0)
	if err != nil {
		return nil, err
	}
	chain := make([]*block.Block, 0, count)
	for i := uint32(0); i < count; i++ {
		blockLen, next, err := readUint32LE(data, offset)
		if err != nil {
			return nil, err
		}
		offset = next
		blockBytes, next, err := readBytes(data, offset, blockLen)
		if err != nil {
			return nil, err
		}
		offset = next
		b, _, err := DecodeBlock(blockBytes)
		if err != nil {
			return nil, fmt.Errorf("codec: decoding chain block %d: %w", i, err)
		}
		chain = append(chain, b)
	}
	return chain, nil
}

// EncodePool serializes a transaction pool snapshot as
// txn_count_le_u32(4) followed by (txn_len_le_u32(4) ‖ txn_bytes) per
// entry, entries ordered by ascending id bytes. Keys are not encoded:
// every Transaction carries its own id.
func EncodePool(txns map[txid.ID]*transaction.Transaction) []byte {
	ids := make([]txid.ID, 0, len(txns))
	for id := range txns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })

	var out []byte
	out = putUint32LE(out, uint32(len(txns)))
	for _, id := range ids {
		tb := EncodeTransaction(txns[id])
		out = putUint32LE(out, uint32(len(tb)))
		out = append(out, tb...)
	}
	return out
}

// DecodePool parses the exact byte encoding produced by EncodePool.
func DecodePool(data []byte) (map[txid.ID]*transaction.Transaction, error) {
	count, offset, err := readUint32LE(data, 0)
	if err != nil {
		return nil, err
	}
	out := make(map[txid.ID]*transaction.Transaction, count)
	for i := uint32(0); i < count; i++ {
		txLen, next, err := readUint32LE(data, offset)
		if err != nil {
			return nil, err
		}
		offset = next
		txBytes, next, err := readBytes(data, offset, txLen)
		if err != nil {
			return nil, err
		}
		offset = next
		tx, err := DecodeTransaction(txBytes)
		if err != nil {
			return nil, fmt.Errorf("codec: decoding pool transaction %d: %w", i, err)
		}
		out[tx.ID] = tx
	}
	return out, nil
}
