package transaction

import (
	"encoding/binary"
	"encoding/hex"
	"sort"
)

// OutputMap maps a recipient's public key bytes (hex-encoded, so the type
// can be a plain Go map) to the amount they are owed by this transaction.
// spec.md section 9 flags the source's HashMap/BTreeMap inconsistency and
// specifies an ordered representation is required for cross-node signature
// reproducibility; CanonicalBytes below sorts keys explicitly rather than
// relying on map iteration order or a BTreeMap-shaped type.
type OutputMap map[string]uint32

func addressKey(address []byte) string {
	return hex.EncodeToString(address)
}

// Set assigns amount to address, overwriting any prior entry.
func (m OutputMap) Set(address []byte, amount uint32) {
	m[addressKey(address)] = amount
}

// Add increments address's entry by amount, inserting it if absent.
func (m OutputMap) Add(address []byte, amount uint32) {
	m[addressKey(address)] += amount
}

// Get returns the amount owed to address and whether an entry exists.
func (m OutputMap) Get(address []byte) (uint32, bool) {
	v, ok := m[addressKey(address)]
	return v, ok
}

// Sum totals every entry's amount.
func (m OutputMap) Sum() uint32 {
	var total uint32
	for _, v := range m {
		total += v
	}
	return total
}

// CanonicalBytes produces a deterministic byte encoding of the map: keys
// sorted ascending, each entry as key_len_le_u32 ‖ key_bytes ‖ amount_le_u32.
// Every node must derive the identical bytes for the identical map so that
// a signature produced on one node verifies on every other.
func (m OutputMap) CanonicalBytes() []byte {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []byte
	for _, k := range keys {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(k)))
		out = append(out, lenBuf[:]...)
		out = append(out, []byte(k)...)

		var amtBuf [4]byte
		binary.LittleEndian.PutUint32(amtBuf[:], m[k])
		out = append(out, amtBuf[:]...)
	}
	return out
}
