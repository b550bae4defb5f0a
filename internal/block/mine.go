package block

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dyst0rti0n/ledgernode/internal/transaction"
)

// numWorkers mirrors the teacher's proof_of_work.go: one goroutine per CPU,
// each claiming its own partition of the nonce space.
func numWorkers() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}

// mineWithWorkers partitions the nonce space across workerCount goroutines.
// Each worker scans nonces `workerIndex, workerIndex+workerCount, ...`,
// recomputing difficulty and the candidate hash on every attempt, exactly
// as spec.md section 4.1's mining loop describes. The first worker to find
// an accepting nonce wins; the rest are signalled to stop and their
// in-flight work is discarded. No cancellation ordering is observable
// beyond that.
func mineWithWorkers(data []*transaction.Transaction, last *Block, workerCount int) *Block {
	var found int32
	result := make(chan *Block, workerCount)
	var wg sync.WaitGroup

	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func(start uint32) {
			defer wg.Done()
			for nonce := start; atomic.LoadInt32(&found) == 0; nonce += uint32(workerCount) {
				now := time.Now().UnixMilli()
				difficulty := AdjustDifficulty(last, now)
				hash := ComputeHash(data, last.Hash, now, nonce, difficulty)
				if IsValidBitHash(hash, difficulty) {
					if atomic.CompareAndSwapInt32(&found, 0, 1) {
						result <- &Block{
							Timestamp:  now,
							LastHash:   append([]byte(nil), last.Hash...),
							Hash:       hash,
							Data:       data,
							Nonce:      nonce,
							Difficulty: difficulty,
						}
					}
					return
				}
			}
		}(uint32(w))
	}

	go func() {
		wg.Wait()
		close(result)
	}()

	return <-result
}
