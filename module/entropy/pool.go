package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/sha3"
)

// Pool is a small hash based entropy pool. The pool state is mixed with fresh operating system
// randomness on every Reseed, which the node schedules periodically.
type Pool struct {
	mu      sync.Mutex
	state   [64]byte
	counter uint64
	reseeds uint64
}

// NewPool creates a pool seeded from the operating system.
func NewPool() (*Pool, error) {
	p := &Pool{}
	if err := p.Reseed(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reseed mixes fresh operating system randomness and the current time into the pool.
func (p *Pool) Reseed() error {
	var fresh [32]byte
	if _, err := rand.Read(fresh[:]); err != nil {
		return fmt.Errorf("could not read system randomness: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var stamp [8]byte
	binary.BigEndian.PutUint64(stamp[:], uint64(time.Now().UnixNano()))

	hasher := sha3.New512()
	_, _ = hasher.Write(p.state[:])
	_, _ = hasher.Write(fresh[:])
	_, _ = hasher.Write(stamp[:])
	copy(p.state[:], hasher.Sum(nil))
	p.reseeds++
	return nil
}

// Read fills buf with bytes derived from the pool. It never fails.
func (p *Pool) Read(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for n < len(buf) {
		p.counter++
		var ctr [8]byte
		binary.BigEndian.PutUint64(ctr[:], p.counter)
		block := sha3.Sum256(append(p.state[:], ctr[:]...))
		n += copy(buf[n:], block[:])
	}
	return n, nil
}

// Reseeds returns how often the pool has been reseeded.
func (p *Pool) Reseeds() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reseeds
}
