package machine

import (
	"github.com/ezrec/capencrypt/capability"
)

const (
	SNAPSHOT_LIMIT = 16 // Maximum saved safe states
)

// Snapshot is a saved register file and status.
type Snapshot struct {
	Cap    [CREG_COUNT]capability.Capability
	Mcause uint32
	Xccsr  uint32
}

func (snap *Snapshot) clone() (out Snapshot) {
	out = *snap
	for n := range out.Cap {
		out.Cap[n] = out.Cap[n].Clone()
	}
	return
}

// Snapshots is the stack of saved safe states.
type Snapshots struct {
	Data []Snapshot
}

func (s *Snapshots) Push(snap Snapshot) {
	s.Data = append(s.Data, snap.clone())
}

func (s *Snapshots) Pop() (snap Snapshot, ok bool) {
	snap, ok = s.Peek()
	if ok {
		s.Data = s.Data[:len(s.Data)-1]
	}
	return
}

func (s *Snapshots) Empty() bool {
	return len(s.Data) == 0
}

func (s *Snapshots) Full() bool {
	return len(s.Data) == SNAPSHOT_LIMIT
}

// Peek returns a copy of the most recent snapshot.
func (s *Snapshots) Peek() (snap Snapshot, ok bool) {
	if s.Empty() {
		return
	}

	return s.Data[len(s.Data)-1].clone(), true
}

func (s *Snapshots) Reset() {
	if len(s.Data) > 0 {
		s.Data = s.Data[:0]
	}
}
