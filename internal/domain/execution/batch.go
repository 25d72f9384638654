package execution

import "github.com/google/uuid"

// ResultBatch collects the records of one batch run keyed by command text.
// Records keep the order their commands were dispatched in. A record added
// for a command that is already present replaces the earlier record in place.
//
// A ResultBatch is owned by the executor that builds it and is not safe for
// concurrent mutation. Once handed off it is only read.
type ResultBatch struct {
	id      uuid.UUID
	order   []string
	records map[string]ExecutionRecord
}

// NewResultBatch creates an empty batch with a fresh identifier.
func NewResultBatch() *ResultBatch {
	return &ResultBatch{
		id:      uuid.New(),
		records: make(map[string]ExecutionRecord),
	}
}

// ID returns the batch identifier.
func (b *ResultBatch) ID() uuid.UUID { return b.id }

// Add stores rec under its command text.
func (b *ResultBatch) Add(rec ExecutionRecord) {
	if _, exists := b.records[rec.Command()]; !exists {
		b.order = append(b.order, rec.Command())
	}
	b.records[rec.Command()] = rec
}

// Get returns the record for command, if any.
func (b *ResultBatch) Get(command string) (ExecutionRecord, bool) {
	rec, ok := b.records[command]
	return rec, ok
}

// Len returns the number of records in the batch.
func (b *ResultBatch) Len() int { return len(b.order) }

// IsEmpty reports whether the batch holds no records.
func (b *ResultBatch) IsEmpty() bool { return len(b.order) == 0 }

// Records returns the records in dispatch order.
func (b *ResultBatch) Records() []ExecutionRecord {
	out := make([]ExecutionRecord, 0, len(b.order))
	for _, cmd := range b.order {
		out = append(out, b.records[cmd])
	}
	return out
}

// ProcessIDs returns the pids of every record that has one, in dispatch order.
func (b *ResultBatch) ProcessIDs() []int {
	var pids []int
	for _, cmd := range b.order {
		if pid, ok := b.records[cmd].ProcessID(); ok {
			pids = append(pids, pid)
		}
	}
	return pids
}

// CountByOutcome tallies the records per outcome.
func (b *ResultBatch) CountByOutcome() map[Outcome]int {
	counts := make(map[Outcome]int, 3)
	for _, rec := range b.records {
		counts[rec.Outcome()]++
	}
	return counts
}
