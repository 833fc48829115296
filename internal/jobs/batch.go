package jobs

// KeySet is the read-only set of URLs recorded before the run started.
type KeySet struct {
	keys  map[string]struct{}
	count int
}

// NewKeySet builds a KeySet from the rows returned by a KeyReader. Len counts
// rows, duplicates included, so row arithmetic matches the store.
func NewKeySet(urls []string) KeySet {
	keys := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		keys[u] = struct{}{}
	}
	return KeySet{keys: keys, count: len(urls)}
}

// Contains reports whether url was already recorded.
func (s KeySet) Contains(url string) bool {
	_, ok := s.keys[url]
	return ok
}

// Len returns the number of stored rows.
func (s KeySet) Len() int {
	return s.count
}

// Batch accumulates the new records of one run in processing order.
type Batch struct {
	startID int
	records []Record
	urls    map[string]struct{}
}

// NewBatch starts a batch whose first id is existingCount+1.
func NewBatch(existingCount int) *Batch {
	return &Batch{
		startID: existingCount + 1,
		urls:    make(map[string]struct{}),
	}
}

// StartID is the id (and 1-based row) of the first record in the batch.
func (b *Batch) StartID() int {
	return b.startID
}

// Contains reports whether url is already in the batch.
func (b *Batch) Contains(url string) bool {
	_, ok := b.urls[url]
	return ok
}

// Append assigns the next id to rec and adds it to the batch.
func (b *Batch) Append(rec Record) Record {
	rec.ID = b.startID + len(b.records)
	b.records = append(b.records, rec)
	b.urls[rec.URL] = struct{}{}
	return rec
}

// Len returns the number of records in the batch.
func (b *Batch) Len() int {
	return len(b.records)
}

// Records returns a copy of the batch contents.
func (b *Batch) Records() []Record {
	out := make([]Record, len(b.records))
	copy(out, b.records)
	return out
}

// Rows returns the tabular rows for the batch.
func (b *Batch) Rows() [][]any {
	rows := make([][]any, 0, len(b.records))
	for _, rec := range b.records {
		rows = append(rows, rec.Row())
	}
	return rows
}
