package interp

import (
	"sync"

	"github.com/daimatz/godex/pkg/mirror"
)

type fieldRecord struct {
	field *mirror.Field
	obj   *mirror.Object
	old   mirror.Slot
}

type arrayRecord struct {
	array *mirror.Object
	index int
	old   mirror.Slot
}

// Transaction logs heap writes made while initializing classes ahead of
// time so that they can be undone. Operations with effects outside the
// heap abort it instead.
type Transaction struct {
	mu       sync.Mutex
	fields   []fieldRecord
	arrays   []arrayRecord
	classes  []*mirror.Class
	aborted  bool
	abortMsg string
}

// NewTransaction returns an empty transaction.
func NewTransaction() *Transaction { return &Transaction{} }

// RecordFieldWrite saves the value of f in o before it is overwritten.
func (tx *Transaction) RecordFieldWrite(f *mirror.Field, o *mirror.Object) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.fields = append(tx.fields, fieldRecord{field: f, obj: o, old: *f.SlotFor(o)})
}

// RecordArrayWrite saves element i of a before it is overwritten.
func (tx *Transaction) RecordArrayWrite(a *mirror.Object, i int) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.arrays = append(tx.arrays, arrayRecord{array: a, index: i, old: *a.ElemSlot(i)})
}

// RecordClassInit notes that c may be initialized under tx. Rollback
// returns it to resolved if it left that state.
func (tx *Transaction) RecordClassInit(c *mirror.Class) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.classes = append(tx.classes, c)
}

// Rollback restores every recorded location, newest first, and makes
// classes initialized under tx initializable again.
func (tx *Transaction) Rollback() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	for i := len(tx.classes) - 1; i >= 0; i-- {
		c := tx.classes[i]
		if s := c.Status(); s == mirror.StatusInitialized || s == mirror.StatusError {
			c.SetStatus(mirror.StatusResolved)
		}
	}
	for i := len(tx.arrays) - 1; i >= 0; i-- {
		r := tx.arrays[i]
		*r.array.ElemSlot(r.index) = r.old
	}
	for i := len(tx.fields) - 1; i >= 0; i-- {
		r := tx.fields[i]
		*r.field.SlotFor(r.obj) = r.old
	}
	tx.fields, tx.arrays, tx.classes = nil, nil, nil
}

// Abort marks the transaction as failed. Only the first message is kept.
func (tx *Transaction) Abort(msg string) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if !tx.aborted {
		tx.aborted = true
		tx.abortMsg = msg
	}
}

func (tx *Transaction) IsAborted() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.aborted
}

func (tx *Transaction) AbortMessage() string {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.abortMsg
}

// Len returns the number of logged writes.
func (tx *Transaction) Len() int {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return len(tx.fields) + len(tx.arrays)
}

// InitializeInTransaction initializes c with every heap write logged. When
// the transaction aborts the writes are rolled back, the abort error is
// cleared, every class initialized under the transaction becomes
// initializable again and the abort message is returned with ok false. Other initialization failures
// leave their exception pending.
func (t *Thread) InitializeInTransaction(c *mirror.Class) (ok bool, abortMsg string) {
	tx := NewTransaction()
	t.BeginTransaction(tx)
	ok = t.EnsureInitialized(c)
	t.EndTransaction()
	if ok || !tx.IsAborted() {
		return ok, ""
	}
	tx.Rollback()
	t.ClearException()
	log.Infof("initialization of %s rolled back: %s", c, tx.AbortMessage())
	return false, tx.AbortMessage()
}
