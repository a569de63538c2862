package storage

// Span is one erase request.
type Span struct {
	From, To uint32
}

// FakeEraser records erase requests for test assertions.
type FakeEraser struct {
	// Erased contains every successful erase, in order.
	Erased []Span

	// FailAt, when FailErr is set, makes the erase starting at this
	// address return FailErr.
	FailAt  uint32
	FailErr error

	// Calls counts all erase requests, including the failing one.
	Calls int
}

// Erase records the span or returns FailErr.
func (f *FakeEraser) Erase(from, to uint32) error {
	f.Calls++
	if f.FailErr != nil && from == f.FailAt {
		return f.FailErr
	}
	f.Erased = append(f.Erased, Span{From: from, To: to})
	return nil
}
