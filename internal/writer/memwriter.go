package writer

// MemWriter keeps the last document written to it.
type MemWriter struct {
	Buf    []byte
	Writes int
}

var _ Sink = (*MemWriter)(nil)

// WriteAll replaces Buf with a copy of buf.
func (w *MemWriter) WriteAll(buf []byte) error {
	w.Buf = append(w.Buf[:0], buf...)
	w.Writes++
	return nil
}
