package printer

import (
	"github.com/joshuapare/regbatch/internal/regtext"
	"github.com/joshuapare/regbatch/store"
)

// printReg writes t, found at path, as a .reg document. Section headers
// always carry the canonical root name.
func (p *Printer) printReg(t *store.Tree, path string) error {
	root, rest, ok := store.SplitRoot(path)
	if !ok {
		return regtext.Write(p.writer, t, "")
	}
	segs := store.SplitPath(rest)
	if len(segs) == 0 {
		return regtext.Write(p.writer, t, "")
	}
	parent := store.JoinPath(append([]string{root}, segs[:len(segs)-1]...)...)
	return regtext.Write(p.writer, t, parent)
}
