package printer

import (
	"fmt"
	"strings"

	"github.com/joshuapare/regbatch/batch"
	"github.com/joshuapare/regbatch/store"
)

// planStep is one line of a batch plan.
type planStep struct {
	Action string `json:"action"`
	Key    string `json:"key"`
	Name   string `json:"name,omitempty"`
	Type   string `json:"type,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// PrintPlan prints the steps Apply would perform for b, in order, without
// touching any store. root labels the batch root in key paths. The reg
// format is not supported for plans and falls back to text.
func (p *Printer) PrintPlan(b *batch.Batch, root string) error {
	var steps []planStep
	err := b.Walk(func(parent string, op batch.Op) error {
		switch op := op.(type) {
		case batch.Key:
			action := "open"
			if op.Mode == store.Create {
				action = "create"
			}
			steps = append(steps, planStep{Action: action, Key: planPath(root, parent, op.Name)})
		case batch.SetValue:
			if op.Value == nil {
				return fmt.Errorf("plan %q: %w", planPath(root, parent, ""), batch.ErrNilValue)
			}
			tv := store.TreeValue{Name: op.Name, Type: op.Value.Type(), Data: op.Value.Bytes()}
			name := op.Name
			if name == "" {
				name = DefaultValueName
			}
			steps = append(steps, planStep{
				Action: "set",
				Key:    planPath(root, parent, ""),
				Name:   name,
				Type:   tv.Type.String(),
				Data:   decodeValueJSON(tv),
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	if p.opts.Format == FormatJSON {
		if steps == nil {
			steps = []planStep{}
		}
		return p.writeJSON(steps)
	}

	var sb strings.Builder
	for _, s := range steps {
		switch s.Action {
		case "set":
			fmt.Fprintf(&sb, "%-7s %s:%q", s.Action, s.Key, s.Name)
			if p.opts.ShowValueTypes {
				fmt.Fprintf(&sb, " [%s]", s.Type)
			}
			fmt.Fprintf(&sb, " = %v\n", formatPlanData(s.Data))
		default:
			fmt.Fprintf(&sb, "%-7s %s\n", s.Action, s.Key)
		}
	}
	_, err = fmt.Fprint(p.writer, sb.String())
	return err
}

func planPath(root, parent, name string) string {
	segs := store.SplitPath(root)
	segs = append(segs, store.SplitPath(parent)...)
	segs = append(segs, store.SplitPath(name)...)
	return store.JoinPath(segs...)
}

func formatPlanData(v any) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return fmt.Sprint(v)
}
