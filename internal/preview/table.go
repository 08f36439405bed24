package preview

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// TableView is a View that renders staged items as a terminal table.
type TableView struct {
	mu            sync.RWMutex
	nodes         map[string]*Node
	visuals       map[string]Visual
	order         []string
	commitEnabled bool
}

// NewTableView returns an empty TableView.
func NewTableView() *TableView {
	return &TableView{
		nodes:   make(map[string]*Node),
		visuals: make(map[string]Visual),
	}
}

func (v *TableView) Mount(n *Node) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.nodes[n.ID] = n
	if n.Visual != nil {
		v.visuals[n.ID] = n.Visual
	}
}

func (v *TableView) Unmount(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.nodes, id)
	delete(v.visuals, id)
}

func (v *TableView) Fill(id string, vis Visual) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.nodes[id]; ok {
		v.visuals[id] = vis
	}
}

func (v *TableView) Arrange(ids []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.order = append(v.order[:0], ids...)
}

func (v *TableView) SetCommitEnabled(enabled bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.commitEnabled = enabled
}

// CommitEnabled reports the state of the commit control.
func (v *TableView) CommitEnabled() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.commitEnabled
}

// Len returns the number of arranged nodes.
func (v *TableView) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.order)
}

// NodeAt returns the node shown at position (0-based).
func (v *TableView) NodeAt(position int) (*Node, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if position < 0 || position >= len(v.order) {
		return nil, false
	}
	n, ok := v.nodes[v.order[position]]
	return n, ok
}

// Render draws the table. Positions are shown 1-based.
func (v *TableView) Render() string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Name", "Kind", "Size", "Preview"})
	for i, id := range v.order {
		n, ok := v.nodes[id]
		if !ok {
			continue
		}
		tw.AppendRow(table.Row{
			strconv.Itoa(i + 1),
			n.Name,
			n.Kind.String(),
			humanize.Bytes(uint64(n.Size)),
			describe(v.visuals[id]),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})

	state := "nothing staged"
	if v.commitEnabled {
		state = fmt.Sprintf("%d file(s) ready to upload", len(v.order))
	}
	tw.SetCaption(state)
	return tw.Render()
}

func describe(vis Visual) string {
	switch x := vis.(type) {
	case nil:
		return "decoding..."
	case ImageVisual:
		return fmt.Sprintf("image data URI (%s)", humanize.Bytes(uint64(len(x.DataURI))))
	case VideoVisual:
		return fmt.Sprintf("video %s (preload=%s)", x.Source, x.Preload)
	case TextVisual:
		return x.Text
	default:
		return ""
	}
}
