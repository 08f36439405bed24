package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/stagebox/service/internal/pending"
	"github.com/stagebox/service/internal/preview"
	"github.com/stagebox/service/internal/source"
)

// staging is a pending set with its preview, built from command-line paths.
type staging struct {
	set      *pending.Set
	view     *preview.TableView
	renderer *preview.Renderer
}

func stage(paths []string, window time.Duration, logger *log.Logger) (*staging, error) {
	items, err := source.Open(paths...)
	if err != nil {
		return nil, err
	}

	set := pending.NewSet()
	view := preview.NewTableView()
	renderer := preview.NewRenderer(set, view, preview.Options{Window: window, Logger: logger})

	set.Add(items...)
	s := &staging{set: set, view: view, renderer: renderer}
	s.settle()
	return s, nil
}

// settle renders the pending state now and waits for image decodes.
func (s *staging) settle() {
	s.renderer.Flush()
	s.renderer.Wait()
}

// exclude removes the items shown at the given 1-based positions. Nodes are
// resolved before any removal so later positions are not shifted.
func (s *staging) exclude(positions []int) error {
	nodes := make([]*preview.Node, 0, len(positions))
	for _, p := range positions {
		n, ok := s.view.NodeAt(p - 1)
		if !ok {
			return fmt.Errorf("exclude %d: %w (staged: %d)", p, pending.ErrOutOfRange, s.view.Len())
		}
		nodes = append(nodes, n)
	}
	for _, n := range nodes {
		if err := n.Remove(); err != nil {
			return fmt.Errorf("exclude %s: %w", n.Name, err)
		}
	}
	s.settle()
	return nil
}

func (s *staging) close() {
	s.renderer.Close()
}

// parsePositions accepts "2", "1,3" and "2-4" forms, deduplicated and sorted.
func parsePositions(specs []string) ([]int, error) {
	seen := make(map[int]struct{})
	for _, spec := range specs {
		for _, part := range strings.Split(spec, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			lo, hi, isRange := strings.Cut(part, "-")
			from, err := strconv.Atoi(lo)
			if err != nil || from < 1 {
				return nil, fmt.Errorf("invalid position %q", part)
			}
			to := from
			if isRange {
				to, err = strconv.Atoi(hi)
				if err != nil || to < from {
					return nil, fmt.Errorf("invalid range %q", part)
				}
			}
			for p := from; p <= to; p++ {
				seen[p] = struct{}{}
			}
		}
	}

	positions := make([]int, 0, len(seen))
	for p := range seen {
		positions = append(positions, p)
	}
	sort.Ints(positions)
	return positions, nil
}
