package core

import (
	"context"

	"github.com/ccsi/dmflite/pkg/core/status"
	"github.com/ccsi/dmflite/pkg/errors"
	"github.com/ccsi/dmflite/pkg/model"
)

// Edge is a dependency between two versions of objects
type Edge struct {
	From model.CompositeRef
	To   model.CompositeRef

	// Dangling is true when the target does not resolve to any recorded version
	Dangling bool
}

// Dependencies walks the dependencies of a version of an object, transitively.
//
// Edges are listed breadth first. Each version is expanded once, so the walk terminates on cycles.
func (r *Repo) Dependencies(ctx context.Context, ref model.CompositeRef) ([]Edge, error) {
	if err := r.rlock(); err != nil {
		return nil, err
	}
	defer r.mu.RUnlock()

	root, err := r.entryByRef(ref.ID, ref.Version)
	if err != nil {
		return nil, err
	}
	records := map[model.CompositeRef]model.MetadataRecord{ref: root.Record}
	queue := []model.CompositeRef{ref}
	var edges []Edge

	for len(queue) > 0 {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		current := queue[0]
		queue = queue[1:]

		for _, dep := range records[current].Dependencies {
			edge := Edge{From: current, To: dep}
			if _, seen := records[dep]; !seen {
				e, err := r.entryByRef(dep.ID, dep.Version)
				switch {
				case err == nil:
					records[dep] = e.Record
					queue = append(queue, dep)
				case errors.Is(err, status.ErrNotFound):
					edge.Dangling = true
				default:
					return nil, err
				}
			}
			edges = append(edges, edge)
		}
	}
	return edges, nil
}
