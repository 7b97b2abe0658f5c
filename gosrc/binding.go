package gosrc

import (
	"github.com/docsight/go-highlightserver/engine"
)

// NewEngine wires a highlights engine to a workspace snapshot, binding every
// collaborator slot to this package's Go implementations.
func NewEngine(ws *Workspace, maxParallelism int) *engine.Engine {
	models := NewModelProvider(ws)
	return &engine.Engine{
		Models:         models,
		Search:         &Searcher{ws: ws, models: models},
		Additional:     &AdditionalRefs{ws: ws, models: models},
		Filters:        Filters{},
		Facts:          Facts{},
		Syntax:         ws,
		MaxParallelism: maxParallelism,
	}
}
