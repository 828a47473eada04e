package diagram

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-graphviz"
)

// GraphvizRenderer lays out DOT sources in process.
type GraphvizRenderer struct {
	mu sync.Mutex
	gv *graphviz.Graphviz
}

func NewGraphvizRenderer(ctx context.Context) (*GraphvizRenderer, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	return &GraphvizRenderer{gv: gv}, nil
}

func (r *GraphvizRenderer) Render(ctx context.Context, dot string) (string, error) {
	graph, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return "", fmt.Errorf("parse dot: %w", err)
	}
	defer graph.Close()

	r.mu.Lock()
	defer r.mu.Unlock()

	var buf bytes.Buffer
	if err := r.gv.Render(ctx, graph, graphviz.SVG, &buf); err != nil {
		return "", fmt.Errorf("render dot: %w", err)
	}
	return buf.String(), nil
}

func (r *GraphvizRenderer) Close() error {
	return r.gv.Close()
}
