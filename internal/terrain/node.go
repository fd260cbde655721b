// Package terrain models the quad-tree of map nodes a renderer subdivides as
// the camera moves, and the elevation data attached to them.
package terrain

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/JERRYZFC/geo-three/internal/fetch"
	"github.com/JERRYZFC/geo-three/internal/tile"
)

// Fetcher loads tile images. Satisfied by every provider.
type Fetcher interface {
	FetchTile(ctx context.Context, t tile.Tile) *fetch.Handle
}

// HeightGeometryLoader is the capability of nodes that carry elevation
// geometry. Imagery-only node kinds implement it as a no-op.
type HeightGeometryLoader interface {
	LoadHeightGeometry(ctx context.Context) error
}

// Node is one cell of the terrain quad-tree.
type Node struct {
	Tile tile.Tile

	mu       sync.Mutex
	parent   *Node
	children []*Node
	imagery  image.Image
	fetcher  Fetcher
}

// NewRoot returns the zoom-0 node of a tree backed by the given imagery
// source.
func NewRoot(fetcher Fetcher) *Node {
	return &Node{fetcher: fetcher}
}

// Parent returns nil for the root node.
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns the current child nodes, nil before subdivision.
func (n *Node) Children() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.children
}

// Subdivide creates the four child nodes at the next zoom level. Calling it
// again returns the existing children.
func (n *Node) Subdivide() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.children != nil {
		return n.children
	}

	tiles := n.Tile.Children()
	n.children = make([]*Node, len(tiles))
	for i, t := range tiles {
		n.children[i] = &Node{
			Tile:    t,
			parent:  n,
			fetcher: n.fetcher,
		}
	}
	return n.children
}

// LoadImagery fetches and stores the raster tile for this node.
func (n *Node) LoadImagery(ctx context.Context) error {
	img, err := n.fetcher.FetchTile(ctx, n.Tile).Wait(ctx)
	if err != nil {
		return fmt.Errorf("imagery for %s: %w", n.Tile, err)
	}

	n.mu.Lock()
	n.imagery = img
	n.mu.Unlock()
	return nil
}

// Imagery returns the loaded raster tile, nil before LoadImagery succeeds.
func (n *Node) Imagery() image.Image {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.imagery
}

// PlaneNode is a flat imagery node. It carries no elevation, so loading
// height geometry does nothing. Displacing the surface on the GPU from a
// bound heightmap texture needs no CPU-side geometry either, which makes
// this the node kind shader-based terrain uses as well.
type PlaneNode struct {
	*Node
}

func NewPlaneNode(n *Node) *PlaneNode {
	return &PlaneNode{Node: n}
}

func (p *PlaneNode) LoadHeightGeometry(ctx context.Context) error {
	return nil
}

// HeightNode samples elevation tiles into a CPU-side height grid.
type HeightNode struct {
	*Node

	heightFetcher Fetcher

	hmu sync.Mutex
	hm  *Heightmap
}

// NewHeightNode attaches an elevation source to a tree node. The elevation
// provider is usually distinct from the imagery provider.
func NewHeightNode(n *Node, heightFetcher Fetcher) *HeightNode {
	return &HeightNode{Node: n, heightFetcher: heightFetcher}
}

// LoadHeightGeometry fetches the node's elevation tile and decodes it into
// the sample grid returned by Heightmap.
func (h *HeightNode) LoadHeightGeometry(ctx context.Context) error {
	img, err := h.heightFetcher.FetchTile(ctx, h.Tile).Wait(ctx)
	if err != nil {
		return fmt.Errorf("height geometry for %s: %w", h.Tile, err)
	}

	hm, err := DecodeTerrarium(img)
	if err != nil {
		return fmt.Errorf("height geometry for %s: %w", h.Tile, err)
	}

	h.hmu.Lock()
	h.hm = hm
	h.hmu.Unlock()
	return nil
}

// Heightmap returns the decoded elevation grid, nil before
// LoadHeightGeometry succeeds.
func (h *HeightNode) Heightmap() *Heightmap {
	h.hmu.Lock()
	defer h.hmu.Unlock()
	return h.hm
}
