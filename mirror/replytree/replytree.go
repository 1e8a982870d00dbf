// Package replytree reconstructs the reply structure of one thread from flat
// anchor data.
//
// The graph exists only for the duration of a call: anchors are scraped,
// untrusted data, so the structure is not guaranteed to be a tree. Cycles,
// self-references and duplicate sequence numbers all occur in the wild.
// Traversal is guarded by a visited set keyed on the stable row id of each
// post, never on sequence number or in-memory identity.
package replytree

import "github.com/kuroyagi/resmirror/mirror/store"

// Node is one post reachable from the root, tagged with its reply depth.
// Direct replies to the root sit at depth 0.
type Node struct {
	Post  *store.Post `json:"post"`
	Depth int         `json:"depth"`
}

// Build returns every post in posts transitively reachable from root via
// anchor references, in depth-first reply order, excluding root itself.
//
// A root without a sequence number has no discoverable repliers (nothing can
// anchor to it) and yields nil. Each reachable post appears exactly once;
// its depth reflects first discovery, which is deterministic because child
// order is fixed by the original post order.
func Build(posts []*store.Post, root *store.Post) []Node {
	if root == nil || root.Seq == nil {
		return nil
	}

	// Index: sequence number -> posts whose anchors include it, in post order.
	repliers := make(map[int64][]*store.Post)
	for _, p := range posts {
		for _, target := range p.Anchors {
			repliers[int64(target)] = append(repliers[int64(target)], p)
		}
	}

	visited := map[string]bool{root.ID: true}
	var out []Node

	var walk func(seq int64, depth int)
	walk = func(seq int64, depth int) {
		for _, p := range repliers[seq] {
			if visited[p.ID] {
				continue
			}
			visited[p.ID] = true
			out = append(out, Node{Post: p, Depth: depth})
			if p.Seq != nil {
				walk(*p.Seq, depth+1)
			}
		}
	}
	walk(*root.Seq, 0)
	return out
}
