// Package blocks converts a live document tree into the flat list of
// independently persisted blocks, assigning stable identities along the
// way.
package blocks

import (
	"fmt"

	"github.com/lessonforge/lessonforge/internal/content"
	"github.com/lessonforge/lessonforge/internal/document"
)

// Block is one flat, independently addressable persisted unit.
type Block struct {
	ID      string
	Content document.Node
}

// SyncResult pairs the ordered identifier list with the blocks it indexes.
type SyncResult struct {
	BlockIDs []string
	Blocks   []Block
}

// SynchronizerConfig describes the dependencies of a Synchronizer.
type SynchronizerConfig struct {
	IDProvider content.IDProvider
}

// Synchronizer reconciles document trees against previously assigned
// block identifiers.
type Synchronizer struct {
	idProvider content.IDProvider
}

// NewSynchronizer builds a Synchronizer. A nil IDProvider falls back to
// UUIDv7 identifiers.
func NewSynchronizer(cfg SynchronizerConfig) *Synchronizer {
	provider := cfg.IDProvider
	if provider == nil {
		provider = content.NewUUIDProvider()
	}
	return &Synchronizer{idProvider: provider}
}

// Synchronize walks the top-level nodes of the document in order and
// produces the new block list. Identity assignment is a single-pass
// positional heuristic, not a minimal-edit-distance diff: the previous id
// at the same cursor position is reused when the node shape is still
// compatible, otherwise a fresh id is minted. Removed ids are dropped and
// never reused. Ids therefore follow position, not content: transposing
// two shape-compatible blocks keeps both ids in place, while transposing
// blocks of different shapes mints new ids for both.
//
// previousBlocks supplies the last committed content per id so shape
// compatibility can be checked; ids missing from the map are trusted and
// reused. Malformed nodes never abort the pass.
func (s *Synchronizer) Synchronize(root document.Node, previousIDs []string, previousBlocks map[string]document.Node) (SyncResult, error) {
	nodes := topLevelNodes(root)

	result := SyncResult{
		BlockIDs: make([]string, 0, len(nodes)),
		Blocks:   make([]Block, 0, len(nodes)),
	}

	for cursor, node := range nodes {
		blockID := ""
		if cursor < len(previousIDs) {
			candidate := previousIDs[cursor]
			if shapeCompatible(node, candidate, previousBlocks) {
				blockID = candidate
			}
		}
		if blockID == "" {
			minted, err := s.idProvider.NewID()
			if err != nil {
				return SyncResult{}, fmt.Errorf("blocks: id generation failed: %w", err)
			}
			blockID = minted
		}
		result.BlockIDs = append(result.BlockIDs, blockID)
		result.Blocks = append(result.Blocks, Block{ID: blockID, Content: node})
	}

	return result, nil
}

// topLevelNodes flattens the document root into its ordered top-level
// children. A non-doc root is treated as a single-block document.
func topLevelNodes(root document.Node) []document.Node {
	if root.Type == document.NodeTypeDoc {
		return root.Content
	}
	if root.Type == "" {
		return nil
	}
	return []document.Node{root}
}

// shapeCompatible reports whether the previous block behind candidateID
// may keep its identity for the given node. The check is deliberately
// loose: same node type means the block was edited in place.
func shapeCompatible(node document.Node, candidateID string, previousBlocks map[string]document.Node) bool {
	if candidateID == "" {
		return false
	}
	previous, known := previousBlocks[candidateID]
	if !known {
		return true
	}
	return previous.Type == node.Type
}
