// Package content manages posts and their block-structured bodies.
//
// A post body is a tree of typed blocks. Every block carries a stable id,
// so an edit can target one node without the caller resending the whole
// document.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Block types understood by the editor surface.
const (
	BlockParagraph = "paragraph"
	BlockHeading   = "heading"
	BlockList      = "list"
	BlockListItem  = "list_item"
	BlockQuote     = "quote"
	BlockCode      = "code"
	BlockImage     = "image"
	BlockGroup     = "group"
)

// Tree traversal budgets. A document exceeding them is rejected rather
// than walked; the limits are far above anything a real post produces.
const (
	maxTreeDepth = 64
	maxTreeNodes = 10_000
)

var (
	// ErrBlockNotFound is returned when no block carries the requested id.
	ErrBlockNotFound = errors.New("block not found")

	// ErrTreeTooLarge is returned when a block tree exceeds the traversal
	// budget.
	ErrTreeTooLarge = errors.New("block tree exceeds traversal limits")
)

// Block is one node of a post body.
type Block struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Content    string         `json:"content,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Children   []*Block       `json:"children,omitempty"`
}

// ParseBlocks decodes a serialized post body. The empty string decodes to
// an empty tree.
func ParseBlocks(data string) ([]*Block, error) {
	if strings.TrimSpace(data) == "" {
		return nil, nil
	}
	var blocks []*Block
	if err := json.Unmarshal([]byte(data), &blocks); err != nil {
		return nil, fmt.Errorf("decoding block tree: %w", err)
	}
	return blocks, nil
}

// RenderBlocks serializes a block tree for storage.
func RenderBlocks(blocks []*Block) (string, error) {
	if len(blocks) == 0 {
		return "[]", nil
	}
	encoded, err := json.Marshal(blocks)
	if err != nil {
		return "", fmt.Errorf("encoding block tree: %w", err)
	}
	return string(encoded), nil
}

// EnsureIDs assigns ids to blocks that lack one, depth-first, so every node
// is addressable. Existing ids are never changed.
func EnsureIDs(blocks []*Block) {
	walk(blocks, func(b *Block) bool {
		if b.ID == "" {
			b.ID = newBlockID()
		}
		return false
	})
}

func newBlockID() string {
	return "blk_" + uuid.NewString()[:8]
}

// FindBlock locates the block with the given id using a depth-first walk
// that stops as soon as the id is found. The walk is budgeted by
// maxTreeDepth and maxTreeNodes.
func FindBlock(blocks []*Block, id string) (*Block, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrBlockNotFound)
	}
	var found *Block
	var state walkState
	state.walk(blocks, 0, func(b *Block) bool {
		if b.ID == id {
			found = b
			return true
		}
		return false
	})
	if found != nil {
		return found, nil
	}
	if state.exceeded {
		return nil, ErrTreeTooLarge
	}
	return nil, fmt.Errorf("%w: %s", ErrBlockNotFound, id)
}

// UpdateBlock applies mutate to the block with the given id. The mutation
// sees the node in place; sibling and child pointers stay intact.
func UpdateBlock(blocks []*Block, id string, mutate func(*Block)) error {
	b, err := FindBlock(blocks, id)
	if err != nil {
		return err
	}
	mutate(b)
	return nil
}

// CountBlocks returns the total number of nodes in the tree.
func CountBlocks(blocks []*Block) int {
	n := 0
	walk(blocks, func(*Block) bool {
		n++
		return false
	})
	return n
}

// PlainText flattens the tree's textual content for excerpts and search.
func PlainText(blocks []*Block) string {
	var parts []string
	walk(blocks, func(b *Block) bool {
		if b.Content != "" {
			parts = append(parts, b.Content)
		}
		return false
	})
	return strings.Join(parts, "\n")
}

// walk visits every node depth-first until visit returns true. Used for
// whole-tree passes where budgets are not needed.
func walk(blocks []*Block, visit func(*Block) bool) bool {
	for _, b := range blocks {
		if b == nil {
			continue
		}
		if visit(b) {
			return true
		}
		if walk(b.Children, visit) {
			return true
		}
	}
	return false
}

// walkState is a budgeted depth-first walk. The walk halts the moment the
// visit callback asks to stop or a budget is exceeded.
type walkState struct {
	visited  int
	stopped  bool
	exceeded bool
}

func (s *walkState) walk(blocks []*Block, depth int, visit func(*Block) bool) {
	if s.stopped || s.exceeded {
		return
	}
	if depth > maxTreeDepth {
		s.exceeded = true
		return
	}
	for _, b := range blocks {
		if b == nil {
			continue
		}
		s.visited++
		if s.visited > maxTreeNodes {
			s.exceeded = true
			return
		}
		if visit(b) {
			s.stopped = true
			return
		}
		s.walk(b.Children, depth+1, visit)
		if s.stopped || s.exceeded {
			return
		}
	}
}
