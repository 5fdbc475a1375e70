package content

import (
	"errors"
	"fmt"
	"testing"
)

func sampleTree() []*Block {
	return []*Block{
		{ID: "h1", Type: BlockHeading, Content: "Title", Attributes: map[string]any{"level": 1}},
		{ID: "p1", Type: BlockParagraph, Content: "Intro paragraph."},
		{ID: "l1", Type: BlockList, Children: []*Block{
			{ID: "li1", Type: BlockListItem, Content: "first"},
			{ID: "li2", Type: BlockListItem, Content: "second", Children: []*Block{
				{ID: "li2a", Type: BlockListItem, Content: "nested"},
			}},
		}},
		{ID: "p2", Type: BlockParagraph, Content: "Outro."},
	}
}

func TestFindBlock(t *testing.T) {
	blocks := sampleTree()

	for _, id := range []string{"h1", "p1", "li2a", "p2"} {
		b, err := FindBlock(blocks, id)
		if err != nil {
			t.Fatalf("FindBlock(%q) = %v", id, err)
		}
		if b.ID != id {
			t.Fatalf("FindBlock(%q) returned block %q", id, b.ID)
		}
	}

	_, err := FindBlock(blocks, "missing")
	if !errors.Is(err, ErrBlockNotFound) {
		t.Fatalf("FindBlock(missing) = %v, want ErrBlockNotFound", err)
	}
	_, err = FindBlock(blocks, "")
	if !errors.Is(err, ErrBlockNotFound) {
		t.Fatalf("FindBlock with empty id = %v, want ErrBlockNotFound", err)
	}
}

func TestFindBlockStopsAtFirstMatch(t *testing.T) {
	// A tree larger than the node budget, but with the target near the
	// front. The walk must short-circuit instead of exhausting the budget.
	blocks := []*Block{{ID: "target", Type: BlockParagraph}}
	for i := 0; i < maxTreeNodes+100; i++ {
		blocks = append(blocks, &Block{ID: fmt.Sprintf("b%d", i), Type: BlockParagraph})
	}

	b, err := FindBlock(blocks, "target")
	if err != nil {
		t.Fatalf("FindBlock(target) = %v", err)
	}
	if b.ID != "target" {
		t.Fatalf("found wrong block %q", b.ID)
	}
}

func TestFindBlockNodeBudget(t *testing.T) {
	blocks := make([]*Block, 0, maxTreeNodes+10)
	for i := 0; i < maxTreeNodes+10; i++ {
		blocks = append(blocks, &Block{ID: fmt.Sprintf("b%d", i), Type: BlockParagraph})
	}

	_, err := FindBlock(blocks, "not-there")
	if !errors.Is(err, ErrTreeTooLarge) {
		t.Fatalf("oversized tree: got %v, want ErrTreeTooLarge", err)
	}
}

func TestFindBlockDepthBudget(t *testing.T) {
	root := &Block{ID: "d0", Type: BlockGroup}
	node := root
	for i := 1; i <= maxTreeDepth+5; i++ {
		child := &Block{ID: fmt.Sprintf("d%d", i), Type: BlockGroup}
		node.Children = []*Block{child}
		node = child
	}

	_, err := FindBlock([]*Block{root}, "not-there")
	if !errors.Is(err, ErrTreeTooLarge) {
		t.Fatalf("over-deep tree: got %v, want ErrTreeTooLarge", err)
	}
}

func TestUpdateBlock(t *testing.T) {
	blocks := sampleTree()

	err := UpdateBlock(blocks, "li2a", func(b *Block) {
		b.Content = "rewritten"
	})
	if err != nil {
		t.Fatalf("UpdateBlock = %v", err)
	}

	b, err := FindBlock(blocks, "li2a")
	if err != nil {
		t.Fatal(err)
	}
	if b.Content != "rewritten" {
		t.Fatalf("content = %q, want %q", b.Content, "rewritten")
	}
	// Siblings untouched.
	li1, _ := FindBlock(blocks, "li1")
	if li1.Content != "first" {
		t.Fatalf("sibling content changed: %q", li1.Content)
	}
}

func TestEnsureIDs(t *testing.T) {
	blocks := []*Block{
		{Type: BlockParagraph, Content: "a"},
		{ID: "keep", Type: BlockParagraph, Content: "b", Children: []*Block{
			{Type: BlockParagraph, Content: "c"},
		}},
	}
	EnsureIDs(blocks)

	if blocks[0].ID == "" || blocks[1].Children[0].ID == "" {
		t.Fatal("EnsureIDs left a block without an id")
	}
	if blocks[1].ID != "keep" {
		t.Fatalf("EnsureIDs changed an existing id to %q", blocks[1].ID)
	}
}

func TestParseRenderRoundTrip(t *testing.T) {
	blocks := sampleTree()
	data, err := RenderBlocks(blocks)
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := ParseBlocks(data)
	if err != nil {
		t.Fatal(err)
	}
	if CountBlocks(parsed) != CountBlocks(blocks) {
		t.Fatalf("round trip lost nodes: %d != %d", CountBlocks(parsed), CountBlocks(blocks))
	}
	nested, err := FindBlock(parsed, "li2a")
	if err != nil {
		t.Fatal(err)
	}
	if nested.Content != "nested" {
		t.Fatalf("nested content = %q", nested.Content)
	}
}

func TestParseBlocksEmptyAndInvalid(t *testing.T) {
	blocks, err := ParseBlocks("")
	if err != nil || blocks != nil {
		t.Fatalf("ParseBlocks(\"\") = %v, %v", blocks, err)
	}
	if _, err := ParseBlocks("not json"); err == nil {
		t.Fatal("ParseBlocks accepted invalid JSON")
	}
}

func TestPlainText(t *testing.T) {
	got := PlainText(sampleTree())
	want := "Title\nIntro paragraph.\nfirst\nsecond\nnested\nOutro."
	if got != want {
		t.Fatalf("PlainText = %q, want %q", got, want)
	}
}
