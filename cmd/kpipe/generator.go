package main

import (
	"fmt"

	"github.com/birdayz/kpipe/kblock"
)

// generator emits blocks of consecutive integers.
type generator struct {
	name   string
	blocks int
	rows   int
	next   int
	start  int64
}

func newGenerator(lane, blocks, rows int) *generator {
	return &generator{
		name:   fmt.Sprintf("generate-%d", lane),
		blocks: blocks,
		rows:   rows,
		start:  int64(lane) * int64(blocks) * int64(rows),
	}
}

func (g *generator) Name() string {
	return g.name
}

func (g *generator) Generate() (*kblock.DataBlock, error) {
	if g.next >= g.blocks {
		return nil, nil
	}
	col := make([]int64, g.rows)
	base := g.start + int64(g.next)*int64(g.rows)
	for i := range col {
		col[i] = base + int64(i)
	}
	g.next++
	return kblock.New(col, g.rows), nil
}
