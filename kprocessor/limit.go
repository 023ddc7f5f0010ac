package kprocessor

import (
	"fmt"

	"github.com/birdayz/kpipe/kblock"
	"github.com/birdayz/kpipe/kport"
)

// Limit forwards blocks until a row budget is used up, then finishes both of
// its ports. Finishing the input cascades upstream, so producers stop early
// and the pipeline still completes successfully.
type Limit struct {
	name   string
	input  *kport.InputPort
	output *kport.OutputPort
	guard  stepGuard

	limit     int
	forwarded int

	inputData *kblock.DataBlock
}

// NewLimit returns a processor passing at most rows rows.
func NewLimit(input *kport.InputPort, output *kport.OutputPort, rows int) *Limit {
	name := fmt.Sprintf("Limit(%d)", rows)
	return &Limit{
		name:   name,
		input:  input,
		output: output,
		guard:  stepGuard{name: name},
		limit:  rows,
	}
}

func (l *Limit) Name() string {
	return l.name
}

func (l *Limit) Event() (Event, error) {
	if l.forwarded >= l.limit || l.output.IsFinished() {
		l.input.Finish()
		l.output.Finish()
		return l.guard.report(Finished)
	}

	if l.inputData != nil {
		if !l.output.CanPush() {
			return l.guard.report(NeedData)
		}
		return l.guard.report(Sync)
	}

	if l.input.IsFinished() {
		l.output.Finish()
		return l.guard.report(Finished)
	}

	if !l.output.CanPush() {
		return l.guard.report(NeedData)
	}

	if l.input.HasData() {
		block, err := l.input.Pull()
		if err != nil {
			return NeedData, err
		}
		l.inputData = block
		return l.guard.report(Sync)
	}

	l.input.SetNeedData()
	return l.guard.report(NeedData)
}

func (l *Limit) Process() error {
	if err := l.guard.consume(Sync); err != nil {
		return err
	}
	block := l.inputData
	if block == nil {
		return nil
	}
	l.inputData = nil

	remaining := l.limit - l.forwarded
	if block.NumRows() > remaining {
		block = block.Slice(remaining)
	}
	l.forwarded += block.NumRows()
	return l.output.Push(block)
}

// Forwarded returns the number of rows passed so far.
func (l *Limit) Forwarded() int {
	return l.forwarded
}

var _ Processor = (*Limit)(nil)
