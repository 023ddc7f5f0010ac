package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/birdayz/kpipe"
	"github.com/birdayz/kpipe/kserde"
	"github.com/birdayz/kpipe/kstore/pebble"
)

func runSynthetic(t *testing.T, cfg Config) *summary {
	t.Helper()
	p, sum, err := buildPipeline(cfg, kpipe.NullLogger())
	assert.NoError(t, err)
	assert.NoError(t, kpipe.MustNew(p, kpipe.WithMaxThreads(4)).Run(context.Background()))
	return sum
}

func TestSynthetic(t *testing.T) {
	sum := runSynthetic(t, Config{Lanes: 2, Blocks: 3, Rows: 4})

	// Lanes cover 12..35.
	assert.Equal(t, int64(24), sum.rows.Load())
	assert.Equal(t, int64(14404), sum.total.Load())
}

func TestSyntheticLimit(t *testing.T) {
	sum := runSynthetic(t, Config{Lanes: 1, Blocks: 10, Rows: 4, Limit: 5})

	assert.Equal(t, int64(5), sum.rows.Load())
	// The lane starts at 1*10*4.
	assert.Equal(t, int64(40*40+41*41+42*42+43*43+44*44), sum.total.Load())
}

func TestSyntheticMaterialize(t *testing.T) {
	dir := t.TempDir()
	runSynthetic(t, Config{Lanes: 1, Blocks: 2, Rows: 3, Limit: 4, StoreDir: dir})

	store, err := pebble.Open(dir)
	assert.NoError(t, err)
	defer store.Close()

	src := pebble.NewPrefixScanSource(store, kserde.BlockCodec(kserde.Int64Column), []byte("result/"))
	defer src.Close()

	var got []int64
	for {
		b, err := src.Generate()
		assert.NoError(t, err)
		if b == nil {
			break
		}
		got = append(got, b.Payload().([]int64)...)
	}
	assert.Equal(t, []int64{36, 49, 64, 81}, got)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{Lanes: 1, Rows: 1}.validate())
	assert.Error(t, Config{Lanes: 1, Rows: 1, LogFormat: "xml"}.validate())
	assert.Error(t, Config{Lanes: 0, Rows: 1}.validate())
}

func TestCheckCommand(t *testing.T) {
	t.Setenv("KPIPE_LANES", "3")
	t.Setenv("KPIPE_BLOCKS", "1")

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check", "--limit", "10"})
	assert.NoError(t, cmd.Execute())

	assert.Equal(t, ""+
		"stage 0: generate-1 x3 (in=0 out=3)\n"+
		"stage 1: square x3 (in=3 out=3)\n"+
		"stage 2: Resize(3->1) x1 (in=3 out=1)\n"+
		"stage 3: Limit(10) x1 (in=1 out=1)\n"+
		"stage 4: sum x1 (in=1 out=0)\n", out.String())

	cmd = newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check", "--meta-version", "99"})
	assert.Error(t, cmd.Execute())
}
