package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildChain(t *testing.T, n int) []*Block {
	t.Helper()
	blocks := make([]*Block, 0, n)
	prev := GenesisHash()
	for i := 0; i < n; i++ {
		block := NewBlock(uint64(i), int64(100+i), []byte{byte(i)}, prev, 1)
		blocks = append(blocks, block)
		prev = block.Hash
	}
	return blocks
}

func TestMinedBlockMeetsDifficulty(t *testing.T) {
	block := NewBlock(0, 42, []byte("payload"), GenesisHash(), 1)
	assert.Equal(t, byte(0), block.Hash[0])
	assert.True(t, block.Validate())
}

func TestValidateChain(t *testing.T) {
	assert.NoError(t, ValidateChain(nil))

	blocks := buildChain(t, 4)
	require.NoError(t, ValidateChain(blocks))

	blocks[2].Data = []byte("tampered")
	assert.Error(t, ValidateChain(blocks))
}

func TestValidateChainDetectsBrokenLink(t *testing.T) {
	blocks := buildChain(t, 3)
	blocks[1] = NewBlock(1, 101, []byte{1}, []byte("elsewhere"), 1)
	assert.Error(t, ValidateChain(blocks))
}

func TestValidateChainDetectsReorderedTimestamps(t *testing.T) {
	first := NewBlock(0, 200, []byte{0}, GenesisHash(), 0)
	second := NewBlock(1, 100, []byte{1}, first.Hash, 0)
	assert.Error(t, ValidateChain([]*Block{first, second}))
}
