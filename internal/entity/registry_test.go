package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndContains(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("data.core.int.Int."))

	assert.True(t, r.Contains("data.core.int.Int."))
	assert.False(t, r.Contains("data.core.int."))
	assert.False(t, r.Contains("data.core.float.Float."))
}

func TestRegistryRejectsMalformed(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(""))
	assert.Error(t, r.Register("data.core.int.Int"))
}

func TestRegistrySubtypesRespectsSegmentBoundaries(t *testing.T) {
	r := NewRegistry().MustRegister(
		"data.core.int.Int.",
		"data.core.intarray.IntArray.",
		"data.core.int.big.BigInt.",
	)

	// the subclass set of Int is rooted at "data.core.int.", which must
	// not capture the textual sibling "data.core.intarray."
	subtypes := r.Subtypes("data.core.int.Int.")
	assert.Equal(t, []string{"data.core.int.Int.", "data.core.int.big.BigInt."}, subtypes)
}

func TestRegistrySubtypesOfBaseIsEverything(t *testing.T) {
	subtypes := Default.Subtypes("node.Node.")
	assert.Equal(t, Default.All(), subtypes)
}

func TestRegistrySubtypesOfDataBase(t *testing.T) {
	subtypes := Default.Subtypes("data.Data.")

	assert.Contains(t, subtypes, "data.Data.")
	assert.Contains(t, subtypes, "data.core.int.Int.")
	assert.Contains(t, subtypes, "data.core.structure.StructureData.")
	assert.NotContains(t, subtypes, "node.Node.")
	assert.NotContains(t, subtypes, "process.ProcessNode.")
}

func TestDefaultRegistryTaxonomy(t *testing.T) {
	for _, typeString := range Default.All() {
		assert.NoError(t, ValidateNodeTypeString(typeString))
	}
	assert.True(t, Default.Contains("process.calculation.calcjob.CalcJobNode."))
}
