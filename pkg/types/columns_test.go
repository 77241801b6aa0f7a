package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnsPreserveInsertionOrder(t *testing.T) {
	var c Columns
	c.Set("Survey No", "12")
	c.Set("Patta", "44")
	c.Set("Extent", "1.5")
	c.Set("Patta", "45")

	assert.Equal(t, []string{"Survey No", "Patta", "Extent"}, c.Keys())
	assert.Equal(t, "45", c.Value("Patta"))
	assert.Equal(t, 3, c.Len())
}

func TestColumnsDelete(t *testing.T) {
	c := NewColumns("a", "1", "b", "2", "c", "3")
	c.Delete("b")
	c.Delete("missing")

	assert.Equal(t, []string{"a", "c"}, c.Keys())
	assert.False(t, c.Has("b"))
}

func TestColumnsJSONKeepsOrder(t *testing.T) {
	c := NewColumns("zeta", "1", "alpha", "2", "Mid x", "3")

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Equal(t, `{"zeta":"1","alpha":"2","Mid x":"3"}`, string(data))

	var back Columns
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, c.Equal(back))
}

func TestColumnsUnmarshalStringifiesScalars(t *testing.T) {
	var c Columns
	require.NoError(t, json.Unmarshal([]byte(`{"n":2.50,"b":true,"z":null,"s":"x"}`), &c))

	assert.Equal(t, []string{"n", "b", "z", "s"}, c.Keys())
	assert.Equal(t, "2.50", c.Value("n"))
	assert.Equal(t, "true", c.Value("b"))
	assert.Equal(t, "", c.Value("z"))
	assert.True(t, c.Has("z"))
}

func TestColumnsUnmarshalRejectsArray(t *testing.T) {
	var c Columns
	assert.Error(t, json.Unmarshal([]byte(`["a"]`), &c))
}

func TestColumnsCloneIsIndependent(t *testing.T) {
	c := NewColumns("a", "1")
	cp := c.Clone()
	cp.Set("a", "2")
	cp.Set("b", "3")

	assert.Equal(t, "1", c.Value("a"))
	assert.False(t, c.Has("b"))
}
