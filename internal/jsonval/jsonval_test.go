package jsonval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScalars(t *testing.T) {
	v, err := ParseString(`42`)
	require.NoError(t, err)
	assert.Equal(t, KindInt, v.Kind())
	i, err := v.Int()
	require.NoError(t, err)
	assert.EqualValues(t, 42, i)

	v, err = ParseString(`3.5`)
	require.NoError(t, err)
	assert.Equal(t, KindReal, v.Kind())

	v, err = ParseString(`-1`)
	require.NoError(t, err)
	assert.Equal(t, KindInt, v.Kind())

	v, err = ParseString(`1e3`)
	require.NoError(t, err)
	assert.Equal(t, KindReal, v.Kind())

	v, err = ParseString(`true`)
	require.NoError(t, err)
	b, err := v.Bool()
	require.NoError(t, err)
	assert.True(t, b)

	v, err = ParseString(`null`)
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestParseStringEscapes(t *testing.T) {
	v, err := ParseString(`"a\nb\tc\\\"d"`)
	require.NoError(t, err)
	s, err := v.Str()
	require.NoError(t, err)
	assert.Equal(t, "a\nb\tc\\\"d", s)
}

func TestParseRawNewlineIsError(t *testing.T) {
	_, err := ParseString("\"a\nb\"")
	require.Error(t, err)
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestParseArrayAndObject(t *testing.T) {
	v, err := ParseString(`{"a": [1, 2, 3], "b": "x"}`)
	require.NoError(t, err)
	obj, err := v.Object()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, obj.Keys())

	av, _ := obj.Get("a")
	arr, err := av.Array()
	require.NoError(t, err)
	assert.Len(t, arr, 3)
}

func TestTypeMismatch(t *testing.T) {
	v := Int(5)
	_, err := v.Str()
	var tm *TypeMismatch
	assert.ErrorAs(t, err, &tm)
}

func TestPrintRoundTripsShape(t *testing.T) {
	obj := NewObject()
	obj.Set("id", Int(1))
	obj.Set("name", String("A"))
	obj.Set("items", Array([]Value{Int(1), Int(2)}))

	out := FromObject(obj).PrintString()
	assert.True(t, strings.Contains(out, "\"id\": 1"))
	assert.True(t, strings.Contains(out, "\"name\": \"A\""))

	reparsed, err := ParseString(out)
	require.NoError(t, err)
	o2, err := reparsed.Object()
	require.NoError(t, err)
	idv, ok := o2.Get("id")
	require.True(t, ok)
	i, _ := idv.Int()
	assert.EqualValues(t, 1, i)
}

func TestPrintEmptyContainers(t *testing.T) {
	assert.Equal(t, "[]", Array(nil).PrintString())
	assert.Equal(t, "{}", FromObject(NewObject()).PrintString())
}
