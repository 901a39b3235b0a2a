package dialogue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogAppendAssignsGaplessSequences(t *testing.T) {
	var l Log

	first := l.Append(Speaker1, "one")
	second := l.Append(Speaker2, "two")
	third := l.Append(Speaker1, "three")

	require.Equal(t, 0, first.Sequence)
	require.Equal(t, 1, second.Sequence)
	require.Equal(t, 2, third.Sequence)
	require.Equal(t, 3, l.Len())

	last, ok := l.Last()
	require.True(t, ok)
	require.Equal(t, third, last)
}

func TestLogMessagesReturnsCopy(t *testing.T) {
	var l Log
	l.Append(Speaker1, "one")

	msgs := l.Messages()
	msgs[0].Content = "mutated"

	fresh := l.Messages()
	require.Equal(t, "one", fresh[0].Content)
}

func TestLogLastEmpty(t *testing.T) {
	var l Log
	_, ok := l.Last()
	require.False(t, ok)
}

func TestSpeakerOther(t *testing.T) {
	require.Equal(t, Speaker2, Speaker1.Other())
	require.Equal(t, Speaker1, Speaker2.Other())
	require.True(t, Speaker1.Valid())
	require.False(t, Speaker(3).Valid())
}
