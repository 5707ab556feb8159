package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionKind(t *testing.T) {
	assert.Equal(t, OpenEnded, Question{Q: "What is ATP?"}.Kind())
	assert.Equal(t, MultipleChoice, Question{Q: "Capital of France?", Options: []string{"Paris", "Lyon"}}.Kind())
	assert.Equal(t, OpenEnded, Question{Options: []string{"a"}, Type: OpenEnded}.Kind())
}

func TestQuestionScanWithoutType(t *testing.T) {
	var q Question
	require.NoError(t, q.Scan(`{"q":"Capital of France?","options":["Paris","Lyon"],"answer":"Paris"}`))
	assert.Empty(t, q.Type)
	assert.Equal(t, MultipleChoice, q.Kind())

	require.NoError(t, q.Scan([]byte(`{"q":"What is ATP?","answer":"energy"}`)))
	assert.Equal(t, OpenEnded, q.Kind())

	require.NoError(t, q.Scan(nil))
	assert.Equal(t, Question{}, q)

	assert.Error(t, q.Scan(42))
}

func TestQuestionValueOmitsEmptyType(t *testing.T) {
	v, err := Question{Q: "What is ATP?", Answer: "energy"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"q":"What is ATP?","answer":"energy","explanation":""}`, v)
}

func TestTagsMerge(t *testing.T) {
	merged := Tags{"bio", " cells "}.Merge(Tags{"cells", "", "exam"})
	assert.Equal(t, Tags{"bio", "cells", "exam"}, merged)

	v, err := Tags(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}
