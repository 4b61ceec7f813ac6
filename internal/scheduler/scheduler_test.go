package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankaflow/ankaflow/internal/model"
)

func TestTruthy(t *testing.T) {
	assert.True(t, truthy(true))
	assert.False(t, truthy(false))
	assert.False(t, truthy(""))
	assert.False(t, truthy("false"))
	assert.False(t, truthy("0"))
	assert.True(t, truthy("yes"))
	assert.False(t, truthy(nil))
	assert.False(t, truthy(int64(0)))
	assert.True(t, truthy(int64(1)))
}

func TestPreviewQueryDisabled(t *testing.T) {
	_, skip, err := previewQuery("t", 0)
	require.NoError(t, err)
	assert.True(t, skip)
}

func TestPreviewQuerySampleRows(t *testing.T) {
	q, skip, err := previewQuery("t", 5)
	require.NoError(t, err)
	assert.False(t, skip)
	assert.Contains(t, q, "LIMIT 5")
}

func TestPreviewQueryAll(t *testing.T) {
	q, skip, err := previewQuery("t", -1)
	require.NoError(t, err)
	assert.False(t, skip)
	assert.NotContains(t, q, "LIMIT")

	q, skip, err = previewQuery("t", "all")
	require.NoError(t, err)
	assert.False(t, skip)
	assert.NotContains(t, q, "LIMIT")
}

func TestPreviewQueryFraction(t *testing.T) {
	q, skip, err := previewQuery("t", 0.25)
	require.NoError(t, err)
	assert.False(t, skip)
	assert.Contains(t, q, "RANDOM()")
	assert.Contains(t, q, "25")
}

func TestPreviewQueryInvalid(t *testing.T) {
	_, _, err := previewQuery("t", "bogus")
	assert.Error(t, err)
}

func TestHandleStageErrorContinuesWhenBothSidesAgree(t *testing.T) {
	s := New(nil, model.NewVariables(), model.FlowContext{}, nil, nil, model.FlowControl{OnError: model.OnErrorContinue})
	stage := &model.Stage{Name: "s1", OnError: model.OnErrorContinue}
	err := s.handleStageError(stage, assert.AnError)
	assert.NoError(t, err)
}

func TestHandleStageErrorFailsWhenFlowDisagrees(t *testing.T) {
	s := New(nil, model.NewVariables(), model.FlowContext{}, nil, nil, model.FlowControl{OnError: model.OnErrorFail})
	stage := &model.Stage{Name: "s1", OnError: model.OnErrorContinue}
	err := s.handleStageError(stage, assert.AnError)
	require.Error(t, err)
}

func TestHandleStageErrorDefaultsToFail(t *testing.T) {
	s := New(nil, model.NewVariables(), model.FlowContext{}, nil, nil, model.FlowControl{})
	stage := &model.Stage{Name: "s1"}
	err := s.handleStageError(stage, assert.AnError)
	require.Error(t, err)
}

func TestScopeOverlaysStageContextOverVariables(t *testing.T) {
	vars := model.NewVariables()
	vars.Set("region", "global")
	s := New(nil, vars, model.FlowContext{"env": "prod"}, nil, nil, model.FlowControl{})
	stage := &model.Stage{Name: "s1", Context: map[string]any{"region": "local"}}
	scope := s.scope(stage)
	assert.Equal(t, "local", scope["region"])
	assert.Equal(t, "prod", scope["env"])
}
