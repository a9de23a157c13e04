package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/stage"
)

type testPayload struct{ v string }

func (p testPayload) DeepCopy() testPayload { return testPayload{v: p.v} }

func newItem(v string) *meta.Item[testPayload] { return meta.NewItem(testPayload{v: v}) }

func recordingStage(id string, log *[]string) *stage.Iterating[testPayload] {
	return stage.NewIterating[testPayload](id, "", func(ctx context.Context, item *meta.Item[testPayload]) error {
		*log = append(*log, id+":"+item.Payload().v)
		return nil
	}, nil)
}

func TestPipeline_RunsStagesInOrder(t *testing.T) {
	var log []string
	p := New[testPayload]("p", recordingStage("S1", &log), recordingStage("S2", &log), recordingStage("S3", &log))
	require.NoError(t, p.Initialize())

	_, err := p.Execute(context.Background(), []*meta.Item[testPayload]{newItem("x")})
	require.NoError(t, err)
	assert.Equal(t, []string{"S1:x", "S2:x", "S3:x"}, log)
}

func TestPipeline_RemovalByMiddleStagePreventsDownstreamProcessing(t *testing.T) {
	var log []string
	removeAll := stage.NewFiltering[testPayload]("S2", "", func(ctx context.Context, item *meta.Item[testPayload]) (bool, error) {
		return false, nil
	}, nil)
	p := New[testPayload]("p", recordingStage("S1", &log), removeAll, recordingStage("S3", &log))
	require.NoError(t, p.Initialize())

	out, err := p.Execute(context.Background(), []*meta.Item[testPayload]{newItem("x")})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, []string{"S1:x"}, log, "S3 must never see the removed item")
}

func TestPipeline_AbortsOnStageFailure(t *testing.T) {
	failing := stage.NewIterating[testPayload]("boomer", "", func(ctx context.Context, item *meta.Item[testPayload]) error {
		return errors.New("boom")
	}, nil)
	var log []string
	p := New[testPayload]("p", recordingStage("S1", &log), failing, recordingStage("S3", &log))
	require.NoError(t, p.Initialize())

	_, err := p.Execute(context.Background(), []*meta.Item[testPayload]{newItem("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "boomer")
	assert.NotContains(t, log, "S3:x")
}
