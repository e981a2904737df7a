package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"reflow_oven/internal/logger"
	"reflow_oven/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	published  map[string][][]byte
	lists      map[string][][]byte
	trimmed    map[string]int64
	publishErr error
	closed     bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		published: map[string][][]byte{},
		lists:     map[string][][]byte{},
		trimmed:   map[string]int64{},
	}
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.publishErr != nil {
		cmd.SetErr(f.publishErr)
		return cmd
	}
	f.published[channel] = append(f.published[channel], message.([]byte))
	cmd.SetVal(1)
	return cmd
}

func (f *fakeRedis) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	for _, v := range values {
		f.lists[key] = append([][]byte{v.([]byte)}, f.lists[key]...)
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(f.lists[key])))
	return cmd
}

func (f *fakeRedis) LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd {
	if int64(len(f.lists[key])) > stop+1 {
		f.lists[key] = f.lists[key][:stop+1]
	}
	f.trimmed[key] = stop
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func sampleStatus() models.OvenStatus {
	st := models.OvenStatus{
		Session:  "run",
		State:    models.StatePreheat,
		Time:     12,
		Setpoint: 37,
		Actual:   36,
		ActualOK: true,
		Heater:   80,
		Fan:      30,
	}
	st.Channels[0] = models.SensorReading{Temperature: 35.5, Status: models.SensorEnabled}
	st.Channels[1] = models.SensorReading{Temperature: 36.5, Status: models.SensorEnabled}
	st.Channels[2] = models.SensorReading{Status: models.SensorOpen}
	st.Channels[3] = models.SensorReading{Status: models.SensorDisabled}
	return st
}

func TestStatusLine(t *testing.T) {
	assert.Equal(t, "preheat,12,37.0,36.0,80,30,35.5,36.5,0.0,0.0;", StatusLine(sampleStatus()))
}

func TestRedisSink_PublishesAndKeepsHistory(t *testing.T) {
	fr := newFakeRedis()
	sink := NewRedisSinkWithClient(fr, "oven", 2)

	for i := 0; i < 3; i++ {
		st := sampleStatus()
		st.Time = i
		require.NoError(t, sink.Publish(context.Background(), st))
	}

	require.Len(t, fr.published["oven"], 3)
	var msg statusMessage
	require.NoError(t, json.Unmarshal(fr.published["oven"][2], &msg))
	assert.Equal(t, 2, msg.Status.Time)
	assert.Equal(t, models.StatePreheat, msg.Status.State)
	assert.Contains(t, msg.Line, "preheat,2,")

	assert.Len(t, fr.lists["oven:history"], 2)
	assert.Equal(t, int64(1), fr.trimmed["oven:history"])

	require.NoError(t, sink.Close())
	assert.True(t, fr.closed)
}

func TestRedisSink_NoHistory(t *testing.T) {
	fr := newFakeRedis()
	sink := NewRedisSinkWithClient(fr, "", 0)
	require.NoError(t, sink.Publish(context.Background(), sampleStatus()))
	assert.Len(t, fr.published["oven:status"], 1)
	assert.Empty(t, fr.lists)
}

func TestRedisSink_PublishError(t *testing.T) {
	fr := newFakeRedis()
	fr.publishErr = errors.New("connection refused")
	sink := NewRedisSinkWithClient(fr, "oven", 10)
	err := sink.Publish(context.Background(), sampleStatus())
	assert.ErrorIs(t, err, fr.publishErr)
	assert.Empty(t, fr.lists)
}

type countingSink struct {
	n   int
	err error
}

func (c *countingSink) Publish(context.Context, models.OvenStatus) error {
	c.n++
	return c.err
}

func TestMulti_TriesEverySink(t *testing.T) {
	boom := errors.New("boom")
	a, b := &countingSink{err: boom}, &countingSink{}
	m := Multi{a, NewLogSink(logger.Nop()), b}
	err := m.Publish(context.Background(), sampleStatus())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, a.n)
	assert.Equal(t, 1, b.n)
}
