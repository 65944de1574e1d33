package catalog

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestObserverFuncNilIsNoop(t *testing.T) {
	var f ObserverFunc
	f.OnOp(context.Background(), "load", "k", true, nil, 0, DriverMemory)
}

func TestObserveReportsDuration(t *testing.T) {
	var gotDur time.Duration
	var gotErr error
	obs := ObserverFunc(func(_ context.Context, op, key string, hit bool, err error, dur time.Duration, driver Driver) {
		gotDur, gotErr = dur, err
	})
	start := time.Now().Add(-20 * time.Millisecond)
	observe(context.Background(), obs, "persist", "k", false, errors.New("boom"), start, DriverFile)
	if gotDur < 20*time.Millisecond || gotErr == nil {
		t.Fatalf("unexpected observation dur=%s err=%v", gotDur, gotErr)
	}
	observe(context.Background(), nil, "persist", "k", false, nil, start, DriverFile)
}
