package health

import (
	"context"
	"errors"
	"testing"
)

func TestStatusWithoutChecks(t *testing.T) {
	r := NewService().Status(context.Background(), true)
	if !r.OK || len(r.Checks) != 0 {
		t.Fatalf("unexpected report %+v", r)
	}
}

func TestStatusRunsDeepChecksOnRequest(t *testing.T) {
	svc := NewService()
	svc.Register("db", func(context.Context) error { return nil })
	deepCalls := 0
	svc.RegisterDeep("renderer", func(context.Context) error {
		deepCalls++
		return errors.New("chrome missing")
	})

	r := svc.Status(context.Background(), false)
	if !r.OK || r.Checks["db"] != "ok" || deepCalls != 0 {
		t.Fatalf("shallow report %+v, deep calls %d", r, deepCalls)
	}

	r = svc.Status(context.Background(), true)
	if r.OK || r.Checks["renderer"] != "chrome missing" || deepCalls != 1 {
		t.Fatalf("deep report %+v, deep calls %d", r, deepCalls)
	}
}
