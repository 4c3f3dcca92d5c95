package saga

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeStage struct {
	id          StageID
	optional    bool
	err         error
	executed    bool
	compensated bool
}

func (s *fakeStage) ID() StageID    { return s.id }
func (s *fakeStage) Optional() bool { return s.optional }

func (s *fakeStage) Execute(ctx context.Context, data Data) error {
	s.executed = true
	if s.err != nil {
		return s.err
	}
	data[string(s.id)] = "done"
	return nil
}

func (s *fakeStage) Compensate(ctx context.Context, data Data) error {
	s.compensated = true
	return nil
}

type fakeDefinition struct {
	id     string
	stages []Stage
}

func (d *fakeDefinition) ID() string             { return d.id }
func (d *fakeDefinition) Stages() []Stage        { return d.stages }
func (d *fakeDefinition) Timeout() time.Duration { return 5 * time.Second }

func waitForRun(t *testing.T, m *Manager, id RunID) *Run {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		run, ok := m.GetRun(id)
		if ok && run.State != RunStateStarted && run.State != RunStateRunning {
			return run
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("run never finished")
	return nil
}

func TestManagerCompletesAllStages(t *testing.T) {
	m := NewManager(zap.NewNop())
	s1 := &fakeStage{id: "first"}
	s2 := &fakeStage{id: "second"}
	m.RegisterDefinition(&fakeDefinition{id: "ok", stages: []Stage{s1, s2}})

	id, err := m.StartRun(context.Background(), "ok", Data{})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	run := waitForRun(t, m, id)
	if run.State != RunStateCompleted {
		t.Fatalf("state = %s, want completed", run.State)
	}
	if !s1.executed || !s2.executed {
		t.Error("not all stages executed")
	}
	if run.Data["first"] != "done" || run.Data["second"] != "done" {
		t.Errorf("data bag = %v", run.Data)
	}
	for _, st := range run.Stages {
		if st.State != StageStateCompleted {
			t.Errorf("stage %s state = %s", st.ID, st.State)
		}
	}
}

func TestManagerToleratesOptionalFailure(t *testing.T) {
	m := NewManager(zap.NewNop())
	s1 := &fakeStage{id: "core"}
	s2 := &fakeStage{id: "enrich", optional: true, err: errors.New("flaky")}
	s3 := &fakeStage{id: "persist"}
	m.RegisterDefinition(&fakeDefinition{id: "tolerant", stages: []Stage{s1, s2, s3}})

	id, _ := m.StartRun(context.Background(), "tolerant", Data{})
	run := waitForRun(t, m, id)

	if run.State != RunStateCompleted {
		t.Fatalf("state = %s, want completed despite optional failure", run.State)
	}
	if !s3.executed {
		t.Error("stage after the optional failure did not run")
	}
	if run.Stages[1].State != StageStateFailed {
		t.Errorf("optional stage state = %s, want failed", run.Stages[1].State)
	}
	if run.Stages[1].Error == "" {
		t.Error("optional stage error not recorded")
	}
}

func TestManagerCompensatesRequiredFailure(t *testing.T) {
	m := NewManager(zap.NewNop())
	s1 := &fakeStage{id: "core"}
	s2 := &fakeStage{id: "enrich", optional: true}
	s3 := &fakeStage{id: "persist", err: errors.New("store down")}
	m.RegisterDefinition(&fakeDefinition{id: "failing", stages: []Stage{s1, s2, s3}})

	id, _ := m.StartRun(context.Background(), "failing", Data{})
	run := waitForRun(t, m, id)

	if run.State != RunStateCompensated {
		t.Fatalf("state = %s, want compensated", run.State)
	}
	if run.Error == "" {
		t.Error("run error not recorded")
	}
	if !s1.compensated {
		t.Error("completed required stage not compensated")
	}
	if s2.compensated {
		t.Error("optional stage must not be compensated")
	}
}

func TestManagerUnknownDefinition(t *testing.T) {
	m := NewManager(zap.NewNop())
	if _, err := m.StartRun(context.Background(), "nope", Data{}); err == nil {
		t.Fatal("unknown definition accepted")
	}
}
