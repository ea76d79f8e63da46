package flow

import (
	"testing"

	"github.com/zurustar/flowrun/pkg/variable"
)

func TestCall_Continue(t *testing.T) {
	f := newFixture(t)
	f.declare("y", variable.Integer, 0)
	sub := f.block("Sub", &suspend{}, 0)
	main := f.block("Main",
		NewCall("Sub", CallContinue), 0,
		set("y", 1), 0,
	)
	main.Execute(0, nil)

	if !sub.IsExecuting() {
		t.Error("Sub should be executing")
	}
	if main.IsExecuting() || f.value("y") != int64(1) {
		t.Errorf("Main executing=%v y=%v", main.IsExecuting(), f.value("y"))
	}
	if f.fc.SelectedBlock() != sub {
		t.Error("selected block should follow the called block")
	}
}

func TestCall_Stop(t *testing.T) {
	f := newFixture(t)
	f.declare("y", variable.Integer, 0)
	f.declare("z", variable.Integer, 0)
	f.block("Sub", set("z", 1), 0)
	main := f.block("Main",
		NewCall("Sub", CallStop), 0,
		set("y", 1), 0,
	)
	main.Execute(0, nil)

	if f.value("z") != int64(1) || f.value("y") != int64(0) {
		t.Errorf("z=%v y=%v, want 1 and 0", f.value("z"), f.value("y"))
	}
	if main.IsExecuting() || !main.WasStopped() {
		t.Errorf("Main executing=%v stopped=%v", main.IsExecuting(), main.WasStopped())
	}
}

func TestCall_StartIndex(t *testing.T) {
	f := newFixture(t)
	f.declare("a", variable.Integer, 0)
	f.declare("b", variable.Integer, 0)
	f.block("Sub",
		set("a", 1), 0,
		set("b", 1), 0,
	)
	call := NewCall("Sub", CallContinue)
	call.StartIndex = 1
	f.block("Main", call, 0).Execute(0, nil)

	if f.value("a") != int64(0) || f.value("b") != int64(1) {
		t.Errorf("a=%v b=%v, want 0 and 1", f.value("a"), f.value("b"))
	}
}

func TestCall_WaitUntilFinished(t *testing.T) {
	f := newFixture(t)
	f.declare("y", variable.Integer, 0)
	wait := &suspend{}
	sub := f.block("Sub", wait, 0)
	call := NewCall("Sub", CallWaitUntilFinished)
	main := f.block("Main",
		call, 0,
		set("y", 1), 0,
	)
	main.Execute(0, nil)

	if main.ActiveCommand() != call || !sub.IsExecuting() {
		t.Fatalf("active=%v sub executing=%v", main.ActiveCommand(), sub.IsExecuting())
	}
	if f.value("y") != int64(0) {
		t.Fatal("caller must wait for the target")
	}

	wait.Continue()

	if sub.IsExecuting() || main.IsExecuting() {
		t.Errorf("sub=%v main=%v, want both idle", sub.State(), main.State())
	}
	if f.value("y") != int64(1) {
		t.Errorf("y = %v, want 1", f.value("y"))
	}
	if f.fc.SelectedBlock() != main {
		t.Error("selected block should return to the caller")
	}
}

func TestCall_CallerStoppedWhileWaiting(t *testing.T) {
	f := newFixture(t)
	f.declare("y", variable.Integer, 0)
	wait := &suspend{}
	sub := f.block("Sub", wait, 0)
	main := f.block("Main",
		NewCall("Sub", CallWaitUntilFinished), 0,
		set("y", 1), 0,
	)
	main.Execute(0, nil)
	main.Stop()

	if !sub.IsExecuting() {
		t.Fatal("stopping the caller must not stop the target")
	}
	wait.Continue()

	if main.IsExecuting() || f.value("y") != int64(0) {
		t.Errorf("Main executing=%v y=%v, caller must not resume", main.IsExecuting(), f.value("y"))
	}
}

func TestCall_CallerRestartedWhileWaiting(t *testing.T) {
	f := newFixture(t)
	f.declare("y", variable.Integer, 0)
	first := &suspend{}
	f.block("Sub", first, 0)
	hold := &suspend{}
	main := f.block("Main",
		NewCall("Sub", CallWaitUntilFinished), 0,
		hold, 0,
		set("y", 1), 0,
	)
	main.Execute(0, nil)
	main.Stop()
	// Sub is busy, so the new run continues straight to hold.
	main.Execute(0, nil)
	if main.ActiveCommand() != hold {
		t.Fatalf("active = %v, want hold", main.ActiveCommand())
	}

	first.Continue()

	if main.ActiveCommand() != hold || f.value("y") != int64(0) {
		t.Error("completion of the earlier call must not resume the new run")
	}
}

func TestCall_BusyContinue(t *testing.T) {
	f := newFixture(t)
	f.declare("y", variable.Integer, 0)
	sub := f.block("Sub", &suspend{}, 0)
	sub.Execute(0, nil)
	main := f.block("Main",
		NewCall("Sub", CallWaitUntilFinished), 0,
		set("y", 1), 0,
	)
	main.Execute(0, nil)

	if main.IsExecuting() || f.value("y") != int64(1) {
		t.Errorf("Main executing=%v y=%v", main.IsExecuting(), f.value("y"))
	}
	if sub.ExecutionCount() != 1 {
		t.Errorf("Sub restarted: count=%d", sub.ExecutionCount())
	}
}

func TestCall_BusyWait(t *testing.T) {
	f := newFixture(t)
	f.declare("y", variable.Integer, 0)
	wait := &suspend{}
	sub := f.block("Sub", wait, 0)
	sub.Execute(0, nil)

	call := NewCall("Sub", CallWaitUntilFinished)
	call.OnBusy = BusyWait
	main := f.block("Main",
		call, 0,
		set("y", 1), 0,
	)
	main.Execute(0, nil)
	if main.ActiveCommand() != call {
		t.Fatal("caller should wait while the target is busy")
	}

	// First run ends; the call starts its own run.
	wait.Continue()
	if sub.ExecutionCount() != 2 || !sub.IsExecuting() {
		t.Fatalf("count=%d executing=%v, want second run", sub.ExecutionCount(), sub.IsExecuting())
	}
	if f.value("y") != int64(0) {
		t.Fatal("caller must wait for its own run")
	}

	wait.Continue()
	if main.IsExecuting() || f.value("y") != int64(1) {
		t.Errorf("Main executing=%v y=%v", main.IsExecuting(), f.value("y"))
	}
}

func TestCall_BusyWaitCancelledByStop(t *testing.T) {
	f := newFixture(t)
	wait := &suspend{}
	sub := f.block("Sub", wait, 0)
	sub.Execute(0, nil)

	call := NewCall("Sub", CallWaitUntilFinished)
	call.OnBusy = BusyWait
	main := f.block("Main", call, 0)
	main.Execute(0, nil)
	main.Stop()

	wait.Continue()
	if sub.ExecutionCount() != 1 || sub.IsExecuting() {
		t.Errorf("count=%d executing=%v, cancelled call must not start Sub", sub.ExecutionCount(), sub.IsExecuting())
	}
}

func TestCall_Self(t *testing.T) {
	f := newFixture(t)
	f.declare("n", variable.Integer, 0)
	f.declare("done", variable.Integer, 0)
	main := f.block("Main",
		inc("n"), 0,
		NewIf(cmp("n", variable.LessThan, 3)), 0,
		NewCall("Main", CallStop), 1,
		NewEnd(), 0,
		set("done", 1), 0,
	)
	main.Execute(0, nil)

	if f.value("n") != int64(3) || f.value("done") != int64(1) {
		t.Errorf("n=%v done=%v", f.value("n"), f.value("done"))
	}
	if main.ExecutionCount() != 1 {
		t.Errorf("self call restarted the block: count=%d", main.ExecutionCount())
	}
}

func TestCall_Unresolved(t *testing.T) {
	tests := []struct {
		name string
		call *Call
	}{
		{"missing block", NewCall("Missing", CallWaitUntilFinished)},
		{"missing flowchart", &Call{TargetFlowchart: "Nowhere", TargetBlock: "Sub", Mode: CallStop}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.declare("y", variable.Integer, 0)
			f.block("Sub", &suspend{}, 0)
			main := f.block("Main",
				tt.call, 0,
				set("y", 1), 0,
			)
			main.Execute(0, nil)

			if f.value("y") != int64(1) {
				t.Errorf("y = %v, want 1", f.value("y"))
			}
			if tt.call.ErrorMessage() == "" {
				t.Error("expected diagnostic")
			}
			if len(f.trace.errors) != 1 {
				t.Errorf("observer errors = %v", f.trace.errors)
			}
		})
	}
}

func TestCall_OtherFlowchart(t *testing.T) {
	a := newFixture(t)
	a.declare("y", variable.Integer, 0)
	fb, err := a.fc.Registry().NewFlowchart("B")
	if err != nil {
		t.Fatalf("NewFlowchart: %v", err)
	}
	b := &fixture{t: t, fc: fb, trace: a.trace}
	b.declare("z", variable.Integer, 0)
	wait := &suspend{}
	sub := b.block("Sub",
		set("z", 1), 0,
		wait, 0,
	)

	call := &Call{TargetFlowchart: "B", TargetBlock: "Sub", Mode: CallWaitUntilFinished}
	main := a.block("Main",
		call, 0,
		set("y", 1), 0,
	)
	main.Execute(0, nil)

	if b.value("z") != int64(1) || !sub.IsExecuting() {
		t.Fatalf("z=%v sub executing=%v", b.value("z"), sub.IsExecuting())
	}
	wait.Continue()
	if a.value("y") != int64(1) || main.IsExecuting() {
		t.Errorf("y=%v main executing=%v", a.value("y"), main.IsExecuting())
	}
}
