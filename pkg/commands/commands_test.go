package commands

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/zurustar/flowrun/pkg/flow"
	"github.com/zurustar/flowrun/pkg/variable"
)

func TestSetVariable(t *testing.T) {
	tests := []struct {
		name    string
		typ     variable.Type
		start   any
		cmd     *SetVariable
		want    any
		wantErr bool
	}{
		{"assign", variable.Integer, 1, assign("v", 5), int64(5), false},
		{"add", variable.Integer, 1, NewSetVariable("v", variable.Add, variable.Literal(2)), int64(3), false},
		{"concat", variable.String, "a", NewSetVariable("v", variable.Add, variable.Literal("b")), "ab", false},
		{"negate", variable.Boolean, true, NewSetVariable("v", variable.Negate, variable.Literal(true)), false, false},
		{"substitute literal", variable.String, "", assign("v", "n={$n}"), "n=7", false},
		{"reference", variable.Integer, 0, NewSetVariable("v", variable.Assign, variable.Reference("n")), int64(7), false},
		{"divide by zero", variable.Float, 1.5, NewSetVariable("v", variable.Divide, variable.Literal(0)), 1.5, true},
		{"missing reference", variable.Integer, 0, NewSetVariable("v", variable.Assign, variable.Reference("nope")), int64(0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.declare(nil, "v", tt.typ, tt.start)
			f.declare(nil, "n", variable.Integer, 7)
			f.declare(nil, "after", variable.Integer, 0)
			f.block(nil, "Main", tt.cmd, assign("after", 1)).Execute(0, nil)

			if got := f.value(nil, "v"); got != tt.want {
				t.Errorf("v = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
			if (tt.cmd.ErrorMessage() != "") != tt.wantErr {
				t.Errorf("error = %q, wantErr %v", tt.cmd.ErrorMessage(), tt.wantErr)
			}
			if f.value(nil, "after") != int64(1) {
				t.Error("SetVariable must always continue")
			}
		})
	}
}

func TestSetVariable_MissingVariable(t *testing.T) {
	f := newFixture(t)
	cmd := assign("ghost", 1)
	f.block(nil, "Main", cmd).Execute(0, nil)
	if !strings.Contains(cmd.ErrorMessage(), "variable not found: ghost") {
		t.Errorf("error = %q", cmd.ErrorMessage())
	}
	if len(f.errors.messages) != 1 {
		t.Errorf("observer saw %v", f.errors.messages)
	}
}

func TestSetVariable_Validate(t *testing.T) {
	f := newFixture(t)
	f.declare(nil, "n", variable.Integer, 0)
	f.declare(nil, "s", variable.String, "")
	vars := f.fc.Variables()

	if err := assign("n", 1).Validate(vars); err != nil {
		t.Errorf("assign int: %v", err)
	}
	if err := NewSetVariable("n", variable.Negate, variable.Literal(true)).Validate(vars); err == nil {
		t.Error("negate on integer accepted")
	}
	if err := NewSetVariable("s", variable.Multiply, variable.Literal(2)).Validate(vars); err == nil {
		t.Error("multiply on string accepted")
	}
	if err := assign("missing", 1).Validate(vars); err == nil {
		t.Error("unknown key accepted")
	}
	if err := NewSetVariable("n", variable.Assign, variable.Reference("missing")).Validate(vars); err == nil {
		t.Error("unknown reference accepted")
	}
}

func TestSay(t *testing.T) {
	t.Run("waits for input", func(t *testing.T) {
		f := newFixture(t)
		f.declare(nil, "name", variable.String, "Alice")
		f.declare(nil, "after", variable.Integer, 0)
		d := &fakeDialogue{}
		b := f.block(nil, "Talk", NewSay(&Env{Dialogue: d}, "Hello {$name}", true), assign("after", 1))
		b.Execute(0, nil)

		if len(d.lines) != 1 || d.lines[0] != (Line{Flowchart: "main", Block: "Talk", Text: "Hello Alice"}) {
			t.Fatalf("lines = %+v", d.lines)
		}
		if !b.IsExecuting() || f.value(nil, "after") != int64(0) {
			t.Fatal("block should wait for the reader")
		}
		d.ack()
		if b.IsExecuting() || f.value(nil, "after") != int64(1) {
			t.Error("block should continue after acknowledgement")
		}
	})

	t.Run("no wait", func(t *testing.T) {
		f := newFixture(t)
		d := &fakeDialogue{}
		b := f.block(nil, "Talk", NewSay(&Env{Dialogue: d}, "one", false), NewSay(&Env{Dialogue: d}, "two", false))
		b.Execute(0, nil)
		if b.IsExecuting() || len(d.lines) != 2 {
			t.Errorf("executing=%v lines=%d", b.IsExecuting(), len(d.lines))
		}
	})

	t.Run("immediate acknowledgement", func(t *testing.T) {
		f := newFixture(t)
		d := &fakeDialogue{autoAck: true}
		say := NewSay(&Env{Dialogue: d}, "auto", true)
		b := f.block(nil, "Talk", say)
		b.Execute(0, nil)
		if b.IsExecuting() || say.cancel != nil {
			t.Errorf("executing=%v cancel set=%v", b.IsExecuting(), say.cancel != nil)
		}
	})

	t.Run("stop withdraws the line", func(t *testing.T) {
		f := newFixture(t)
		f.declare(nil, "after", variable.Integer, 0)
		d := &fakeDialogue{}
		b := f.block(nil, "Talk", NewSay(&Env{Dialogue: d}, "bye", true), assign("after", 1))
		b.Execute(0, nil)
		b.Stop()
		if d.cancelled != 1 {
			t.Errorf("cancelled = %d", d.cancelled)
		}
		d.ack()
		if f.value(nil, "after") != int64(0) {
			t.Error("late acknowledgement resumed a stopped block")
		}
	})

	t.Run("no dialogue service", func(t *testing.T) {
		f := newFixture(t)
		b := f.block(nil, "Talk", NewSay(nil, "logged", true))
		b.Execute(0, nil)
		if b.IsExecuting() {
			t.Error("Say without a dialogue must continue")
		}
	})
}

func TestWait(t *testing.T) {
	f := newFixture(t)
	f.declare(nil, "after", variable.Integer, 0)
	b := f.block(nil, "Pause", NewWait(time.Second), assign("after", 1))
	b.Execute(0, nil)

	f.reg.Advance(500 * time.Millisecond)
	if !b.IsExecuting() {
		t.Fatal("Wait ended early")
	}
	f.reg.Advance(500 * time.Millisecond)
	if b.IsExecuting() || f.value(nil, "after") != int64(1) {
		t.Error("Wait should end after its duration")
	}
}

func TestWait_StopCancelsTimer(t *testing.T) {
	f := newFixture(t)
	b := f.block(nil, "Pause", NewWait(time.Second))
	b.Execute(0, nil)
	if f.reg.PendingTimers() != 1 {
		t.Fatalf("pending = %d", f.reg.PendingTimers())
	}
	b.Stop()
	if f.reg.PendingTimers() != 0 || f.reg.Busy() {
		t.Error("stopped Wait left its timer behind")
	}
}

func TestSendMessage(t *testing.T) {
	f := newFixture(t)
	other := f.flowchart("other")
	f.declare(nil, "n", variable.Integer, 0)
	f.declare(other, "n", variable.Integer, 0)
	f.declare(nil, "target", variable.String, "go")
	f.fc.AddHandler(flow.TriggerMessage, "go", f.block(nil, "OnGo", NewSetVariable("n", variable.Add, variable.Literal(1))))
	other.AddHandler(flow.TriggerMessage, "go", f.block(other, "OnGo", NewSetVariable("n", variable.Add, variable.Literal(1))))

	f.block(nil, "Local", NewSendMessage("{$target}", false)).Execute(0, nil)
	if f.value(nil, "n") != int64(1) || f.value(other, "n") != int64(0) {
		t.Errorf("local: %v %v", f.value(nil, "n"), f.value(other, "n"))
	}

	f.block(nil, "All", NewSendMessage("go", true)).Execute(0, nil)
	if f.value(nil, "n") != int64(2) || f.value(other, "n") != int64(1) {
		t.Errorf("all: %v %v", f.value(nil, "n"), f.value(other, "n"))
	}

	empty := NewSendMessage("", false)
	f.block(nil, "Empty", empty).Execute(0, nil)
	if empty.ErrorMessage() == "" {
		t.Error("empty message accepted")
	}
}

func TestStopBlock(t *testing.T) {
	f := newFixture(t)
	f.declare(nil, "after", variable.Integer, 0)
	h := &hold{}
	target := f.block(nil, "Target", h)
	target.Execute(0, nil)

	f.block(nil, "Stopper", &StopBlock{TargetBlock: "Target"}, assign("after", 1)).Execute(0, nil)
	if target.IsExecuting() || h.stops != 1 || f.value(nil, "after") != int64(1) {
		t.Errorf("target executing=%v stops=%d after=%v", target.IsExecuting(), h.stops, f.value(nil, "after"))
	}

	self := f.block(nil, "Self", &StopBlock{TargetBlock: "Self"}, assign("after", 2))
	self.Execute(0, nil)
	if self.IsExecuting() || f.value(nil, "after") != int64(1) || !self.WasStopped() {
		t.Error("a block stopping itself must end there")
	}

	missing := &StopBlock{TargetFlowchart: "nowhere", TargetBlock: "X"}
	f.block(nil, "Missing", missing, assign("after", 3)).Execute(0, nil)
	if missing.ErrorMessage() == "" || f.value(nil, "after") != int64(3) {
		t.Errorf("missing target: error=%q after=%v", missing.ErrorMessage(), f.value(nil, "after"))
	}
}

func TestStopFlowchart(t *testing.T) {
	f := newFixture(t)
	other := f.flowchart("other")
	f.declare(nil, "after", variable.Integer, 0)
	ob := f.block(other, "Busy", &hold{})
	ob.Execute(0, nil)
	mine := f.block(nil, "Mine", &hold{})
	mine.Execute(0, nil)

	f.block(nil, "StopOther", &StopFlowchart{Flowcharts: []string{"other", "ghost"}}, assign("after", 1)).Execute(0, nil)
	if ob.IsExecuting() || !mine.IsExecuting() || f.value(nil, "after") != int64(1) {
		t.Errorf("other=%v mine=%v after=%v", ob.IsExecuting(), mine.IsExecuting(), f.value(nil, "after"))
	}
	if len(f.errors.messages) != 1 {
		t.Errorf("errors = %v", f.errors.messages)
	}

	stopper := f.block(nil, "StopSelf", &StopFlowchart{StopParent: true}, assign("after", 2))
	stopper.Execute(0, nil)
	if mine.IsExecuting() || stopper.IsExecuting() || f.value(nil, "after") != int64(1) {
		t.Errorf("mine=%v stopper=%v after=%v", mine.IsExecuting(), stopper.IsExecuting(), f.value(nil, "after"))
	}
}

func TestStopFlowchart_WaitingCallerInStoppedFlowchart(t *testing.T) {
	f := newFixture(t)
	callee := f.flowchart("callee")
	caller := f.flowchart("caller")
	target := f.block(callee, "Target", &hold{})

	wait := flow.NewCall("Target", flow.CallWaitUntilFinished)
	wait.TargetFlowchart = "callee"
	again := flow.NewCall("Target", flow.CallContinue)
	again.TargetFlowchart = "callee"
	tail := &hold{}
	f.block(caller, "Caller", wait, again, tail).Execute(0, nil)
	if !target.IsExecuting() {
		t.Fatal("target should be executing")
	}

	f.block(nil, "Stop", &StopFlowchart{Flowcharts: []string{"callee", "caller"}}).Execute(0, nil)
	if callee.HasExecutingBlocks() || caller.HasExecutingBlocks() {
		t.Errorf("callee=%v caller=%v still executing", callee.HasExecutingBlocks(), caller.HasExecutingBlocks())
	}
	if target.ExecutionCount() != 1 || tail.stops != 0 {
		t.Errorf("target count=%d tail.stops=%d", target.ExecutionCount(), tail.stops)
	}
}

func TestReset(t *testing.T) {
	f := newFixture(t)
	f.declare(nil, "n", variable.Integer, 5)
	f.block(nil, "Main",
		assign("n", 9),
		&Reset{Variables: true},
	).Execute(0, nil)
	if f.value(nil, "n") != int64(5) {
		t.Errorf("n = %v, want start value 5", f.value(nil, "n"))
	}
}

func TestDebugLog(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f := newFixture(t, flow.WithLogger(log))
	f.declare(nil, "score", variable.Integer, 42)

	cmd := NewDebugLog("score is {$score}")
	cmd.Level = slog.LevelWarn
	f.block(nil, "Log", cmd).Execute(0, nil)

	var found map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		if entry["msg"] == "score is 42" {
			found = entry
		}
	}
	if found == nil {
		t.Fatalf("message not logged:\n%s", buf.String())
	}
	if found["level"] != "WARN" || found["block"] != "Log" {
		t.Errorf("entry = %v", found)
	}
}

func TestPlayMusic(t *testing.T) {
	t.Run("wait for the end", func(t *testing.T) {
		f := newFixture(t)
		f.declare(nil, "after", variable.Integer, 0)
		m := &fakeMusic{}
		b := f.block(nil, "Music", NewPlayMusic(&Env{Music: m}, "theme.mid", true), assign("after", 1))
		b.Execute(0, nil)
		if m.track != "theme.mid" || !b.IsExecuting() {
			t.Fatalf("track=%q executing=%v", m.track, b.IsExecuting())
		}
		m.finish()
		if b.IsExecuting() || f.value(nil, "after") != int64(1) {
			t.Error("block should continue when the track ends")
		}
	})

	t.Run("no wait", func(t *testing.T) {
		f := newFixture(t)
		m := &fakeMusic{}
		b := f.block(nil, "Music", NewPlayMusic(&Env{Music: m}, "theme.mid", false))
		b.Execute(0, nil)
		if b.IsExecuting() || len(m.waiters) != 0 {
			t.Error("PlayMusic without wait must continue at once")
		}
	})

	t.Run("stop cancels the wait", func(t *testing.T) {
		f := newFixture(t)
		m := &fakeMusic{}
		b := f.block(nil, "Music", NewPlayMusic(&Env{Music: m}, "theme.mid", true))
		b.Execute(0, nil)
		b.Stop()
		if m.cancelled != 1 || len(m.waiters) != 0 {
			t.Errorf("cancelled=%d waiters=%d", m.cancelled, len(m.waiters))
		}
	})

	t.Run("StopMusic releases waiters", func(t *testing.T) {
		f := newFixture(t)
		m := &fakeMusic{}
		env := &Env{Music: m}
		waiting := f.block(nil, "Waiting", NewPlayMusic(env, "theme.mid", true))
		waiting.Execute(0, nil)
		f.block(nil, "Stopper", NewStopMusic(env)).Execute(0, nil)
		if m.stops != 1 || waiting.IsExecuting() {
			t.Errorf("stops=%d waiting=%v", m.stops, waiting.IsExecuting())
		}
	})

	t.Run("errors continue", func(t *testing.T) {
		f := newFixture(t)
		failing := NewPlayMusic(&Env{Music: &fakeMusic{fail: true}}, "x.mid", true)
		noService := NewPlayMusic(nil, "x.mid", true)
		stop := NewStopMusic(nil)
		b := f.block(nil, "Music", failing, noService, stop)
		b.Execute(0, nil)
		if b.IsExecuting() {
			t.Fatal("music errors must not suspend the block")
		}
		if failing.ErrorMessage() == "" || noService.ErrorMessage() == "" || stop.ErrorMessage() == "" {
			t.Error("expected diagnostics")
		}
		if len(f.errors.messages) != 3 {
			t.Errorf("errors = %v", f.errors.messages)
		}
	})
}
