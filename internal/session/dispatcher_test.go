package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

const testWindow = 16000

func newTestDispatcher(stt *fakeTranscriber) *Dispatcher {
	return NewDispatcher(DispatcherConfig{WindowSamples: testWindow, SampleRate: 16000}, stt, nil, nil)
}

func TestDispatcher_HalfWindowsTriggerOneRun(t *testing.T) {
	stt := &fakeTranscriber{text: "hello"}
	d := newTestDispatcher(stt)
	sink := &fakeSink{}
	s := newSession("abc", TransportStream, sink)
	ctx := context.Background()

	s.Push(samples(8000))
	if d.Dispatch(ctx, s, false) {
		t.Fatal("expected no run below one window")
	}
	if got := s.Buffered(); got != 8000 {
		t.Fatalf("expected 8000 buffered, got %d", got)
	}

	s.Push(samples(8000))
	if !d.Dispatch(ctx, s, false) {
		t.Fatal("expected a run at one full window")
	}
	d.Wait()

	if got := stt.SampleCounts(); len(got) != 1 || got[0] != 16000 {
		t.Fatalf("expected one call with 16000 samples, got %v", got)
	}
	if got := s.Buffered(); got != 0 {
		t.Fatalf("expected empty buffer, got %d", got)
	}
	msgs := sink.Messages()
	if len(msgs) != 1 || msgs[0].Type != MessagePartial || msgs[0].Text != "hello" || msgs[0].Seq != 0 {
		t.Fatalf("expected one partial result, got %+v", msgs)
	}
}

func TestDispatcher_FinalConsumesEverything(t *testing.T) {
	stt := &fakeTranscriber{text: "bye"}
	d := newTestDispatcher(stt)
	sink := &fakeSink{}
	s := newSession("abc", TransportStream, sink)

	s.Push(samples(3000))
	if !d.Dispatch(context.Background(), s, true) {
		t.Fatal("expected forced run")
	}
	d.Wait()

	if got := stt.SampleCounts(); len(got) != 1 || got[0] != 3000 {
		t.Fatalf("expected one call with 3000 samples, got %v", got)
	}
	msgs := sink.Messages()
	if len(msgs) != 1 || msgs[0].Type != MessageFinal {
		t.Fatalf("expected one final result, got %+v", msgs)
	}
}

func TestDispatcher_EmptyForcedRunStillCallsProvider(t *testing.T) {
	stt := &fakeTranscriber{}
	d := newTestDispatcher(stt)
	sink := &fakeSink{}
	s := newSession("abc", TransportStream, sink)

	if !d.Dispatch(context.Background(), s, true) {
		t.Fatal("expected forced run on empty buffer")
	}
	d.Wait()

	calls := stt.Calls()
	if len(calls) != 1 || len(calls[0].Audio) != 44 {
		t.Fatalf("expected one call with a header-only container, got %d calls", len(calls))
	}
	if msgs := sink.Messages(); len(msgs) != 1 || msgs[0].Type != MessageFinal {
		t.Fatalf("expected a final result, got %+v", msgs)
	}
}

func TestDispatcher_SingleFlight(t *testing.T) {
	stt := &fakeTranscriber{gate: make(chan struct{}), started: make(chan struct{}, 8)}
	d := newTestDispatcher(stt)
	s := newSession("abc", TransportStream, &fakeSink{})
	ctx := context.Background()

	s.Push(samples(testWindow))
	if !d.Dispatch(ctx, s, false) {
		t.Fatal("expected first run to start")
	}
	<-stt.started

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(force bool) {
			defer wg.Done()
			if d.Dispatch(ctx, s, force) {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i%2 == 0)
	}
	wg.Wait()
	if accepted != 0 {
		t.Fatalf("expected every trigger to be dropped while processing, %d started", accepted)
	}
	if got := len(stt.Calls()); got != 1 {
		t.Fatalf("expected exactly one provider call in flight, got %d", got)
	}

	stt.gate <- struct{}{}
	d.Wait()
	if s.Processing() {
		t.Fatal("expected session to return to idle")
	}
	if got := len(stt.Calls()); got != 1 {
		t.Fatalf("expected one provider call in total, got %d", got)
	}
}

func TestDispatcher_DrainLoop(t *testing.T) {
	stt := &fakeTranscriber{text: "x"}
	d := newTestDispatcher(stt)
	sink := &fakeSink{}
	s := newSession("abc", TransportStream, sink)

	s.Push(samples(testWindow * 5 / 2))
	if !d.Dispatch(context.Background(), s, false) {
		t.Fatal("expected run to start")
	}
	d.Wait()

	got := stt.SampleCounts()
	if len(got) != 2 || got[0] != testWindow || got[1] != testWindow {
		t.Fatalf("expected two full-window calls, got %v", got)
	}
	if rem := s.Buffered(); rem != testWindow/2 {
		t.Fatalf("expected half a window left, got %d", rem)
	}
	msgs := sink.Messages()
	if len(msgs) != 2 || msgs[0].Seq != 0 || msgs[1].Seq != 1 {
		t.Fatalf("expected two partials with seq 0 and 1, got %+v", msgs)
	}
}

func TestDispatcher_ProviderErrorKeepsSession(t *testing.T) {
	stt := &fakeTranscriber{text: "ok", errs: []error{errors.New("provider unavailable")}}
	d := newTestDispatcher(stt)
	sink := &fakeSink{}
	s := newSession("abc", TransportStream, sink)
	ctx := context.Background()

	s.Push(samples(testWindow))
	d.Dispatch(ctx, s, false)
	d.Wait()

	msgs := sink.Messages()
	if len(msgs) != 1 || msgs[0].Type != MessageError || !strings.Contains(msgs[0].Error, "provider unavailable") {
		t.Fatalf("expected an error message, got %+v", msgs)
	}

	s.Push(samples(testWindow))
	if !d.Dispatch(ctx, s, false) {
		t.Fatal("expected session to keep accepting runs after a provider error")
	}
	d.Wait()
	msgs = sink.Messages()
	if len(msgs) != 2 || msgs[1].Type != MessagePartial || msgs[1].Seq != 0 {
		t.Fatalf("expected a partial with seq 0 after the error, got %+v", msgs)
	}
}

// A burst of client sequence numbers before a run completes collapses to the
// latest one, and only the next result carries it.
func TestDispatcher_SeqCorrelationCollapsesBurst(t *testing.T) {
	stt := &fakeTranscriber{text: "x"}
	d := newTestDispatcher(stt)
	sink := &fakeSink{}
	s := newSession("abc", TransportSocket, sink)

	s.RememberSeq(5)
	s.RememberSeq(6)
	s.Push(samples(2 * testWindow))
	d.Dispatch(context.Background(), s, false)
	d.Wait()

	msgs := sink.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected two results, got %+v", msgs)
	}
	if msgs[0].Seq != 6 {
		t.Fatalf("expected first result to carry the latest client seq 6, got %d", msgs[0].Seq)
	}
	if msgs[1].Seq != 0 {
		t.Fatalf("expected second result to fall back to the session counter, got %d", msgs[1].Seq)
	}
}

func TestDispatcher_SinkErrorsAreSwallowed(t *testing.T) {
	stt := &fakeTranscriber{text: "x"}
	d := newTestDispatcher(stt)
	s := newSession("abc", TransportStream, &fakeSink{sendErr: errors.New("client gone")})

	s.Push(samples(testWindow))
	d.Dispatch(context.Background(), s, false)
	d.Wait()
	if s.Processing() {
		t.Fatal("expected session to be idle after a failed delivery")
	}
	if entries := s.Entries(); len(entries) != 1 {
		t.Fatalf("expected the result to be recorded, got %d entries", len(entries))
	}
}

// A threshold trigger during an in-flight run is a no-op, but a final signal
// is deliberately deferred instead of dropped: Finalize waits for the run and
// then forces one over the remainder, so the client always gets its final.
func TestDispatcher_FinalizeWaitsForInFlightRun(t *testing.T) {
	stt := &fakeTranscriber{text: "x", gate: make(chan struct{}, 2), started: make(chan struct{}, 8)}
	d := newTestDispatcher(stt)
	sink := &fakeSink{}
	s := newSession("abc", TransportStream, sink)
	ctx := context.Background()

	s.Push(samples(testWindow + 3000))
	d.Dispatch(ctx, s, false)
	<-stt.started
	if d.Dispatch(ctx, s, true) {
		t.Fatal("expected a direct forced dispatch to be a no-op while processing")
	}

	done := make(chan struct{})
	go func() {
		d.Finalize(ctx, s)
		close(done)
	}()
	stt.gate <- struct{}{}
	stt.gate <- struct{}{}
	<-done
	d.Wait()

	got := stt.SampleCounts()
	if len(got) != 2 || got[0] != testWindow || got[1] != 3000 {
		t.Fatalf("expected a window then a 3000-sample final, got %v", got)
	}
	msgs := sink.Messages()
	if len(msgs) != 2 || msgs[1].Type != MessageFinal {
		t.Fatalf("expected the last message to be final, got %+v", msgs)
	}
}

func TestDispatcher_FlushSkipsEmptyBuffer(t *testing.T) {
	stt := &fakeTranscriber{}
	d := newTestDispatcher(stt)
	s := newSession("abc", TransportStream, &fakeSink{})

	d.Flush(context.Background(), s)
	d.Wait()
	if got := len(stt.Calls()); got != 0 {
		t.Fatalf("expected no provider call, got %d", got)
	}
}

func TestDispatcher_PassesInstructions(t *testing.T) {
	stt := &fakeTranscriber{}
	d := newTestDispatcher(stt)
	s := newSession("abc", TransportStream, &fakeSink{})
	s.ApplyInstructions(Instructions{Language: "ja", Translate: true, Prompt: "names"})

	d.Dispatch(context.Background(), s, true)
	d.Wait()
	calls := stt.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected one call, got %d", len(calls))
	}
	c := calls[0]
	if c.Language != "ja" || !c.Translate || c.Prompt != "names" || c.SampleRate != 16000 {
		t.Fatalf("unexpected request: %+v", c)
	}
}
