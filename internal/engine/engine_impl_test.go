package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/petrijr/conveyor/pkg/api"
)

// collectReports wires done/error callbacks that append into the returned
// slices. The engine invokes callbacks sequentially, so no locking is needed
// for synchronous runs.
func collectReports[T any](eng api.Engine[T]) (*[]api.Report[T], *[]api.ErrorReport[T]) {
	var dones []api.Report[T]
	var fails []api.ErrorReport[T]
	eng.OnDone(func(ctx context.Context, rep api.Report[T], eng api.Engine[T]) {
		dones = append(dones, rep)
	})
	eng.OnError(func(ctx context.Context, rep api.ErrorReport[T], eng api.Engine[T]) {
		fails = append(fails, rep)
	})
	return &dones, &fails
}

func TestBasicChain(t *testing.T) {
	ctx := context.Background()
	eng := New[int]()
	dones, fails := collectReports(eng)

	var sourceItems []int
	var pipeCalls int

	eng.Add(1, 2)
	rep, err := eng.Run(ctx,
		api.SourceStage("log-and-forward",
			func(ctx context.Context, item int, run int64, eng api.Engine[int]) (*api.Result, error) {
				sourceItems = append(sourceItems, item)
				return &api.Result{Data: item}, nil
			}),
		api.PipeStage[int]("log-and-break",
			func(ctx context.Context, data any, run int64, eng api.Engine[int]) (*api.Result, error) {
				pipeCalls++
				return &api.Result{Break: true}, nil
			}),
	)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if rep == nil {
		t.Fatal("expected a report from an accepted run")
	}

	if len(sourceItems) != 2 || sourceItems[0] != 1 || sourceItems[1] != 2 {
		t.Fatalf("expected source to see [1 2], got %v", sourceItems)
	}
	if pipeCalls != 1 {
		t.Fatalf("expected pipe stage to fire once, got %d", pipeCalls)
	}
	if len(rep.Items) != 2 || rep.Items[0] != 1 || rep.Items[1] != 2 {
		t.Fatalf("expected report items [1 2], got %v", rep.Items)
	}
	if len(*dones) != 1 {
		t.Fatalf("expected exactly one done callback, got %d", len(*dones))
	}
	if len(*fails) != 0 {
		t.Fatalf("expected no error callback, got %d", len(*fails))
	}
}

func TestEmptyRunIsNoop(t *testing.T) {
	ctx := context.Background()
	eng := New[int]()
	dones, fails := collectReports(eng)

	rep, err := eng.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(rep.Items) != 0 {
		t.Fatalf("expected empty item list, got %v", rep.Items)
	}
	if len(*dones) != 1 || len(*fails) != 0 {
		t.Fatalf("expected one done and no error callbacks, got %d/%d", len(*dones), len(*fails))
	}
}

func TestEmptyBacklogSkipsAllStages(t *testing.T) {
	ctx := context.Background()
	eng := New[int]()

	invoked := 0
	eng.RegisterStages(
		api.SourceStage("never",
			func(ctx context.Context, item int, run int64, eng api.Engine[int]) (*api.Result, error) {
				invoked++
				return nil, nil
			}),
		api.PassStage[int]("never-either"),
	)

	rep, err := eng.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if invoked != 0 {
		t.Fatalf("expected zero stage invocations on empty backlog, got %d", invoked)
	}
	if len(rep.Items) != 0 {
		t.Fatalf("expected empty items, got %v", rep.Items)
	}
}

func TestEmptyStageListStillDrainsBacklog(t *testing.T) {
	ctx := context.Background()
	eng := New[int]()

	eng.Add(1, 2)
	rep, err := eng.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(rep.Items) != 2 {
		t.Fatalf("expected the queued items in the report, got %v", rep.Items)
	}
	if got := eng.Backlog(); len(got) != 0 {
		t.Fatalf("expected backlog cleared after run, got %v", got)
	}
}

func TestItemsDeliveredExactlyOnceInOrder(t *testing.T) {
	ctx := context.Background()
	eng := New[string]()

	var seen []string
	eng.RegisterStages(
		api.SourceStage("record",
			func(ctx context.Context, item string, run int64, eng api.Engine[string]) (*api.Result, error) {
				seen = append(seen, item)
				return nil, nil
			}),
	)

	eng.Add("a")
	eng.Add("b", "c")
	rep, err := eng.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := []string{"a", "b", "c"}
	if len(seen) != len(want) {
		t.Fatalf("expected %d source invocations, got %d", len(want), len(seen))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("invocation %d: expected %q, got %q", i, want[i], seen[i])
		}
		if rep.Items[i] != want[i] {
			t.Fatalf("report item %d: expected %q, got %q", i, want[i], rep.Items[i])
		}
	}
}

func TestLiveFeedWithinRun(t *testing.T) {
	ctx := context.Background()
	eng := New[int]()

	var seen []int
	eng.RegisterStages(
		api.SourceStage("feed",
			func(ctx context.Context, item int, run int64, eng api.Engine[int]) (*api.Result, error) {
				seen = append(seen, item)
				if item == 2 {
					// Appended mid-run: must be delivered before this run
					// finalizes.
					eng.Add(3)
				}
				return nil, nil
			}),
	)

	eng.Add(1, 2)
	rep, err := eng.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(seen) != 3 || seen[2] != 3 {
		t.Fatalf("expected source to see [1 2 3], got %v", seen)
	}
	if len(rep.Items) != 3 || rep.Items[2] != 3 {
		t.Fatalf("expected report items [1 2 3], got %v", rep.Items)
	}
}

func TestBreakAbandonsRemainingItemsButClearsThem(t *testing.T) {
	ctx := context.Background()
	eng := New[int]()

	var seen []int
	var pipeCalls int
	eng.RegisterStages(
		api.SourceStage("break-early",
			func(ctx context.Context, item int, run int64, eng api.Engine[int]) (*api.Result, error) {
				seen = append(seen, item)
				return &api.Result{Break: true}, nil
			}),
		api.PipeStage[int]("unreached",
			func(ctx context.Context, data any, run int64, eng api.Engine[int]) (*api.Result, error) {
				pipeCalls++
				return nil, nil
			}),
	)

	eng.Add(1, 2, 3)
	rep, err := eng.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(seen) != 1 || seen[0] != 1 {
		t.Fatalf("expected break after the first item, source saw %v", seen)
	}
	if pipeCalls != 0 {
		t.Fatalf("expected later stage skipped after break, got %d calls", pipeCalls)
	}
	// Un-polled items are not protected from the end-of-run clear.
	if len(rep.Items) != 3 {
		t.Fatalf("expected all 3 items captured by the clear, got %v", rep.Items)
	}
	if got := eng.Backlog(); len(got) != 0 {
		t.Fatalf("expected empty backlog after run, got %v", got)
	}
}

func TestStageErrorRoutesToErrorCallback(t *testing.T) {
	ctx := context.Background()
	eng := New[int]()
	dones, fails := collectReports(eng)

	boom := errors.New("boom")
	eng.RegisterStages(
		api.SourceStage("fail-on-second",
			func(ctx context.Context, item int, run int64, eng api.Engine[int]) (*api.Result, error) {
				if item == 2 {
					return nil, boom
				}
				return nil, nil
			}),
	)

	eng.Add(1, 2, 3)
	rep, err := eng.Run(ctx)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom from Run, got %v", err)
	}
	if rep != nil {
		t.Fatalf("expected nil report on failure, got %+v", rep)
	}

	if len(*dones) != 0 {
		t.Fatalf("expected no done callback, got %d", len(*dones))
	}
	if len(*fails) != 1 {
		t.Fatalf("expected exactly one error callback, got %d", len(*fails))
	}

	fr := (*fails)[0]
	if !errors.Is(fr.Err, boom) {
		t.Fatalf("expected boom in error report, got %v", fr.Err)
	}
	if fr.ItemIndex != 2 {
		t.Fatalf("expected backlog cursor 2 at failure, got %d", fr.ItemIndex)
	}
	if fr.StageIndex != 0 {
		t.Fatalf("expected failing stage index 0, got %d", fr.StageIndex)
	}
	// The failed run still clears the backlog: at-most-once processing.
	if len(fr.Items) != 3 {
		t.Fatalf("expected all items captured, got %v", fr.Items)
	}
	if got := eng.Backlog(); len(got) != 0 {
		t.Fatalf("expected empty backlog after failed run, got %v", got)
	}
}

func TestPipeReceivesForwardedData(t *testing.T) {
	ctx := context.Background()
	eng := New[int]()

	var got any
	eng.Add(1, 2, 3)
	_, err := eng.Run(ctx,
		api.SourceStage("sum",
			func(ctx context.Context, item int, run int64, eng api.Engine[int]) (*api.Result, error) {
				return &api.Result{Data: item * 10}, nil
			}),
		api.PipeStage[int]("capture",
			func(ctx context.Context, data any, run int64, eng api.Engine[int]) (*api.Result, error) {
				got = data
				return nil, nil
			}),
	)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// The pipe sees the last source invocation's data.
	if got != 30 {
		t.Fatalf("expected forwarded data 30, got %v", got)
	}
}

func TestNilStageResultMeansContinue(t *testing.T) {
	ctx := context.Background()
	eng := New[int]()

	var got any = "sentinel"
	eng.Add(1)
	_, err := eng.Run(ctx,
		api.SourceStage("silent",
			func(ctx context.Context, item int, run int64, eng api.Engine[int]) (*api.Result, error) {
				return nil, nil
			}),
		api.PipeStage[int]("capture",
			func(ctx context.Context, data any, run int64, eng api.Engine[int]) (*api.Result, error) {
				got = data
				return nil, nil
			}),
	)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil data after a silent source, got %v", got)
	}
}

func TestPostRunIndependence(t *testing.T) {
	ctx := context.Background()
	eng := New[int]()

	pass := api.SourceStage("pass",
		func(ctx context.Context, item int, run int64, eng api.Engine[int]) (*api.Result, error) {
			return nil, nil
		})

	eng.Add(1, 2)
	if _, err := eng.Run(ctx, pass); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	itemCur, stageCur := eng.Cursor()
	if itemCur != 0 || stageCur != 0 {
		t.Fatalf("expected cursors reset to 0 between runs, got item=%d stage=%d", itemCur, stageCur)
	}
	if len(eng.Backlog()) != 0 {
		t.Fatal("expected empty backlog between runs")
	}
	if _, ok := eng.CurrentItem(); ok {
		t.Fatal("expected current item reset between runs")
	}

	eng.Add(7)
	rep, err := eng.Run(ctx)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if len(rep.Items) != 1 || rep.Items[0] != 7 {
		t.Fatalf("expected fresh run to drain only [7], got %v", rep.Items)
	}
	if rep.Run != 2 {
		t.Fatalf("expected run number 2, got %d", rep.Run)
	}
	if eng.RunCount() != 2 {
		t.Fatalf("expected run count 2, got %d", eng.RunCount())
	}
}

func TestRegisterStagesClearsOnInvalidLead(t *testing.T) {
	ctx := context.Background()
	eng := New[int]()

	invoked := 0
	count := api.PipeStage[int]("count",
		func(ctx context.Context, data any, run int64, eng api.Engine[int]) (*api.Result, error) {
			invoked++
			return nil, nil
		})

	// A pipe stage in the lead clears the whole list; the trailing stage is
	// discarded with it.
	eng.RegisterStages(count, count)

	eng.Add(1)
	rep, err := eng.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if invoked != 0 {
		t.Fatalf("expected no stage invocations after a cleared pipeline, got %d", invoked)
	}
	if len(rep.Items) != 1 {
		t.Fatalf("expected the queued item still drained, got %v", rep.Items)
	}

	// An explicit empty registration clears too.
	eng.RegisterStages(
		api.SourceStage("src",
			func(ctx context.Context, item int, run int64, eng api.Engine[int]) (*api.Result, error) {
				invoked++
				return nil, nil
			}),
	)
	eng.RegisterStages()
	eng.Add(2)
	if _, err := eng.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if invoked != 0 {
		t.Fatalf("expected no invocations after clearing registration, got %d", invoked)
	}
}

func TestClearEmptiesBacklog(t *testing.T) {
	eng := New[int]()
	eng.Add(1, 2, 3)
	eng.Clear()

	if got := eng.Backlog(); len(got) != 0 {
		t.Fatalf("expected empty backlog after Clear, got %v", got)
	}
}

func TestCurrentItemDuringRun(t *testing.T) {
	ctx := context.Background()
	eng := New[string]()

	var observed []string
	eng.Add("x", "y")
	_, err := eng.Run(ctx,
		api.SourceStage("introspect",
			func(ctx context.Context, item string, run int64, eng api.Engine[string]) (*api.Result, error) {
				cur, ok := eng.CurrentItem()
				if !ok {
					t.Fatal("expected a current item during a source invocation")
				}
				observed = append(observed, cur)
				return nil, nil
			}),
	)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(observed) != 2 || observed[0] != "x" || observed[1] != "y" {
		t.Fatalf("expected current items [x y], got %v", observed)
	}
}

func TestOnDoneReplacesPreviousHandler(t *testing.T) {
	ctx := context.Background()
	eng := New[int]()

	first, second := 0, 0
	eng.OnDone(func(ctx context.Context, rep api.Report[int], eng api.Engine[int]) {
		first++
	})
	eng.OnDone(func(ctx context.Context, rep api.Report[int], eng api.Engine[int]) {
		second++
	})

	if _, err := eng.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if first != 0 || second != 1 {
		t.Fatalf("expected only the second handler to fire, got first=%d second=%d", first, second)
	}
}

func TestStagePanicBecomesError(t *testing.T) {
	ctx := context.Background()
	eng := New[int]()
	_, fails := collectReports(eng)

	eng.Add(1)
	_, err := eng.Run(ctx,
		api.SourceStage("explode",
			func(ctx context.Context, item int, run int64, eng api.Engine[int]) (*api.Result, error) {
				panic("kaboom")
			}),
	)
	if err == nil {
		t.Fatal("expected an error from a panicking stage")
	}
	if len(*fails) != 1 {
		t.Fatalf("expected one error callback, got %d", len(*fails))
	}
}

func TestCallbackPanicIsContained(t *testing.T) {
	ctx := context.Background()
	eng := New[int]()

	eng.OnDone(func(ctx context.Context, rep api.Report[int], eng api.Engine[int]) {
		panic("done handler bug")
	})

	// The panic must not escape the run.
	if _, err := eng.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}

func TestContextCancellationFailsRun(t *testing.T) {
	eng := New[int]()
	_, fails := collectReports(eng)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng.Add(1)
	_, err := eng.Run(ctx,
		api.SourceStage("never",
			func(ctx context.Context, item int, run int64, eng api.Engine[int]) (*api.Result, error) {
				t.Fatal("stage must not run after cancellation")
				return nil, nil
			}),
	)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(*fails) != 1 {
		t.Fatalf("expected one error callback, got %d", len(*fails))
	}
}
