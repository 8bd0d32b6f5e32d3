// Package feeder provides the background component used to bridge
// channel-producing code and a conveyor engine.
//
// A feeder consumes items from a channel, appends them to an engine's
// backlog, and triggers fire-and-forget runs on a flush interval or once a
// batch-size threshold is reached. It is designed to be lightweight and easy
// to embed in existing services: one goroutine per feeder, started and
// stopped explicitly.
//
// Most applications construct a feeder directly around an engine built with
// the conveyor package:
//
//	eng := conveyor.NewEngine[Event]()
//	f := feeder.NewWithConfig(eng, feeder.Config{BatchSize: 100})
//	_ = f.Start(ctx, events)
//	defer f.Stop()
//
// Because engine triggers follow the engine's re-entrancy policy, a feeder
// never forces parallel runs: while a run is active on a blocking engine,
// additional triggers are dropped and the items they carried ride along with
// the active run.
package feeder
