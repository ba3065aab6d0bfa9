// Package sim drives a scene: it owns the clock, pulls the sampled
// properties once per tick, and hands each tick to its sinks.
//
// Nothing in a frp.State changes on its own. A tick is just the runner
// advancing the clock property and reading the samples; the reads pull
// every behavior they depend on.
//
//	built, _ := scene.Build(sc, frp.New())
//	r := sim.NewRunner(built, sim.WithTicks(10), sim.WithSink(sim.NewWriterSink(os.Stdout, sim.FormatText)))
//	err := r.Run(ctx)
//
// A runtime error from any sample (recursion, a failed script) stops the
// run; Run returns it after the sinks have seen it.
package sim
