// Package scenario implements the fault-injection handshake engine.
//
// A Scenario is an ordered list of Acts. Each act installs a set of
// interceptors on the host application's call sites: fault interceptors that
// return scripted errors, and exactly one checkpoint interceptor whose
// invocation ends the act. The application runs on a single worker
// goroutine; the controller goroutine consumes protocol messages from a
// per-scenario channel, swaps interceptor sets act by act and derives one
// verdict per act.
//
// # Handshake
//
// When the worker reaches an act's checkpoint it sends ADVANCE followed by
// ADVANCE_ACK and blocks. The controller marks the act successful, removes
// its interceptors, installs the next act and only then releases the
// worker, which resumes the original checkpoint call. The final act's
// checkpoint ends the worker with runtime.Goexit instead.
//
// A worker that returns, panics, or stays silent for longer than the
// per-message deadline fails the act in progress; later acts stay
// undefined.
//
// # Usage
//
//	sc, err := scenario.New(app.Factory, acts, "app.process_data",
//		scenario.WithTable(app.Table()))
//	if err != nil {
//		return err // configuration or resolution error
//	}
//	verdict, err := sc.RunTest(ctx, "act-0")
package scenario
