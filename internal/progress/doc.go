// Package progress provides operator-facing output for pipeline runs.
//
// It has two parts: a [Logger] that writes prefixed diagnostic lines, and a
// [Reporter] that tracks a set of concurrent tasks (or a byte transfer) and
// periodically prints how far along it is.
//
// # Usage
//
//	reporter := progress.NewReporter(progress.Options{
//	    Label:      "Converting layers",
//	    TotalTasks: len(job.Layers),
//	    Output:     os.Stderr,
//	})
//
//	reporter.Start()
//	defer reporter.Stop()
//
//	reporter.TaskStarted()
//	reporter.TaskCompleted()
//
// # Output Format
//
//	[mapmaker] Converting layers: 8 tasks
//	[mapmaker] Converting layers: 5/8 done | 3 running | 0 failed
//	[mapmaker] Converting layers: 8/8 done | 0 failed | 2m 4s
package progress
