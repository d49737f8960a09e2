// Package apimetrics provides in-process telemetry for cloud API calls made
// by resource tooling (gcloud/bq command runners, REST clients and the like).
//
// Design goals:
//   - One Collector per process (or per test) serializing every write
//   - Bounded memory: a ring of the most recent records, oldest evicted first
//   - Statistics computed on demand, with nearest-rank percentiles
//   - Observers held weakly, so forgotten subscriptions are pruned, not leaked
//
// Basic usage:
//
//	cfg, err := apimetrics.LoadConfig()
//	if err != nil {
//	  log.Fatal(err)
//	}
//	collector, err := apimetrics.New(cfg)
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer collector.Close()
//
//	counters := apimetrics.NewServiceCounters(nil)
//	sub := collector.AddObserver(counters)
//	defer sub.Cancel()
//
//	datasets, err := apimetrics.Measure(ctx, collector, apimetrics.Request{
//	  Service:   "bigquery",
//	  Operation: "datasets.list",
//	  Method:    "GET",
//	  Path:      "/projects/demo/datasets",
//	}, listDatasets)
//
//	if summary, ok := collector.GetAggregatedMetrics(5 * time.Minute); ok {
//	  fmt.Println(summary.P95, summary.ErrorRate)
//	}
package apimetrics
