/*
Package modelstore persists model listings across process restarts.

The fabric itself owns no persistent state; this package is opt-in wiring
for one narrow concern: after a cold start, backends that list models
remotely can serve a stored snapshot until the provider is reachable again.

Two implementations are provided. MemoryStore keeps snapshots in a map and
is the default for tests and single-run tools. SQLiteStore persists to a
single-file database using the CGo-free driver, suitable for long-lived
single-instance deployments.

A Sweeper prunes stale snapshots on a cron schedule:

	store, err := modelstore.NewSQLiteStore("models.db")
	if err != nil {
		return err
	}
	defer store.Close()

	sweeper := modelstore.NewSweeper(store, modelstore.SweeperConfig{
		Schedule: "0 * * * *",
		MaxAge:   7 * 24 * time.Hour,
	}, nil)
	if err := sweeper.Start(ctx); err != nil {
		return err
	}
*/
package modelstore
