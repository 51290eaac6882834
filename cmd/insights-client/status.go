package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/log/level"
)

// recentUploads is how many history entries status prints.
const recentUploads = 5

func runStatus(ctx context.Context, env *cmdEnv) error {
	ids := newIdentityStore(env)

	client, err := newClient(ctx, env, ids)
	if err != nil {
		return err
	}

	report, err := client.RegistrationStatus(ctx)
	if err != nil {
		return err
	}

	for _, msg := range report.Messages() {
		fmt.Fprintln(env.stdout, msg)
	}

	lastUpload, err := ids.LastUpload()
	if err != nil {
		return err
	}
	if lastUpload != "" {
		fmt.Fprintf(env.stdout, "Last successful upload was %s\n", lastUpload)
	}

	printHistory(env)

	if !report.Registered() {
		return errNotRegistered
	}
	return nil
}

// printHistory is best effort: a missing or locked database is not a
// status failure.
func printHistory(env *cmdEnv) {
	ledger, closeDB, err := openHistory(env)
	if err != nil {
		level.Debug(env.logger).Log("msg", "upload history unavailable", "err", err)
		return
	}
	defer closeDB()

	records, err := ledger.Recent(recentUploads)
	if err != nil {
		level.Debug(env.logger).Log("msg", "reading upload history", "err", err)
		return
	}
	if len(records) == 0 {
		return
	}

	if last, err := ledger.LastSuccess(); err == nil && last != nil {
		fmt.Fprintf(env.stdout, "Last accepted archive was %s\n", last.Archive)
	}

	total, err := ledger.Len()
	if err != nil {
		level.Debug(env.logger).Log("msg", "counting upload history", "err", err)
		total = len(records)
	}

	fmt.Fprintf(env.stdout, "Recent upload attempts (%d of %d recorded):\n", len(records), total)
	for _, r := range records {
		outcome := fmt.Sprintf("HTTP %d", r.StatusCode)
		if r.Error != "" {
			outcome = r.Error
		}
		fmt.Fprintf(env.stdout, "  %s  attempt %d  %s  %s (%s)\n",
			r.StartedAt.Format(time.RFC3339), r.Attempt, r.Archive, outcome, r.Duration.Round(time.Millisecond))
	}
}
