package services

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"
)

// StartResultReconciler retries pending result writes on the given cron
// schedule, for example "@every 1m".
func StartResultReconciler(ctx context.Context, syncer *ResultSyncer, schedule string) (*cron.Cron, error) {
	log.Println("[RESULT-RECONCILER] Initializing result reconciler...")

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := syncer.Reconcile(ctx); err != nil {
			log.Printf("[RESULT-RECONCILER] Reconcile failed: %v", err)
		}
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	log.Printf("[RESULT-RECONCILER] Started with schedule %q", schedule)
	return c, nil
}
