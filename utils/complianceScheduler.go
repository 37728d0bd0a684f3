package utils

import (
	"fmt"
	"log"
	"time"

	"comply/config"
	"comply/services"

	"github.com/robfig/cron/v3"
)

// InitializeComplianceScheduler sets up the periodic certificate expiry
// sweep, lag-detection rollup and event dispatch. The sweep is idempotent:
// re-running it with no new facts produces no duplicate events.
func InitializeComplianceScheduler(orch *services.Orchestrator, dispatcher *services.EventDispatcher) {
	log.Println("[SCHEDULER] Initializing compliance scheduler...")

	c := cron.New()

	interval := config.AppConfig.SweepIntervalMinutes
	c.AddFunc(fmt.Sprintf("@every %dm", interval), func() {
		log.Println("[SCHEDULER] Running compliance sweep...")

		if n, err := orch.SweepCertificates(time.Now()); err != nil {
			log.Printf("[SCHEDULER] Certificate sweep failed: %v", err)
		} else if n > 0 {
			log.Printf("[SCHEDULER] Transitioned %d certificates", n)
		}

		orch.SweepLag()
		dispatcher.DispatchPending()
	})

	c.Start()
	log.Printf("[SCHEDULER] Compliance scheduler started - runs every %d minutes", interval)
}
