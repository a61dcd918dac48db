// Command mocksink is a stand-in batch receiver for the external delivery
// contract: it accepts POST /records with a JSON array of external CDRs and
// acknowledges how many it received.
package main

import (
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"

	"cdr-pipeline/internal/cdr"
	"cdr-pipeline/pkg/logger"
)

func main() {
	log := logger.New("local")
	slog.SetDefault(log)

	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "8082"
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/records", func(c *gin.Context) {
		var records []cdr.ExternalCDR
		if err := c.ShouldBindJSON(&records); err != nil {
			c.JSON(400, gin.H{"error": "body must be a JSON array of records"})
			return
		}
		log.Info("received batch",
			"records", len(records),
			"idempotency_key", c.GetHeader("X-Idempotency-Key"),
		)
		for _, rec := range records {
			log.Info("record",
				"call_id", rec.CallID,
				"agent_status", rec.AgentStatus,
				"operator_id", rec.OperatorID,
			)
		}
		c.JSON(200, gin.H{"status": "OK", "received": len(records)})
	})

	log.Info("mock sink listening", "port", port)
	if err := r.Run(":" + port); err != nil {
		log.Error("server failed", "err", err)
		os.Exit(1)
	}
}
