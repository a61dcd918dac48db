// Command mocksource serves fixture data over the cursor-pagination contract
// the pipeline consumes. It stands in for the real upstream systems in local
// development; the pipeline itself depends only on the wire contract.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/gin-gonic/gin"

	"cdr-pipeline/internal/source"
	"cdr-pipeline/pkg/logger"
)

type fixtures struct {
	Calls       []source.Call       `json:"calls"`
	Connections []source.Connection `json:"connections"`
	CallEvents  []source.CallEvent  `json:"call_events"`
	Operators   []source.Operator   `json:"operators"`
}

func main() {
	log := logger.New("local")
	slog.SetDefault(log)

	dataDir := os.Getenv("MOCK_DATA_DIR")
	if dataDir == "" {
		dataDir = "testdata"
	}
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "8081"
	}

	fx, err := loadFixtures(dataDir)
	if err != nil {
		log.Error("fixture load failed", "err", err)
		os.Exit(1)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/calls", listHandler(fx.Calls, func(c source.Call) int64 { return c.ID }))
	r.GET("/connections", listHandler(fx.Connections, func(c source.Connection) int64 { return c.ID }))
	r.GET("/call_events", listHandler(fx.CallEvents, func(e source.CallEvent) int64 { return e.ID }))
	r.GET("/operators", listHandler(fx.Operators, func(o source.Operator) int64 { return o.ID }))

	log.Info("mock source listening", "port", port, "data_dir", dataDir)
	if err := r.Run(":" + port); err != nil {
		log.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func loadFixtures(dir string) (fixtures, error) {
	var fx fixtures
	for _, f := range []struct {
		name string
		dst  any
	}{
		{"calls.json", &fx},
		{"connections.json", &fx},
		{"call_events.json", &fx},
		{"operators.json", &fx},
	} {
		raw, err := os.ReadFile(filepath.Join(dir, f.name))
		if err != nil {
			return fixtures{}, fmt.Errorf("read %s: %w", f.name, err)
		}
		if err := json.Unmarshal(raw, f.dst); err != nil {
			return fixtures{}, fmt.Errorf("parse %s: %w", f.name, err)
		}
	}
	return fx, nil
}

// listHandler serves one entity list with cursor pagination: results ordered
// ascending by identifier, next_cursor equal to the last returned identifier
// or null when the page reached the end of the data.
func listHandler[T any](items []T, id func(T) int64) gin.HandlerFunc {
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(a, b T) int {
		switch {
		case id(a) < id(b):
			return -1
		case id(a) > id(b):
			return 1
		default:
			return 0
		}
	})

	return func(c *gin.Context) {
		limit := 10
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				c.JSON(400, gin.H{"error": "limit must be a positive integer"})
				return
			}
			limit = n
		}

		start := 0
		if v := c.Query("cursor"); v != "" {
			cursor, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				c.JSON(400, gin.H{"error": "cursor must be an integer"})
				return
			}
			start = len(sorted)
			for i, item := range sorted {
				if id(item) > cursor {
					start = i
					break
				}
			}
		}

		end := start + limit
		if end > len(sorted) {
			end = len(sorted)
		}
		page := sorted[start:end]

		// A full page reports its last identifier as the next cursor even when
		// it happens to end exactly at the data boundary; the client's next
		// request then sees an empty page with a null cursor.
		var next *int64
		if len(page) == limit {
			last := id(page[len(page)-1])
			next = &last
		}
		c.JSON(200, gin.H{"results": page, "next_cursor": next})
	}
}
