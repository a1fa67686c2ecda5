package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// poolStats is the connection-pool slice of the /health/db payload.
type poolStats struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	MaxConns      int32 `json:"max_conns"`
}

type dbHealth struct {
	Service string    `json:"service"`
	Status  string    `json:"status"`
	Error   string    `json:"error,omitempty"`
	Pool    poolStats `json:"pool"`
}

// HealthHandler reports whether the referral database is reachable. Pool
// statistics ride along so an operator can spot connection exhaustion from
// the same probe.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		stat := pool.Stat()
		out := dbHealth{
			Service: "referral-api",
			Status:  "healthy",
			Pool: poolStats{
				TotalConns:    stat.TotalConns(),
				IdleConns:     stat.IdleConns(),
				AcquiredConns: stat.AcquiredConns(),
				MaxConns:      stat.MaxConns(),
			},
		}
		if err := pool.Ping(ctx); err != nil {
			out.Status = "unhealthy"
			out.Error = err.Error()
			return c.JSON(http.StatusServiceUnavailable, out)
		}
		return c.JSON(http.StatusOK, out)
	}
}
