package sql

import (
	"time"

	"github.com/lib/pq"
)

var fixedTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

var pqUniqueViolation = pq.Error{Code: "23505", Message: "duplicate key"}
