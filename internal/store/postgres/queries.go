package postgres

const queryCreateStatusTable = `
CREATE TABLE IF NOT EXISTS timer_schedule_status (
    name         TEXT PRIMARY KEY,
    last         TIMESTAMPTZ NULL,
    next         TIMESTAMPTZ NOT NULL,
    last_updated TIMESTAMPTZ NOT NULL
)
`

const queryGetStatus = `
SELECT last, next, last_updated
FROM timer_schedule_status
WHERE name = $1
`

const queryUpsertStatus = `
INSERT INTO timer_schedule_status (name, last, next, last_updated)
VALUES ($1, $2, $3, $4)
ON CONFLICT (name) DO UPDATE
SET last = EXCLUDED.last,
    next = EXCLUDED.next,
    last_updated = EXCLUDED.last_updated
`
