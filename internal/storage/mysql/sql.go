package mysql

const upsertSnapshotSQL = `
INSERT INTO feed_snapshots
  (viewer_id, payload)
VALUES
  (?, ?)
ON DUPLICATE KEY UPDATE
  payload    = VALUES(payload),
  updated_at = CURRENT_TIMESTAMP
`

const getSnapshotSQL = `
SELECT payload, updated_at
FROM feed_snapshots
WHERE viewer_id = ?
`

const insertMissSQL = `
INSERT INTO enrich_misses (review_id, facet, http_status, reason)
VALUES (?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  http_status = VALUES(http_status),
  reason      = VALUES(reason),
  seen_at     = CURRENT_TIMESTAMP
`
