package migrations

import (
	"embed"
	"fmt"
)

// SQLiteFS holds the golang-migrate files for the sqlite backend.
//
//go:embed sqlite/*.sql
var SQLiteFS embed.FS

const SQLiteDir = "sqlite"

// PostgreSQL migrations
var PostgresSchema = `
CREATE TABLE IF NOT EXISTS api_log (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    status BOOLEAN NOT NULL,
    url TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE TABLE IF NOT EXISTS api_log_field (
    log_id TEXT NOT NULL REFERENCES api_log(id) ON DELETE CASCADE,
    field_name VARCHAR(64) NOT NULL,
    field_value TEXT NOT NULL,
    PRIMARY KEY (log_id, field_name)
);

CREATE INDEX IF NOT EXISTS idx_api_log_created_at ON api_log(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_api_log_status ON api_log(status);
`

// Oracle migrations, one statement each. Objects that already exist are skipped
// by the caller.
var OracleSchema = []string{
	`CREATE TABLE api_log (
        id VARCHAR2(36) PRIMARY KEY,
        title CLOB NOT NULL,
        status NUMBER(1) NOT NULL,
        url CLOB NOT NULL,
        created_at TIMESTAMP WITH TIME ZONE NOT NULL
    )`,
	`CREATE TABLE api_log_field (
        log_id VARCHAR2(36) NOT NULL REFERENCES api_log(id) ON DELETE CASCADE,
        field_name VARCHAR2(64) NOT NULL,
        field_value CLOB NOT NULL,
        PRIMARY KEY (log_id, field_name)
    )`,
	`CREATE INDEX idx_api_log_created_at ON api_log(created_at)`,
	`CREATE INDEX idx_api_log_status ON api_log(status)`,
}

// OracleExistsCodes are the errors Oracle raises for objects created by an earlier run.
var OracleExistsCodes = []string{"ORA-00955", "ORA-01408"}

// Couchbase indexes
func GetCouchbaseIndexes(bucketName string) []string {
	return []string{
		fmt.Sprintf("CREATE PRIMARY INDEX ON `%s`", bucketName),
		fmt.Sprintf("CREATE INDEX idx_api_log_type_created ON `%s`(type, created_at DESC)", bucketName),
		fmt.Sprintf("CREATE INDEX idx_api_log_status ON `%s`(type, status)", bucketName),
	}
}
