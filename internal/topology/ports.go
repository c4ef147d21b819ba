package topology

import "strings"

const (
	portMySQL      = 3306
	portPostgreSQL = 5432
	portSQLServer  = 1433
	portOracle     = 1521
)

// DefaultPort returns the listening port a managed database engine uses
// unless told otherwise. Unknown engines get the MySQL port.
func DefaultPort(engine string) int {
	e := strings.ToLower(engine)
	switch {
	case strings.Contains(e, "postgres"):
		return portPostgreSQL
	case strings.HasPrefix(e, "sqlserver"):
		return portSQLServer
	case strings.HasPrefix(e, "oracle"):
		return portOracle
	default:
		return portMySQL
	}
}
