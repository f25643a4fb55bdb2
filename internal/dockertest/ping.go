package dockertest

import (
	"database/sql"

	_ "github.com/lib/pq"
)

func Ping(server PostgresServer) error {
	db, err := sql.Open("postgres", server.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Ping()
}
