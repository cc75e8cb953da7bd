/*
 * Copyright 2022 CECTC, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cectc/dbclient/client"
	"github.com/cectc/dbclient/log"
	"github.com/cectc/dbclient/mysql"
	"github.com/cectc/dbclient/pool"
)

var (
	Version = "0.1.0"

	dsn       string
	query     string
	poolSize  int
	rootCommand = &cobra.Command{
		Use:     "mysql-cli",
		Short:   "mysql-cli is a thin command line client over dbclient",
		Version: Version,
	}

	queryCommand = &cobra.Command{
		Use:   "query",
		Short: "run a single query against a DSN and print the result",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runQuery(); err != nil {
				log.Errorf("query failed: %v", err)
				os.Exit(1)
			}
		},
	}

	pingCommand = &cobra.Command{
		Use:   "ping",
		Short: "connect, run a pool through setup, and report its health",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runPing(); err != nil {
				log.Errorf("ping failed: %v", err)
				os.Exit(1)
			}
		},
	}
)

func main() {
	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCommand.PersistentFlags().StringVarP(&dsn, "dsn", "d", os.Getenv("DBCLIENT_DSN"), "data source name, e.g. user:pass@tcp(127.0.0.1:3306)/dbname")
	queryCommand.Flags().StringVarP(&query, "query", "q", "select 1", "query to execute")
	pingCommand.Flags().IntVarP(&poolSize, "pool-size", "n", 4, "number of connections to eagerly establish")
	rootCommand.AddCommand(queryCommand, pingCommand)
}

func runQuery() error {
	if dsn == "" {
		return errors.New("a DSN is required, pass --dsn or set DBCLIENT_DSN")
	}
	cfg, err := client.ParseDSN(dsn)
	if err != nil {
		return errors.WithMessage(err, "parsing dsn")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, err := client.Connect(ctx, cfg, nil)
	if err != nil {
		return errors.WithMessage(err, "connecting")
	}
	defer conn.Quit()

	result, rows, err := conn.Query(query)
	if err != nil {
		return errors.WithMessage(err, "querying")
	}
	if rows == nil {
		fmt.Printf("OK: %d rows affected, last insert id %d\n", result.AffectedRows, result.LastInsertID)
		return nil
	}
	return printRows(rows)
}

// printRows prints every resultset a CALL or multi-statement query
// produces, following Result().MoreResultsExists() across resultset
// boundaries (spec.md §3, §4.5).
func printRows(rows *mysql.Rows) error {
	for {
		fields := rows.Fields()
		names := make([]string, len(fields))
		for i, f := range fields {
			names[i] = f.Name
		}
		fmt.Println(strings.Join(names, "\t"))

		for rows.Next() {
			row := rows.Row()
			cells := make([]string, len(row))
			for i, v := range row {
				if v.IsNull {
					cells[i] = "NULL"
				} else {
					cells[i] = string(v.Raw)
				}
			}
			fmt.Println(strings.Join(cells, "\t"))
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if !rows.NextResultSet() {
			break
		}
	}
	return nil
}

func runPing() error {
	if dsn == "" {
		return errors.New("a DSN is required, pass --dsn or set DBCLIENT_DSN")
	}
	cfg, err := client.ParseDSN(dsn)
	if err != nil {
		return errors.WithMessage(err, "parsing dsn")
	}

	dial := func(ctx context.Context) (*client.Conn, error) {
		return client.Connect(ctx, cfg, nil)
	}

	p, err := pool.New(dial, pool.Options{InitialSize: poolSize, MaxSize: poolSize})
	if err != nil {
		return errors.WithMessage(err, "establishing pool")
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	h, err := p.Get(ctx)
	if err != nil {
		return errors.WithMessage(err, "acquiring connection")
	}
	fmt.Printf("connected: server version %s, connection id %d\n", h.Conn().ServerVersion(), h.Conn().ConnectionID())
	h.Release(true)

	fmt.Println(p.StatsJSON())
	return nil
}
