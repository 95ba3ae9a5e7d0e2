package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/alarmistdev/readiness"
	"github.com/alarmistdev/readiness/check"
	"github.com/alarmistdev/readiness/check/database/postgres"
	"github.com/alarmistdev/readiness/check/database/sqlquery"
	httpcheck "github.com/alarmistdev/readiness/check/network/http"
	"github.com/alarmistdev/readiness/check/network/tcp"
	"github.com/alarmistdev/readiness/check/queue/kafka"
)

func main() {
	const (
		materializedPort = 6875
		kafkaPort        = 9092
	)

	ctx := context.Background()
	config := check.DefaultConfig().WithTimeout(time.Minute)

	// Block until the port accepts connections before issuing queries.
	if err := tcp.Wait(ctx, "localhost", materializedPort, config.WithLabel("materialized")); err != nil {
		log.Fatal(err)
	}

	params := postgres.ConnParams{
		Host:   "localhost",
		Port:   materializedPort,
		DBName: "materialize",
		User:   "materialize",
	}

	result, err := postgres.Wait(
		ctx,
		params,
		"SELECT count(*) FROM mz_sources",
		sqlquery.ExactRows(sqlquery.Row{3}),
		config,
		postgres.WithPrintResult(true),
	)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("materialized is ready: %s", sqlquery.FormatRows(result.Rows))

	waiter := readiness.NewWaiter(config).
		WithTarget(
			"Materialized",
			postgres.Check(params, "SELECT 1", sqlquery.AnyRows()),
			readiness.WithGroup("Infrastructure"),
		).
		WithTarget(
			"Kafka",
			kafka.Check([]string{"localhost:9092"}, config, "quickstart-events"),
			readiness.WithGroup("Infrastructure"),
		).
		WithTarget(
			"Schema Registry",
			httpcheck.Check(http.MethodGet, "http://localhost:8081/subjects", http.StatusOK, config),
			readiness.WithImportance(readiness.TargetImportanceLow),
		).
		WithTarget(
			"Kafka Port",
			tcp.Check("localhost", kafkaPort),
			readiness.WithTimeout(10*time.Second),
		)

	if _, err := waiter.Wait(ctx); err != nil {
		log.Fatal(err)
	}

	http.HandleFunc("/ready", waiter.Handler())

	log.Fatal(http.ListenAndServe(":8080", nil))
}
