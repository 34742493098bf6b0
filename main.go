package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"copytrader/src/database"
	"copytrader/src/orchestrator"
	"copytrader/src/server"
)

var AppName = os.Getenv("APP_NAME")

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.DebugLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	SetupLogger()
	defer handlePanic()

	app := cli.NewApp()
	app.Name = "Copytrader CMD"
	app.Usage = "The copytrader command line interface"

	app.Commands = []cli.Command{
		serverCMD,
		sweepCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	serverCMD = cli.Command{
		Name:        "server",
		Usage:       "run the signal ingestion and execution server",
		Action:      serverAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the webhook gateway, worker pool and read API`,
	}
	sweepCMD = cli.Command{
		Name:        "sweep",
		Usage:       "run one recovery sweep over stale pending executions",
		Action:      sweepAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Re-drive pending copy trade rows left behind by a crash, then exit`,
	}
)

func serverAction(_ *cli.Context) error {
	logger.Info("Starting server CMD")

	if err := database.InitMainDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	server.StartServer(server.GetConfig().Port)
	return nil
}

func sweepAction(_ *cli.Context) error {
	logger.Info("Starting sweep CMD")

	if err := database.InitMainDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	executor := orchestrator.NewDefaultOrchestrator()
	if err := executor.Sweep(context.Background()); err != nil {
		logger.WithError(err).Error("recovery sweep failed")
		return err
	}

	return nil
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", AppName))
	}
	//nolint
	time.Sleep(time.Second * 5)
}
