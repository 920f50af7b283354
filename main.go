package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/feedwatch/metrics-alerting/commonGo"
	"github.com/feedwatch/metrics-alerting/config"
	"github.com/feedwatch/metrics-alerting/factory"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/urfave/cli"
)

const (
	defaultLogsPath      = "logs"
	logFilePrefix        = "alerter"
	logFileLifeSpanInSec = 86400 // 24h
	logFileLifeSpanInMB  = 1024  // 1GB
	configFile           = "./config.toml"
	envFile              = "./.env"
	envTelegramToken     = "TELEGRAM_TOKEN"
	envWarehouseUser     = "CH_USER"
	envWarehousePassword = "CH_PASSWORD"
	envChannelID         = "CHAT_ID"
)

// appVersion should be populated at build time using ldflags
// Usage examples:
// Linux/macOS:
//
//	go build -v -ldflags="-X main.appVersion=$(git describe --all | cut -c7-32)
var appVersion = "undefined"
var fileLogging commonGo.FileLoggingHandler

var (
	alerterHelpTemplate = `NAME:
   {{.Name}} - {{.Usage}}
USAGE:
   {{.HelpName}} {{if .VisibleFlags}}[global options]{{end}}
   {{if len .Authors}}
AUTHOR:
   {{range .Authors}}{{ . }}{{end}}
   {{end}}{{if .Commands}}
GLOBAL OPTIONS:
   {{range .VisibleFlags}}{{.}}
   {{end}}
VERSION:
   {{.Version}}
   {{end}}
`

	log = logger.GetOrCreate("alerter")

	// logLevel defines the logger level
	logLevel = cli.StringFlag{
		Name: "log-level",
		Usage: "This flag specifies the logger `level(s)`. It can contain multiple comma-separated value. For example" +
			", if set to *:INFO the logs for all packages will have the INFO level. However, if set to *:INFO,engine:DEBUG" +
			" the logs for all packages will have the INFO level, excepting the engine package which will receive a DEBUG" +
			" log level.",
		Value: "*:" + logger.LogInfo.String(),
	}
	// logSaveFile is used when the log output needs to be logged in a file
	logSaveFile = cli.BoolFlag{
		Name:  "log-save",
		Usage: "Boolean option for enabling log saving. If set, it will automatically save all the logs into a file.",
	}
	// workingDirectory defines a flag for the path for the working directory.
	workingDirectory = cli.StringFlag{
		Name:  "working-directory",
		Usage: "This flag specifies the `directory` where the node will store databases and logs.",
		Value: "",
	}

	envFileContents = map[string]string{
		envTelegramToken:     "",
		envWarehouseUser:     "",
		envWarehousePassword: "",
		envChannelID:         "",
	}
)

func main() {
	app := cli.NewApp()
	cli.AppHelpTemplate = alerterHelpTemplate
	app.Name = "Product metrics alerting service"
	app.Version = fmt.Sprintf("%s/%s/%s-%s", appVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	app.Usage = "Periodically evaluates product metrics against their expected boundaries and pushes alerts with charts to a Telegram channel"
	app.Flags = []cli.Flag{
		logLevel,
		logSaveFile,
		workingDirectory,
	}

	app.Action = run

	defer func() {
		if fileLogging != nil {
			_ = fileLogging.Close()
		}
	}()

	err := app.Run(os.Args)
	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	saveLogFile := ctx.GlobalBool(logSaveFile.Name)
	workingDir := ctx.GlobalString(workingDirectory.Name)

	err := logger.SetLogLevel(ctx.GlobalString(logLevel.Name))
	if err != nil {
		return err
	}

	fileLogging, err = commonGo.AttachFileLogger(log, defaultLogsPath, logFilePrefix, saveLogFile, workingDir)
	if err != nil {
		return err
	}

	if !check.IfNil(fileLogging) {
		timeLogLifeSpan := time.Second * time.Duration(logFileLifeSpanInSec)
		sizeLogLifeSpanInMB := uint64(logFileLifeSpanInMB)
		err = fileLogging.ChangeFileLifeSpan(timeLogLifeSpan, sizeLogLifeSpanInMB)
		if err != nil {
			return err
		}
	}

	log.Info("Starting alerting service", "version", appVersion, "pid", os.Getpid())

	err = commonGo.ReadEnvFile(envFile, envFileContents)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return err
	}

	channelID, err := strconv.ParseInt(envFileContents[envChannelID], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s value: %w", envChannelID, err)
	}
	cfg.General.ChannelID = channelID

	secrets := factory.Secrets{
		TelegramToken:     envFileContents[envTelegramToken],
		WarehouseUser:     envFileContents[envWarehouseUser],
		WarehousePassword: envFileContents[envWarehousePassword],
	}

	componentsHandler, err := factory.NewComponentsHandler(secrets, *cfg)
	if err != nil {
		return err
	}

	componentsHandler.Start()

	log.Info("Alerting service started", "interval seconds", cfg.General.IntervalInSeconds,
		"metrics", len(cfg.Metrics), "api address", componentsHandler.GetServer().Address())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	<-sigs

	log.Info("Application closing, calling Close on all subcomponents...")
	componentsHandler.Close()

	return nil
}
