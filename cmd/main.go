package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"cryptoagents/cmd/collector"
	"cryptoagents/cmd/executor"
	"cryptoagents/cmd/generator"
	"cryptoagents/cmd/keys"
	"cryptoagents/cmd/portfolio"
	"cryptoagents/cmd/risk"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var Version string

func SetupLogger() {
	level, err := logrus.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)

	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// loadEnv reads .env when present; variables already set win.
func loadEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).Warn("failed to read .env")
	}
}

func main() {
	loadEnv()
	SetupLogger()

	app := cli.NewApp()
	app.Name = "cryptoagents"
	app.Usage = "Crypto trading pipeline agents"
	app.Version = Version

	app.Commands = []cli.Command{
		collectorCMD,
		generatorCMD(generator.KindScalping, "Generate short-term momentum signals"),
		generatorCMD(generator.KindSwing, "Generate trend-following signals"),
		generatorCMD(generator.KindResearch, "Generate language model research signals"),
		riskCMD,
		executorCMD,
		portfolioCMD,
		encryptSecretCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	collectorCMD = cli.Command{
		Name:        "collector",
		Usage:       "run the market data collector",
		Action:      collectorAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Fetch recent OHLCV candles for every trading pair and store them`,
	}
	riskCMD = cli.Command{
		Name:        "risk",
		Usage:       "run the risk validator",
		Action:      riskAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Approve or reject trading signals and watch open positions for exits`,
	}
	executorCMD = cli.Command{
		Name:        "executor",
		Usage:       "run the execution agent",
		Action:      executorAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Turn approved signals into trades and positions`,
	}
	portfolioCMD = cli.Command{
		Name:        "portfolio",
		Usage:       "run the portfolio aggregator",
		Action:      portfolioAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Mark open positions and record risk snapshots`,
	}
	encryptSecretCMD = cli.Command{
		Name:      "encrypt-secret",
		Usage:     "encrypt an exchange credential",
		Action:    encryptSecretAction,
		ArgsUsage: "[secret]",
		Flags: []cli.Flag{
			cli.BoolFlag{
				Name:  "generate-key",
				Usage: "print a new EXCHANGE_CREDENTIALS_KEY instead",
			},
		},
		Description: `Print the enc: form of a secret read from the argument or stdin`,
	}
)

func generatorCMD(kind, description string) cli.Command {
	return cli.Command{
		Name:        kind,
		Usage:       fmt.Sprintf("run the %s signal generator", kind),
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: description,
		Action: func(_ *cli.Context) error {
			logrus.WithField("cmd", kind).Info("Starting generator CMD")

			gen := &generator.Generator{Kind: kind}
			if err := gen.Start(); err != nil {
				logrus.WithError(err).Error("Starting cmd")
				return err
			}
			return nil
		},
	}
}

func collectorAction(_ *cli.Context) error {
	logrus.Info("Starting collector CMD")

	c := &collector.Collector{
		Log:    logrus.WithField("cmd", "collector"),
		Config: collector.GetConfig(),
	}
	if err := c.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func riskAction(_ *cli.Context) error {
	logrus.Info("Starting risk CMD")

	r := &risk.Risk{Log: logrus.WithField("cmd", "risk")}
	if err := r.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func executorAction(_ *cli.Context) error {
	logrus.Info("Starting executor CMD")

	executorStrategy := &executor.Executor{Log: logrus.WithField("cmd", "executor")}
	if err := executorStrategy.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func portfolioAction(_ *cli.Context) error {
	logrus.Info("Starting portfolio CMD")

	p := &portfolio.Portfolio{Log: logrus.WithField("cmd", "portfolio")}
	if err := p.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func encryptSecretAction(c *cli.Context) error {
	k := &keys.Keys{In: os.Stdin, Out: os.Stdout}
	if c.Bool("generate-key") {
		return k.GenerateKey()
	}
	return k.Encrypt(c.Args().First())
}
