package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"golang.org/x/crypto/bcrypt"

	"stockbot/cmd/bot"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "Stockbot CMD"
	app.Usage = "The Stockbot command line interface"

	app.Commands = []cli.Command{
		botCMD,
		hashTokenCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	botCMD = cli.Command{
		Name:        "bot",
		Usage:       "run the trading bot",
		Action:      botAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the risk-gated trading engine with the operator API`,
	}
	hashTokenCMD = cli.Command{
		Name:        "hash-token",
		Usage:       "bcrypt-hash an operator token",
		Action:      hashTokenAction,
		ArgsUsage:   "<token>",
		Flags:       []cli.Flag{},
		Description: `Print the bcrypt hash to use as OPERATOR_TOKEN_HASH`,
	}
)

func botAction(_ *cli.Context) error {
	logrus.Info("Starting bot CMD")

	b := &bot.Bot{}
	if err := b.Start(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	return nil
}

func hashTokenAction(c *cli.Context) error {
	token := c.Args().First()
	if token == "" {
		return fmt.Errorf("usage: hash-token <token>")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	fmt.Println(string(hash))
	return nil
}
