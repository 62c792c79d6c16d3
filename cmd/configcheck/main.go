package main

import (
	"flag"
	"fmt"
	"os"

	"coinbase_bot/internal/config"
	"coinbase_bot/internal/runner"

	"github.com/pkg/errors"
)

// configcheck читает конфиг так же, как бот, и печатает итог после дефолтов и env.
func main() {
	params := flag.Bool("params", false, "print derived strategy parameters per coin")
	flag.Parse()

	if err := run(*params); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(withParams bool) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	bs, err := cfg.YAML()
	if err != nil {
		return errors.Wrap(err, "marshal config to yaml")
	}
	fmt.Print(string(bs))

	if !withParams {
		return nil
	}
	for _, cs := range cfg.EnabledCoins() {
		p := runner.ParamsFor(cs, cfg.Trading.QuoteCurrency)
		fmt.Printf("%s (%s): capacity=%d %+v\n", cs.Symbol, cfg.ProductID(cs.Symbol), p.Capacity(), p)
	}
	fmt.Println("done")
	return nil
}
