package main

import (
	"log"

	corecmd "github.com/m3rciful/funnelbot/core/cmd"
	"github.com/m3rciful/funnelbot/internal/app"
	"github.com/m3rciful/funnelbot/internal/config"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return app.New(cfg.(*config.Config), app.Options{})
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
